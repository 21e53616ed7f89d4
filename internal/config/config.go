package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is derived entirely from the environment. Load validates eagerly so
// a misconfigured process dies at boot, not on the first request.
type Config struct {
	Env      string
	HTTPAddr string

	DatabaseURL string

	JWTSecret  string
	JWTIssuer  string
	AccessTTL  time.Duration
	RefreshTTL time.Duration

	BcryptCost    int
	SweepInterval time.Duration

	CORSOrigins []string

	RedisAddr         string
	APIRateLimitRPM   int
	AuthRateLimitRPM  int
	RateLimitFailMode string

	OTELServiceName           string
	OTELEnvironment           string
	OTELExporterOTLPEndpoint  string
	OTELExporterOTLPInsecure  bool
	OTELMetricsEnabled        bool
	OTELTracesEnabled         bool
	OTELLogsEnabled           bool
	OTELHTTPEnabled           bool
	OTELMetricsExportInterval time.Duration
}

func Load(ctx context.Context) (*Config, error) {
	cfg, err := load()
	recordConfigValidationEvent(ctx, envOr("APP_ENV", "development"), outcome(err), classifyConfigLoadError(err))
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

func load() (*Config, error) {
	cfg := &Config{
		Env:         envOr("APP_ENV", "development"),
		HTTPAddr:    envOr("HTTP_ADDR", ":3001"),
		DatabaseURL: envOr("DATABASE_URL", "file:esp32.db"),
		JWTSecret:   os.Getenv("JWT_SECRET"),
		JWTIssuer:   envOr("JWT_ISSUER", "esp32-backend"),

		RedisAddr:         os.Getenv("REDIS_ADDR"),
		RateLimitFailMode: envOr("RATE_LIMIT_FAIL_MODE", "fail_closed"),

		OTELServiceName:          envOr("OTEL_SERVICE_NAME", "esp32-backend"),
		OTELEnvironment:          envOr("OTEL_ENVIRONMENT", envOr("APP_ENV", "development")),
		OTELExporterOTLPEndpoint: envOr("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
	}

	var err error
	if cfg.AccessTTL, err = durationOr("JWT_ACCESS_TTL", time.Hour); err != nil {
		return nil, err
	}
	if cfg.RefreshTTL, err = durationOr("JWT_REFRESH_TTL", 7*24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.SweepInterval, err = durationOr("SESSION_SWEEP_INTERVAL", time.Hour); err != nil {
		return nil, err
	}
	if cfg.OTELMetricsExportInterval, err = durationOr("OTEL_METRICS_EXPORT_INTERVAL", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.BcryptCost, err = intOr("BCRYPT_COST", 12); err != nil {
		return nil, err
	}
	if cfg.APIRateLimitRPM, err = intOr("API_RATE_LIMIT_RPM", 300); err != nil {
		return nil, err
	}
	if cfg.AuthRateLimitRPM, err = intOr("AUTH_RATE_LIMIT_RPM", 30); err != nil {
		return nil, err
	}
	if cfg.OTELExporterOTLPInsecure, err = boolOr("OTEL_EXPORTER_OTLP_INSECURE", true); err != nil {
		return nil, err
	}
	if cfg.OTELMetricsEnabled, err = boolOr("OTEL_METRICS_ENABLED", false); err != nil {
		return nil, err
	}
	if cfg.OTELTracesEnabled, err = boolOr("OTEL_TRACES_ENABLED", false); err != nil {
		return nil, err
	}
	if cfg.OTELLogsEnabled, err = boolOr("OTEL_LOGS_ENABLED", false); err != nil {
		return nil, err
	}
	if cfg.OTELHTTPEnabled, err = boolOr("OTEL_HTTP_ENABLED", false); err != nil {
		return nil, err
	}

	if origins := os.Getenv("CORS_ORIGINS"); origins != "" {
		for _, o := range strings.Split(origins, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.CORSOrigins = append(cfg.CORSOrigins, o)
			}
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("validate config: JWT_SECRET is required")
	}
	if len(c.JWTSecret) < 32 {
		return fmt.Errorf("validate config: JWT_SECRET must be at least 32 bytes")
	}
	if c.AccessTTL <= 0 || c.RefreshTTL <= 0 {
		return fmt.Errorf("validate config: token TTLs must be positive")
	}
	if c.RefreshTTL < c.AccessTTL {
		return fmt.Errorf("validate config: JWT_REFRESH_TTL must not be shorter than JWT_ACCESS_TTL")
	}
	if c.SweepInterval <= 0 {
		return fmt.Errorf("validate config: SESSION_SWEEP_INTERVAL must be positive")
	}
	if m := c.RateLimitFailMode; m != "fail_open" && m != "fail_closed" {
		return fmt.Errorf("validate config: RATE_LIMIT_FAIL_MODE must be fail_open or fail_closed")
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func durationOr(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return d, nil
}

func intOr(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return n, nil
}

func boolOr(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("parse %s: %w", key, err)
	}
	return b, nil
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
