package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/telemetrix/esp32-backend/internal/config"
	"github.com/telemetrix/esp32-backend/internal/domain"
	"github.com/telemetrix/esp32-backend/internal/http/handler"
	"github.com/telemetrix/esp32-backend/internal/http/middleware"
	"github.com/telemetrix/esp32-backend/internal/http/router"
	"github.com/telemetrix/esp32-backend/internal/repository"
	"github.com/telemetrix/esp32-backend/internal/security"
	"github.com/telemetrix/esp32-backend/internal/service"
)

const version = "1.0.0"

// ProvideDatabase opens Postgres when the DSN looks like one, sqlite
// otherwise. Sqlite keeps local development and CI free of external
// services.
func ProvideDatabase(cfg *config.Config) (*gorm.DB, error) {
	gormCfg := &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
		TranslateError: true,
	}

	dsn := cfg.DatabaseURL
	var dialector gorm.Dialector
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") || strings.Contains(dsn, "host=") {
		dialector = postgres.Open(dsn)
	} else {
		dialector = sqlite.Open(dsn)
	}

	db, err := gorm.Open(dialector, gormCfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return db, nil
}

// Migrate creates or updates the schema and seeds default alert thresholds.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&domain.User{},
		&domain.Session{},
		&domain.LoginLog{},
		&domain.Reading{},
		&domain.Setting{},
	); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}

	settings := repository.NewSettingRepository(db)
	defaults := []domain.Setting{
		{Key: service.SettingTemperatureMax, Value: "35", Description: strPtr("alerta: temperatura máxima en °C")},
		{Key: service.SettingHumidityMax, Value: "80", Description: strPtr("alerta: humedad máxima en %")},
		{Key: service.SettingGasMax, Value: "1000", Description: strPtr("alerta: nivel máximo de gas en ppm")},
	}
	for i := range defaults {
		if _, err := settings.Get(defaults[i].Key); err == nil {
			continue
		}
		if err := settings.Upsert(&defaults[i]); err != nil {
			return fmt.Errorf("seed setting %s: %w", defaults[i].Key, err)
		}
	}
	return nil
}

func ProvideTokenManager(cfg *config.Config) *security.TokenManager {
	return security.NewTokenManager(cfg.JWTIssuer, cfg.JWTSecret)
}

func ProvideHasher(cfg *config.Config) *security.PasswordHasher {
	return security.NewPasswordHasher(cfg.BcryptCost)
}

func ProvideAuthService(cfg *config.Config, db *gorm.DB, tokens *security.TokenManager, hasher *security.PasswordHasher) *service.AuthService {
	return service.NewAuthService(
		repository.NewUserRepository(db),
		repository.NewSessionRepository(db),
		repository.NewLoginLogRepository(db),
		tokens,
		hasher,
		cfg.AccessTTL,
		cfg.RefreshTTL,
	)
}

func ProvideUserService(db *gorm.DB, hasher *security.PasswordHasher) *service.UserService {
	return service.NewUserService(
		repository.NewUserRepository(db),
		repository.NewSessionRepository(db),
		hasher,
	)
}

func ProvideReadingService(db *gorm.DB, logger *slog.Logger) *service.ReadingService {
	return service.NewReadingService(
		repository.NewReadingRepository(db),
		repository.NewSettingRepository(db),
		logger,
	)
}

func ProvideSessionReaper(cfg *config.Config, db *gorm.DB, logger *slog.Logger) *service.SessionReaper {
	return service.NewSessionReaper(repository.NewSessionRepository(db), cfg.SweepInterval, logger)
}

// RateLimiters bundles the API-wide and auth-specific limiters.
type RateLimiters struct {
	API  *middleware.RateLimiter
	Auth *middleware.RateLimiter
}

// ProvideRateLimiters builds both limiters. With a Redis address configured
// the window is shared across replicas; without one each process counts
// alone.
func ProvideRateLimiters(cfg *config.Config, logger *slog.Logger) *RateLimiters {
	var backend middleware.Limiter
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		backend = middleware.NewRedisWindowLimiter(client, "esp32-backend")
		logger.Info("rate limiting via redis", "addr", cfg.RedisAddr)
	} else {
		backend = middleware.NewLocalWindowLimiter()
	}
	mode := middleware.FailClosed
	if cfg.RateLimitFailMode == string(middleware.FailOpen) {
		mode = middleware.FailOpen
	}
	return &RateLimiters{
		API:  middleware.NewRateLimiter(backend, cfg.APIRateLimitRPM, time.Minute, mode, "api"),
		Auth: middleware.NewRateLimiter(backend, cfg.AuthRateLimitRPM, time.Minute, mode, "auth"),
	}
}

func ProvideRouter(
	cfg *config.Config,
	db *gorm.DB,
	authSvc *service.AuthService,
	userSvc *service.UserService,
	readingSvc *service.ReadingService,
	limiters *RateLimiters,
) http.Handler {
	return router.NewRouter(router.Dependencies{
		AuthHandler:     handler.NewAuthHandler(authSvc),
		UserHandler:     handler.NewUserHandler(userSvc),
		SensorHandler:   handler.NewSensorHandler(readingSvc),
		AuthService:     authSvc,
		CORSOrigins:     cfg.CORSOrigins,
		APIRateLimiter:  limiters.API,
		AuthRateLimiter: limiters.Auth,
		PingDB: func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
		EnableOTelHTTP: cfg.OTELHTTPEnabled,
		Env:            cfg.Env,
		Version:        version,
	})
}

func ProvideServer(cfg *config.Config, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

func strPtr(v string) *string { return &v }
