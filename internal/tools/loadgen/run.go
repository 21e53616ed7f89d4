package loadgen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// Config drives one traffic run against a live backend.
type Config struct {
	BaseURL     string
	Profile     string // ingest, read or mixed
	Devices     int
	Duration    time.Duration
	RPS         int
	Concurrency int
	Seed        int64
}

type Result struct {
	TotalRequests int64
	Failures      int64
	StatusClasses map[string]int64
}

// Run fires simulated ESP32 traffic at the backend until the duration
// elapses or the context is cancelled.
func Run(ctx context.Context, cfg Config) (*Result, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("loadgen: base URL required")
	}
	if cfg.Devices <= 0 {
		cfg.Devices = 3
	}
	if cfg.Duration <= 0 {
		cfg.Duration = 10 * time.Second
	}
	if cfg.RPS <= 0 {
		cfg.RPS = 10
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	profile := normalizeProfile(cfg.Profile)

	ctx, cancel := context.WithTimeout(ctx, cfg.Duration)
	defer cancel()

	var total, failures int64
	classes := make(map[string]int64)
	var classMu sync.Mutex

	client := &http.Client{Timeout: 10 * time.Second}
	interval := time.Second / time.Duration(cfg.RPS)
	work := make(chan int)

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < cfg.Concurrency; i++ {
		worker := i
		g.Go(func() error {
			rng := rand.New(rand.NewSource(cfg.Seed + int64(worker)))
			for seq := range work {
				status, err := fire(gctx, client, cfg, profile, rng, seq)
				atomic.AddInt64(&total, 1)
				if err != nil || status >= 400 {
					atomic.AddInt64(&failures, 1)
				}
				classMu.Lock()
				classes[classifyStatusClass(status)]++
				classMu.Unlock()
			}
			return nil
		})
	}

	g.Go(func() error {
		defer close(work)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		seq := 0
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				select {
				case work <- seq:
					seq++
				case <-gctx.Done():
					return nil
				}
			}
		}
	})

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		return nil, err
	}
	return &Result{TotalRequests: total, Failures: failures, StatusClasses: classes}, nil
}

func fire(ctx context.Context, client *http.Client, cfg Config, profile string, rng *rand.Rand, seq int) (int, error) {
	readOnly := profile == "read" || (profile == "mixed" && seq%3 != 0)
	if readOnly {
		targets := []string{"/api/sensors/", "/api/sensors/latest", "/api/sensors/stats"}
		return get(ctx, client, cfg.BaseURL+targets[rng.Intn(len(targets))])
	}
	return postReading(ctx, client, cfg, rng)
}

func postReading(ctx context.Context, client *http.Client, cfg Config, rng *rand.Rand) (int, error) {
	payload := map[string]any{
		"temperatura": 18 + rng.Float64()*14,
		"humedad":     35 + rng.Float64()*40,
		"gas":         80 + rng.Float64()*400,
		"esp32_id":    fmt.Sprintf("ESP32_%03d", 1+rng.Intn(cfg.Devices)),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.BaseURL+"/api/sensors/", bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	defer func() { _ = resp.Body.Close() }()
	return resp.StatusCode, nil
}

func get(ctx context.Context, client *http.Client, url string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	defer func() { _ = resp.Body.Close() }()
	return resp.StatusCode, nil
}

func normalizeProfile(profile string) string {
	profile = strings.ToLower(strings.TrimSpace(profile))
	switch profile {
	case "ingest", "read", "mixed":
		return profile
	default:
		return "mixed"
	}
}

func classifyStatusClass(status int) string {
	switch {
	case status >= 200 && status < 300:
		return "2xx"
	case status >= 300 && status < 400:
		return "3xx"
	case status >= 400 && status < 500:
		return "4xx"
	case status >= 500 && status < 600:
		return "5xx"
	default:
		return "other"
	}
}
