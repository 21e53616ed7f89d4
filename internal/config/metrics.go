package config

import (
	"context"
	"strings"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var loadCounter = sync.OnceValue(func() metric.Int64Counter {
	counter, err := otel.Meter("esp32-backend").Int64Counter("config.load.events")
	if err != nil {
		return nil
	}
	return counter
})

// recordConfigValidationEvent counts each config load so a crash-looping
// deployment with a bad environment shows up in metrics, not just in logs.
func recordConfigValidationEvent(ctx context.Context, env, outcome, errorClass string) {
	counter := loadCounter()
	if counter == nil {
		return
	}
	if env = strings.TrimSpace(strings.ToLower(env)); env == "" {
		env = "unknown"
	}
	counter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("env", env),
		attribute.String("outcome", outcome),
		attribute.String("error_class", errorClass),
	))
}

func classifyConfigLoadError(err error) string {
	if err == nil {
		return "none"
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "validate config:"):
		return "validation"
	case strings.Contains(msg, "parse "):
		return "parse"
	default:
		return "load"
	}
}
