package app

import (
	"context"
	"log/slog"

	"github.com/telemetrix/esp32-backend/internal/config"
	"github.com/telemetrix/esp32-backend/internal/observability"
)

// Telemetry carries the process logger together with the OTel runtime it is
// bridged to, so both come up and shut down as one unit.
type Telemetry struct {
	Logger  *slog.Logger
	Runtime *observability.Runtime
}

func ProvideTelemetry(ctx context.Context, cfg *config.Config) (*Telemetry, error) {
	logger, loggerProvider, err := observability.NewLogger(ctx, cfg)
	if err != nil {
		return nil, err
	}
	runtime, err := observability.InitRuntime(ctx, cfg, logger, loggerProvider)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)
	return &Telemetry{Logger: logger, Runtime: runtime}, nil
}

func ProvideLogger(t *Telemetry) *slog.Logger                  { return t.Logger }
func ProvideObservability(t *Telemetry) *observability.Runtime { return t.Runtime }
