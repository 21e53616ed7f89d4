//go:build wireinject
// +build wireinject

package app

import (
	"context"

	"github.com/google/wire"

	"github.com/telemetrix/esp32-backend/internal/config"
)

func InitializeApp(ctx context.Context) (*App, error) {
	wire.Build(
		config.Load,
		ProvideTelemetry,
		ProvideLogger,
		ProvideObservability,
		ProvideDatabase,
		ProvideTokenManager,
		ProvideHasher,
		ProvideAuthService,
		ProvideUserService,
		ProvideReadingService,
		ProvideSessionReaper,
		ProvideRateLimiters,
		ProvideRouter,
		ProvideServer,
		New,
	)
	return nil, nil
}
