package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/telemetrix/esp32-backend/internal/config"
	"github.com/telemetrix/esp32-backend/internal/observability"
	"github.com/telemetrix/esp32-backend/internal/service"
)

type App struct {
	Config        *config.Config
	Logger        *slog.Logger
	Server        *http.Server
	Reaper        *service.SessionReaper
	Observability *observability.Runtime
}

func New(cfg *config.Config, logger *slog.Logger, server *http.Server, reaper *service.SessionReaper, runtime *observability.Runtime) *App {
	return &App{Config: cfg, Logger: logger, Server: server, Reaper: reaper, Observability: runtime}
}

// Run serves HTTP and the session reaper until ctx is cancelled, then drains
// connections and flushes telemetry.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.Logger.Info("http server listening", "addr", a.Server.Addr)
		if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		if err := a.Reaper.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		a.Logger.Info("shutting down")
		return a.Server.Shutdown(shutdownCtx)
	})

	err := g.Wait()

	if a.Observability != nil {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := a.Observability.Shutdown(flushCtx); shutdownErr != nil {
			a.Logger.Warn("telemetry shutdown incomplete", "error", shutdownErr)
		}
	}
	return err
}
