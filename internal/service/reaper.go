package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/telemetrix/esp32-backend/internal/observability"
	"github.com/telemetrix/esp32-backend/internal/repository"
)

// SessionReaper periodically deletes dead ledger rows. It is housekeeping,
// not enforcement: validation rejects expired and revoked sessions whether or
// not the reaper has run.
type SessionReaper struct {
	sessions repository.SessionRepository
	interval time.Duration
	logger   *slog.Logger
}

func NewSessionReaper(sessions repository.SessionRepository, interval time.Duration, logger *slog.Logger) *SessionReaper {
	return &SessionReaper{sessions: sessions, interval: interval, logger: logger}
}

// Run sweeps once immediately, then on every tick until the context is
// cancelled. Sweep errors are logged and the loop keeps going.
func (r *SessionReaper) Run(ctx context.Context) error {
	r.sweep(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.sweep(ctx)
		}
	}
}

func (r *SessionReaper) sweep(ctx context.Context) {
	reaped, err := r.sessions.Reap()
	if err != nil {
		r.logger.ErrorContext(ctx, "session sweep failed", "error", err)
		return
	}
	observability.RecordSessionsReaped(reaped)
	if reaped > 0 {
		r.logger.InfoContext(ctx, "session sweep", "reaped", reaped)
	}
}
