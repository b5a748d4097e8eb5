package service

import (
	"context"
	"log/slog"
	"time"
)

// Reaper periodically ends sessions abandoned past the maximum duration so
// a crashed game does not lock its player out of new sessions.
type Reaper struct {
	sessions *SessionService
	interval time.Duration
	logger   *slog.Logger
}

// NewReaper creates a Reaper running every interval (default one minute).
func NewReaper(sessions *SessionService, interval time.Duration, logger *slog.Logger) *Reaper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Reaper{sessions: sessions, interval: interval, logger: logger}
}

// Start runs the reaper in a goroutine until ctx is cancelled. The returned
// channel closes once the loop has exited.
func (r *Reaper) Start(ctx context.Context) <-chan struct{} {
	r.logger.Info("session reaper started", "interval", r.interval)

	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				r.logger.Info("session reaper stopped")
				return
			case <-ticker.C:
				r.RunOnce(ctx)
			}
		}
	}()
	return done
}

// RunOnce performs a single expiry pass and returns how many sessions ended.
func (r *Reaper) RunOnce(ctx context.Context) int {
	n, err := r.sessions.ExpireStaleSessions(ctx)
	if err != nil && ctx.Err() == nil {
		r.logger.Error("session reaper pass failed", "error", err)
	}
	return n
}
