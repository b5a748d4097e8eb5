package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rogerbap/gaminglibrary/internal/app"
	"github.com/rogerbap/gaminglibrary/internal/auth"
	"github.com/rogerbap/gaminglibrary/internal/dependencies/clock"
	"github.com/rogerbap/gaminglibrary/internal/events"
	"github.com/rogerbap/gaminglibrary/internal/guard"
	"github.com/rogerbap/gaminglibrary/internal/infra"
	"github.com/rogerbap/gaminglibrary/internal/service"
)

func main() {
	level := new(slog.LevelVar)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if err := run(logger, level); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger, level *slog.LevelVar) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load config
	cfg, err := infra.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	level.Set(cfg.SlogLevel())

	shutdownTracing, err := infra.SetupTracing(ctx, cfg, "gaminglibrary-api")
	if err != nil {
		return fmt.Errorf("setup tracing: %w", err)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Warn("tracing shutdown failed", "error", err)
		}
	}()

	store, err := app.OpenStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	backends, err := app.OpenBackends(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer backends.Close()

	if err := backends.RebuildLeaderboard(ctx, store); err != nil {
		logger.Warn("leaderboard rebuild failed; serving from store until events arrive", "error", err)
	}

	clk := clock.New()
	hub := infra.NewWSHub(cfg.AllowedOrigins(), logger)
	services := app.NewServices(store, app.ServiceOptions{
		Board:             leaderboardReader(backends),
		SessionStartRate:  cfg.SessionStartRate,
		SessionStartBurst: cfg.SessionStartBurst,
	}, clk, logger)

	// Background work stops before the store closes.
	bgCtx, stopBackground := context.WithCancel(ctx)
	var background []<-chan struct{}
	defer func() {
		stopBackground()
		for _, done := range background {
			<-done
		}
	}()

	if backends.Relay != nil {
		// Another process dispatches; its events reach local sockets through Redis.
		done, err := backends.Relay.Run(bgCtx, hub)
		if err != nil {
			return fmt.Errorf("start live relay: %w", err)
		}
		background = append(background, done)
	}

	if cfg.DispatchInProcess {
		sinks := backends.Sinks(logger)
		if backends.Relay == nil {
			sinks = append(sinks, hub)
		}
		breaker := guard.NewCircuitBreaker(5, 30*time.Second, clk)
		dispatcher := events.NewDispatcher(store, sinks, breaker, events.Config{
			Interval:  cfg.OutboxPollInterval,
			BatchSize: cfg.OutboxBatchSize,
		}, logger)
		background = append(background, dispatcher.Start(bgCtx))

		reaper := service.NewReaper(services.Sessions, cfg.ReaperInterval, logger)
		background = append(background, reaper.Start(bgCtx))
	}

	router := app.NewRouter(app.RouterDeps{
		Store:          store,
		Services:       services,
		JWTMgr:         auth.NewJWTManager(cfg.JWTSecret, cfg.JWTAdminExpiry, clk),
		Hub:            hub,
		CORSOrigins:    cfg.CORSAllowedOrigins,
		IdempotencyTTL: cfg.IdempotencyTTL,
		Clock:          clk,
		Logger:         logger,
	})

	// Start server
	addr := fmt.Sprintf(":%d", cfg.APIPort)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server starting", "addr", addr, "store", cfg.StoreDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}

	// Shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	hub.Shutdown(shutdownCtx)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	logger.Info("server stopped gracefully")
	return nil
}

func leaderboardReader(b *app.Backends) service.LeaderboardReader {
	if b.Board == nil {
		return nil
	}
	return b.Board
}
