package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rogerbap/gaminglibrary/internal/app"
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
		logger.Error("outbox consumer failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger, level *slog.LevelVar) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := infra.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if cfg.StoreDriver == infra.DriverMemory {
		return fmt.Errorf("the outbox consumer needs a shared store; STORE_DRIVER=memory only works with DISPATCH_IN_PROCESS in the api")
	}
	level.Set(cfg.SlogLevel())

	shutdownTracing, err := infra.SetupTracing(ctx, cfg, "gaminglibrary-outbox-consumer")
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
		logger.Warn("leaderboard rebuild failed", "error", err)
	}

	clk := clock.New()
	services := app.NewServices(store, app.ServiceOptions{}, clk, logger)

	breaker := guard.NewCircuitBreaker(5, 30*time.Second, clk)
	dispatcher := events.NewDispatcher(store, backends.Sinks(logger), breaker, events.Config{
		Interval:  cfg.OutboxPollInterval,
		BatchSize: cfg.OutboxBatchSize,
	}, logger)
	reaper := service.NewReaper(services.Sessions, cfg.ReaperInterval, logger)

	logger.Info("outbox-consumer starting",
		"poll_interval", cfg.OutboxPollInterval,
		"batch_size", cfg.OutboxBatchSize,
		"reaper_interval", cfg.ReaperInterval,
	)
	dispatched := dispatcher.Start(ctx)
	reaped := reaper.Start(ctx)

	<-ctx.Done()
	logger.Info("outbox-consumer shutting down")
	<-dispatched
	<-reaped
	return nil
}
