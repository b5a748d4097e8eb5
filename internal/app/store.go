package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rogerbap/gaminglibrary/internal/infra"
	"github.com/rogerbap/gaminglibrary/internal/repository"
	"github.com/rogerbap/gaminglibrary/internal/repository/memory"
	"github.com/rogerbap/gaminglibrary/internal/repository/postgres"
	"github.com/rogerbap/gaminglibrary/internal/repository/sqlite"
)

// OpenStore opens the store selected by STORE_DRIVER and brings its schema
// up to date.
func OpenStore(ctx context.Context, cfg *infra.Config, logger *slog.Logger) (repository.Store, error) {
	switch cfg.StoreDriver {
	case infra.DriverPostgres:
		if err := infra.RunMigrations(cfg.DSN(), logger); err != nil {
			return nil, fmt.Errorf("migrate postgres: %w", err)
		}
		pool, err := infra.NewPostgresPool(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		logger.Info("connected to postgres")
		return postgres.New(pool), nil

	case infra.DriverSQLite:
		store, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		logger.Info("opened sqlite store", "path", cfg.SQLitePath)
		return store, nil

	case infra.DriverMemory:
		logger.Warn("using in-memory store; data is lost on exit")
		return memory.New(), nil

	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}
