//go:build integration

package testutil

import (
	"context"
	"fmt"
	"log/slog"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rogerbap/gaminglibrary/internal/app"
	"github.com/rogerbap/gaminglibrary/internal/auth"
	"github.com/rogerbap/gaminglibrary/internal/dependencies/mocks"
	"github.com/rogerbap/gaminglibrary/internal/infra"
	"github.com/rogerbap/gaminglibrary/internal/repository"
	"github.com/rogerbap/gaminglibrary/internal/repository/postgres"
)

const (
	TestJWTSecret = "integration-test-secret-at-least-32-bytes"
	TestDBHost    = "localhost"
	TestDBPort    = 5435
	TestDBUser    = "gaming"
	TestDBPass    = "gaming"
	TestDBName    = "gaminglibrary_test"
)

// Epoch is where every TestEnv clock starts.
var Epoch = time.Date(2026, 4, 2, 18, 30, 0, 0, time.UTC)

// TestEnv holds all resources for an integration test.
type TestEnv struct {
	Server   *httptest.Server
	Pool     *pgxpool.Pool
	Store    repository.Store
	Services app.Services
	JWTMgr   *auth.JWTManager
	Clock    *mocks.MockClock
	t        *testing.T
}

var (
	sharedPool *pgxpool.Pool
	poolOnce   sync.Once
	poolErr    error
)

// sharedStore keeps the pool open across tests.
type sharedStore struct {
	*postgres.Store
}

func (sharedStore) Close() error { return nil }

func testDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		TestDBUser, TestDBPass, TestDBHost, TestDBPort, TestDBName)
}

func bootstrapDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		TestDBUser, TestDBPass, TestDBHost, TestDBPort, "postgres")
}

func ensureTestDB() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	bPool, err := pgxpool.New(ctx, bootstrapDSN())
	if err != nil {
		return fmt.Errorf("connect bootstrap db: %w", err)
	}
	defer bPool.Close()

	var exists bool
	err = bPool.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM pg_database WHERE datname = $1)", TestDBName).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check db exists: %w", err)
	}

	if !exists {
		if _, err := bPool.Exec(ctx, fmt.Sprintf("CREATE DATABASE %s", TestDBName)); err != nil {
			return fmt.Errorf("create test db: %w", err)
		}
	}
	return nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func getSharedPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	poolOnce.Do(func() {
		if err := ensureTestDB(); err != nil {
			poolErr = err
			return
		}
		if err := infra.RunMigrations(testDSN(), quietLogger()); err != nil {
			poolErr = fmt.Errorf("run migrations: %w", err)
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		poolCfg, err := pgxpool.ParseConfig(testDSN())
		if err != nil {
			poolErr = fmt.Errorf("parse pool config: %w", err)
			return
		}
		poolCfg.MaxConns = 20
		poolCfg.MinConns = 1

		sharedPool, err = pgxpool.NewWithConfig(ctx, poolCfg)
		if err != nil {
			poolErr = fmt.Errorf("create pool: %w", err)
		}
	})

	if poolErr != nil {
		t.Fatalf("failed to initialize test pool: %v", poolErr)
	}
	return sharedPool
}

// NewStore returns a clean postgres store on the shared test database.
func NewStore(t *testing.T) repository.Store {
	t.Helper()
	env := &TestEnv{Pool: getSharedPool(t), t: t}
	env.CleanAll()
	return sharedStore{postgres.New(env.Pool)}
}

// NewTestEnv creates a test environment with an httptest.Server backed by the real router and test DB.
func NewTestEnv(t *testing.T) *TestEnv {
	t.Helper()

	pool := getSharedPool(t)
	store := sharedStore{postgres.New(pool)}
	clk := mocks.NewMockClock(Epoch)
	logger := quietLogger()

	jwtMgr := auth.NewJWTManager(TestJWTSecret, 8*time.Hour, clk)
	services := app.NewServices(store, app.ServiceOptions{}, clk, logger)

	router := app.NewRouter(app.RouterDeps{
		Store:          store,
		Services:       services,
		JWTMgr:         jwtMgr,
		CORSOrigins:    "*",
		IdempotencyTTL: time.Minute,
		Clock:          clk,
		Logger:         logger,
	})

	server := httptest.NewServer(router)

	env := &TestEnv{
		Server:   server,
		Pool:     pool,
		Store:    store,
		Services: services,
		JWTMgr:   jwtMgr,
		Clock:    clk,
		t:        t,
	}

	t.Cleanup(func() {
		server.Close()
		env.CleanAll()
	})

	// Clean before test to ensure isolation
	env.CleanAll()

	return env
}
