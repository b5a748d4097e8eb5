//go:build integration

package testutil

import (
	"context"
	"time"
)

// CleanAll truncates every gaming table.
func (env *TestEnv) CleanAll() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	tables := []string{
		"event_outbox",
		"game_sessions",
		"players",
	}
	for _, table := range tables {
		if _, err := env.Pool.Exec(ctx, "TRUNCATE TABLE "+table+" CASCADE"); err != nil {
			env.t.Fatalf("truncate %s: %v", table, err)
		}
	}
}
