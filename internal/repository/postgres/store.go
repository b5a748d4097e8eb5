// Package postgres is the pgx-backed repository.Store.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rogerbap/gaminglibrary/internal/repository"
)

// DBTX abstracts pgx.Tx and pgxpool.Pool so repositories work with both.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

const (
	uniqueViolation    = "23505"
	emailIndex         = "players_email_key"
	activeSessionIndex = "game_sessions_one_active_per_player"
)

// Store runs queries against a pool, or against one transaction when
// obtained through WithTx.
type Store struct {
	pool *pgxpool.Pool
	db   DBTX
	inTx bool
}

var _ repository.Store = (*Store)(nil)

// New wraps an open pool. Close releases it.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool, db: pool}
}

func (s *Store) Players() repository.PlayerRepository   { return &playerRepo{db: s.db} }
func (s *Store) Sessions() repository.SessionRepository { return &sessionRepo{db: s.db} }
func (s *Store) Outbox() repository.OutboxRepository    { return &outboxRepo{db: s.db, inTx: s.inTx} }

func (s *Store) WithTx(ctx context.Context, fn func(tx repository.Store) error) error {
	if s.inTx {
		return fn(s)
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&Store{pool: s.pool, db: tx, inTx: true}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// LocksOutboxRows reports that outbox fetches inside WithTx use
// FOR UPDATE SKIP LOCKED.
func (s *Store) LocksOutboxRows() bool { return true }

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation && pgErr.ConstraintName == constraint
}
