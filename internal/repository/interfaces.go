// Package repository defines the storage contract shared by the postgres,
// sqlite and in-memory stores.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/rogerbap/gaminglibrary/internal/domain"
)

// Unique-index violations. Services translate these into ConflictError.
var (
	ErrDuplicateEmail      = errors.New("email already registered")
	ErrActiveSessionExists = errors.New("player already has an active session")
)

// Lookups return (nil, nil) when the row does not exist.

// PlayerRepository provides access to players.
type PlayerRepository interface {
	FindByID(ctx context.Context, id domain.PlayerID) (*domain.Player, error)
	FindByEmail(ctx context.Context, email string) (*domain.Player, error)
	EmailExists(ctx context.Context, email string) (bool, error)

	// Create inserts a new player. Returns ErrDuplicateEmail when the email is taken.
	Create(ctx context.Context, p *domain.Player) error

	// Update replaces every mutable column of an existing player.
	Update(ctx context.Context, p *domain.Player) error

	// TopByScore returns active players with at least one completed game,
	// highest score first.
	TopByScore(ctx context.Context, limit int) ([]domain.Player, error)

	// ListQualifying pages through the same players as TopByScore in id
	// order, starting after the given id. A zero id starts from the beginning.
	ListQualifying(ctx context.Context, after domain.PlayerID, limit int) ([]domain.Player, error)
}

// SessionFilter narrows ListByPlayer. A zero GameType matches every game.
type SessionFilter struct {
	GameType domain.GameType
	Limit    int
}

// SessionRepository provides access to game_sessions.
type SessionRepository interface {
	FindByID(ctx context.Context, id domain.SessionID) (*domain.GameSession, error)
	FindActiveByPlayer(ctx context.Context, playerID domain.PlayerID) (*domain.GameSession, error)

	// ListByPlayer returns the player's sessions, newest first.
	ListByPlayer(ctx context.Context, playerID domain.PlayerID, filter SessionFilter) ([]domain.GameSession, error)

	// Create inserts a new session. Returns ErrActiveSessionExists when the
	// player already has one in progress.
	Create(ctx context.Context, s *domain.GameSession) error
	Update(ctx context.Context, s *domain.GameSession) error

	// ListFlagged returns sessions flagged for review, most recently ended first.
	ListFlagged(ctx context.Context, limit int) ([]domain.GameSession, error)

	// ListActiveStartedBefore returns active sessions older than cutoff, oldest first.
	ListActiveStartedBefore(ctx context.Context, cutoff time.Time, limit int) ([]domain.GameSession, error)
}

// OutboxRepository provides access to the event_outbox table.
type OutboxRepository interface {
	// Insert writes an outbox event in the same transaction as the entities.
	Insert(ctx context.Context, draft domain.OutboxDraft) error

	// FetchUnpublished returns pending events in insertion order. Inside a
	// transaction the rows stay claimed until it ends.
	FetchUnpublished(ctx context.Context, limit int) ([]domain.OutboxDraft, error)

	// MarkPublished removes delivered events by sequence id.
	MarkPublished(ctx context.Context, ids []int64) error
}

// Store groups the repositories behind one transaction boundary.
type Store interface {
	Players() PlayerRepository
	Sessions() SessionRepository
	Outbox() OutboxRepository

	// WithTx runs fn against a transactional view of the store. Returning an
	// error rolls every write back. Nested calls join the outer transaction.
	WithTx(ctx context.Context, fn func(tx Store) error) error

	Ping(ctx context.Context) error
	Close() error
}

// OutboxRowLocker is implemented by stores whose transactions lock the
// outbox rows they fetch, so several dispatchers can drain one outbox.
type OutboxRowLocker interface {
	LocksOutboxRows() bool
}

// Bounds shared by every store's list queries.
const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// ClampLimit maps a caller-supplied limit into 1..MaxListLimit, using
// DefaultListLimit for non-positive values.
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	return min(limit, MaxListLimit)
}
