package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rogerbap/gaminglibrary/internal/dependencies/clock"
	"github.com/rogerbap/gaminglibrary/internal/domain"
	"github.com/rogerbap/gaminglibrary/internal/repository"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// LeaderboardReader serves the ranking from a cache ahead of the store.
type LeaderboardReader interface {
	Top(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error)
}

// PlayerService manages player accounts and the leaderboard.
type PlayerService struct {
	store  repository.Store
	board  LeaderboardReader
	clock  clock.Clock
	logger *slog.Logger
}

// NewPlayerService creates a PlayerService. A nil board serves the
// leaderboard straight from the store.
func NewPlayerService(store repository.Store, board LeaderboardReader, clk clock.Clock, logger *slog.Logger) *PlayerService {
	return &PlayerService{store: store, board: board, clock: clk, logger: logger}
}

// CreatePlayer registers a new account. Emails are unique.
func (s *PlayerService) CreatePlayer(ctx context.Context, name, email string) (_ *domain.Player, err error) {
	ctx, span := tracer.Start(ctx, "PlayerService.CreatePlayer")
	defer func() { endSpan(span, err) }()

	events := &domain.EventLog{}
	player, err := domain.NewPlayer(name, email, s.clock.Now(), events)
	if err != nil {
		return nil, err
	}

	err = s.store.WithTx(ctx, func(tx repository.Store) error {
		exists, err := tx.Players().EmailExists(ctx, player.Email)
		if err != nil {
			return fmt.Errorf("check email: %w", err)
		}
		if exists {
			return domain.ErrConflict(fmt.Sprintf("email %s is already registered", player.Email))
		}
		if err := tx.Players().Create(ctx, player); err != nil {
			return fmt.Errorf("create player: %w", err)
		}
		return writeOutbox(ctx, tx, events)
	})
	if err != nil {
		return nil, storeError("create player", err)
	}

	span.SetAttributes(attribute.String("player.id", player.ID.String()))
	s.logger.Info("player created", "player_id", player.ID.String())
	return player, nil
}

func (s *PlayerService) GetPlayer(ctx context.Context, id domain.PlayerID) (*domain.Player, error) {
	player, err := s.store.Players().FindByID(ctx, id)
	if err != nil {
		return nil, domain.ErrInternal("find player", err)
	}
	if player == nil {
		return nil, domain.ErrNotFound("player", id.String())
	}
	return player, nil
}

// UpdatePlayerInfo replaces the display name and email.
func (s *PlayerService) UpdatePlayerInfo(ctx context.Context, id domain.PlayerID, name, email string) (_ *domain.Player, err error) {
	ctx, span := tracer.Start(ctx, "PlayerService.UpdatePlayerInfo", trace.WithAttributes(
		attribute.String("player.id", id.String()),
	))
	defer func() { endSpan(span, err) }()

	cleanName, err := domain.NormalizePlayerName(name)
	if err != nil {
		return nil, domain.ErrValidation(err.Error())
	}
	cleanEmail, err := domain.NormalizeEmail(email)
	if err != nil {
		return nil, domain.ErrValidation(err.Error())
	}

	var player *domain.Player
	err = s.store.WithTx(ctx, func(tx repository.Store) error {
		player, err = tx.Players().FindByID(ctx, id)
		if err != nil {
			return fmt.Errorf("find player: %w", err)
		}
		if player == nil {
			return domain.ErrNotFound("player", id.String())
		}

		if cleanEmail != player.Email {
			owner, err := tx.Players().FindByEmail(ctx, cleanEmail)
			if err != nil {
				return fmt.Errorf("find player by email: %w", err)
			}
			if owner != nil && owner.ID != id {
				return domain.ErrConflict(fmt.Sprintf("email %s is already registered", cleanEmail))
			}
		}

		events := &domain.EventLog{}
		if err := player.UpdateInfo(cleanName, cleanEmail, s.clock.Now(), events); err != nil {
			return err
		}
		if err := tx.Players().Update(ctx, player); err != nil {
			return fmt.Errorf("update player: %w", err)
		}
		return writeOutbox(ctx, tx, events)
	})
	if err != nil {
		return nil, storeError("update player", err)
	}

	s.logger.Info("player info updated", "player_id", id.String())
	return player, nil
}

// DeactivatePlayer blocks the account from starting sessions. Deactivating an
// inactive player is a no-op.
func (s *PlayerService) DeactivatePlayer(ctx context.Context, id domain.PlayerID) (*domain.Player, error) {
	return s.setActive(ctx, id, false)
}

// ReactivatePlayer restores a deactivated account.
func (s *PlayerService) ReactivatePlayer(ctx context.Context, id domain.PlayerID) (*domain.Player, error) {
	return s.setActive(ctx, id, true)
}

func (s *PlayerService) setActive(ctx context.Context, id domain.PlayerID, active bool) (_ *domain.Player, err error) {
	op := "PlayerService.DeactivatePlayer"
	if active {
		op = "PlayerService.ReactivatePlayer"
	}
	ctx, span := tracer.Start(ctx, op, trace.WithAttributes(attribute.String("player.id", id.String())))
	defer func() { endSpan(span, err) }()

	var (
		player  *domain.Player
		changed bool
	)
	err = s.store.WithTx(ctx, func(tx repository.Store) error {
		player, err = tx.Players().FindByID(ctx, id)
		if err != nil {
			return fmt.Errorf("find player: %w", err)
		}
		if player == nil {
			return domain.ErrNotFound("player", id.String())
		}
		if player.Active == active {
			return nil
		}

		now := s.clock.Now()
		events := &domain.EventLog{}
		if active {
			player.Reactivate(now, events)
		} else {
			player.Deactivate(now, events)
		}
		if err := tx.Players().Update(ctx, player); err != nil {
			return fmt.Errorf("update player: %w", err)
		}
		changed = true
		return writeOutbox(ctx, tx, events)
	})
	if err != nil {
		return nil, storeError("set player active", err)
	}

	if changed {
		s.logger.Info("player activation changed", "player_id", id.String(), "active", active)
	}
	return player, nil
}

// Leaderboard returns the top qualifying players. The cache is tried first;
// on a cache error the store answers instead.
func (s *PlayerService) Leaderboard(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	limit, err := listLimit(limit)
	if err != nil {
		return nil, err
	}

	if s.board != nil {
		entries, err := s.board.Top(ctx, limit)
		if err == nil {
			return entries, nil
		}
		s.logger.Warn("leaderboard cache unavailable, reading store", "error", err)
	}

	players, err := s.store.Players().TopByScore(ctx, limit)
	if err != nil {
		return nil, domain.ErrInternal("load leaderboard", err)
	}
	entries := make([]domain.LeaderboardEntry, 0, len(players))
	for i := range players {
		entries = append(entries, domain.NewLeaderboardEntry(i+1, &players[i]))
	}
	return entries, nil
}
