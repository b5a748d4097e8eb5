package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rogerbap/gaminglibrary/internal/dependencies/clock"
	"github.com/rogerbap/gaminglibrary/internal/domain"
	"github.com/rogerbap/gaminglibrary/internal/guard"
	"github.com/rogerbap/gaminglibrary/internal/metrics"
	"github.com/rogerbap/gaminglibrary/internal/policy"
	"github.com/rogerbap/gaminglibrary/internal/repository"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// expireBatchSize bounds how many stale sessions one reaper pass loads.
const expireBatchSize = 100

// SessionService runs the game session lifecycle.
type SessionService struct {
	store   repository.Store
	scoring domain.ScoringPolicy
	limiter *guard.RateLimiter
	clock   clock.Clock
	logger  *slog.Logger
}

// NewSessionService creates a SessionService. A nil limiter disables the
// per-player start rate limit.
func NewSessionService(
	store repository.Store,
	scoring domain.ScoringPolicy,
	limiter *guard.RateLimiter,
	clk clock.Clock,
	logger *slog.Logger,
) *SessionService {
	return &SessionService{
		store:   store,
		scoring: scoring,
		limiter: limiter,
		clock:   clk,
		logger:  logger,
	}
}

// EndResult is the outcome of ending a session.
type EndResult struct {
	Session *domain.GameSession      `json:"session"`
	Rating  int                      `json:"performance_rating"`
	Scored  bool                     `json:"score_credited"`
	Risk    policy.SessionRiskResult `json:"risk"`
}

// SessionQuery narrows ListPlayerSessions. A zero GameType matches every game
// and a zero Limit uses the default page size.
type SessionQuery struct {
	GameType domain.GameType
	Limit    int
}

// StartSession opens a new session for the player. It fails with NotFound for
// an unknown player, AccountInactive for a deactivated one and Conflict when
// the player already has a session in progress.
func (s *SessionService) StartSession(ctx context.Context, playerID domain.PlayerID, gameType domain.GameType) (_ *domain.GameSession, err error) {
	ctx, span := tracer.Start(ctx, "SessionService.StartSession", trace.WithAttributes(
		attribute.String("player.id", playerID.String()),
		attribute.String("game.type", gameType.String()),
	))
	defer func() { endSpan(span, err) }()

	if !gameType.Valid() {
		return nil, domain.ErrValidation(fmt.Sprintf("unknown game type %d", gameType))
	}
	if s.limiter != nil {
		if res := s.limiter.Check(ctx, "session_start:"+playerID.String()); !res.Allowed {
			return nil, domain.ErrRateLimited(res.Reason)
		}
	}

	var session *domain.GameSession
	err = s.store.WithTx(ctx, func(tx repository.Store) error {
		player, err := tx.Players().FindByID(ctx, playerID)
		if err != nil {
			return fmt.Errorf("find player: %w", err)
		}
		if player == nil {
			return domain.ErrNotFound("player", playerID.String())
		}
		if !player.Active {
			return domain.ErrInactiveAccount(playerID.String())
		}

		active, err := tx.Sessions().FindActiveByPlayer(ctx, playerID)
		if err != nil {
			return fmt.Errorf("find active session: %w", err)
		}
		if active != nil {
			return domain.ErrConflict(fmt.Sprintf("player %s already has active session %s", playerID, active.ID))
		}

		now := s.clock.Now()
		events := &domain.EventLog{}
		session, err = domain.NewGameSession(playerID, gameType, now, events)
		if err != nil {
			return err
		}
		player.RecordGameStart(now)

		if err := tx.Sessions().Create(ctx, session); err != nil {
			return fmt.Errorf("create session: %w", err)
		}
		if err := tx.Players().Update(ctx, player); err != nil {
			return fmt.Errorf("update player: %w", err)
		}
		return writeOutbox(ctx, tx, events)
	})
	if err != nil {
		return nil, storeError("start session", err)
	}

	metrics.SessionStarted(gameType.String())
	s.logger.Info("game session started",
		"session_id", session.ID.String(),
		"player_id", playerID.String(),
		"game_type", gameType.String(),
	)
	return session, nil
}

// EndSession applies the final game data and score, ends the session and
// credits the player when the session qualifies for scoring.
func (s *SessionService) EndSession(
	ctx context.Context,
	sessionID domain.SessionID,
	finalScore int64,
	completed bool,
	finalGameData domain.GameData,
) (_ *EndResult, err error) {
	ctx, span := tracer.Start(ctx, "SessionService.EndSession", trace.WithAttributes(
		attribute.String("session.id", sessionID.String()),
	))
	defer func() { endSpan(span, err) }()

	var result *EndResult
	err = s.store.WithTx(ctx, func(tx repository.Store) error {
		session, err := tx.Sessions().FindByID(ctx, sessionID)
		if err != nil {
			return fmt.Errorf("find session: %w", err)
		}
		if session == nil {
			return domain.ErrNotFound("game session", sessionID.String())
		}
		if !session.IsActive() {
			return domain.ErrConflict(fmt.Sprintf("game session %s has already ended", sessionID))
		}

		now := s.clock.Now()
		events := &domain.EventLog{}
		if err := session.ApplyGameData(finalGameData); err != nil {
			return err
		}
		if err := session.SetFinalScore(finalScore); err != nil {
			return err
		}
		if err := session.End(completed, now, events); err != nil {
			return err
		}

		scored := session.QualifiesForScoring(now)
		if scored {
			player, err := tx.Players().FindByID(ctx, session.PlayerID)
			if err != nil {
				return fmt.Errorf("find player: %w", err)
			}
			if player == nil {
				return domain.ErrNotFound("player", session.PlayerID.String())
			}
			player.UpdateScore(session.Score, session.CompletedSuccessfully, now, events)
			if err := tx.Players().Update(ctx, player); err != nil {
				return fmt.Errorf("update player: %w", err)
			}
		}

		session.FlaggedForReview = session.ShouldFlagForReview(now)
		if err := tx.Sessions().Update(ctx, session); err != nil {
			return fmt.Errorf("update session: %w", err)
		}
		if err := writeOutbox(ctx, tx, events); err != nil {
			return err
		}

		result = &EndResult{
			Session: session,
			Rating:  session.CalculatePerformanceRating(s.scoring, now),
			Scored:  scored,
			Risk:    policy.EvaluateSessionRisk(policy.SignalsFromSession(session, now)),
		}
		return nil
	})
	if err != nil {
		return nil, storeError("end session", err)
	}

	session := result.Session
	metrics.SessionEnded(session.GameType.String(), session.CompletedSuccessfully, result.Scored, session.FlaggedForReview, result.Rating)
	s.logger.Info("game session ended",
		"session_id", session.ID.String(),
		"player_id", session.PlayerID.String(),
		"score", session.Score,
		"completed", session.CompletedSuccessfully,
		"scored", result.Scored,
		"rating", result.Rating,
	)
	if session.FlaggedForReview {
		s.logger.Warn("game session flagged for review",
			"session_id", session.ID.String(),
			"player_id", session.PlayerID.String(),
			"risk_level", string(result.Risk.Level),
			"risk_flags", result.Risk.Flags,
		)
	}
	return result, nil
}

// UpdateSessionData merges data into an active session's game data.
func (s *SessionService) UpdateSessionData(ctx context.Context, sessionID domain.SessionID, data domain.GameData) (_ *domain.GameSession, err error) {
	ctx, span := tracer.Start(ctx, "SessionService.UpdateSessionData", trace.WithAttributes(
		attribute.String("session.id", sessionID.String()),
	))
	defer func() { endSpan(span, err) }()

	if len(data) == 0 {
		return nil, domain.ErrValidation("game data is required")
	}

	var session *domain.GameSession
	err = s.store.WithTx(ctx, func(tx repository.Store) error {
		session, err = tx.Sessions().FindByID(ctx, sessionID)
		if err != nil {
			return fmt.Errorf("find session: %w", err)
		}
		if session == nil {
			return domain.ErrNotFound("game session", sessionID.String())
		}
		if err := session.ApplyGameData(data); err != nil {
			return err
		}
		if err := tx.Sessions().Update(ctx, session); err != nil {
			return fmt.Errorf("update session: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, storeError("update session data", err)
	}
	return session, nil
}

func (s *SessionService) GetSession(ctx context.Context, sessionID domain.SessionID) (*domain.GameSession, error) {
	session, err := s.store.Sessions().FindByID(ctx, sessionID)
	if err != nil {
		return nil, domain.ErrInternal("find session", err)
	}
	if session == nil {
		return nil, domain.ErrNotFound("game session", sessionID.String())
	}
	return session, nil
}

// ListPlayerSessions returns the player's sessions, newest first.
func (s *SessionService) ListPlayerSessions(ctx context.Context, playerID domain.PlayerID, q SessionQuery) ([]domain.GameSession, error) {
	limit, err := listLimit(q.Limit)
	if err != nil {
		return nil, err
	}
	if q.GameType != 0 && !q.GameType.Valid() {
		return nil, domain.ErrValidation(fmt.Sprintf("unknown game type %d", q.GameType))
	}

	player, err := s.store.Players().FindByID(ctx, playerID)
	if err != nil {
		return nil, domain.ErrInternal("find player", err)
	}
	if player == nil {
		return nil, domain.ErrNotFound("player", playerID.String())
	}

	sessions, err := s.store.Sessions().ListByPlayer(ctx, playerID, repository.SessionFilter{GameType: q.GameType, Limit: limit})
	if err != nil {
		return nil, domain.ErrInternal("list sessions", err)
	}
	return sessions, nil
}

// ListFlaggedSessions returns the review queue, most recently ended first.
func (s *SessionService) ListFlaggedSessions(ctx context.Context, limit int) ([]domain.GameSession, error) {
	limit, err := listLimit(limit)
	if err != nil {
		return nil, err
	}
	sessions, err := s.store.Sessions().ListFlagged(ctx, limit)
	if err != nil {
		return nil, domain.ErrInternal("list flagged sessions", err)
	}
	return sessions, nil
}

// ExpireStaleSessions ends every session that has been active for longer
// than MaxSessionDuration, as not completed. It returns how many it ended.
func (s *SessionService) ExpireStaleSessions(ctx context.Context) (expired int, err error) {
	ctx, span := tracer.Start(ctx, "SessionService.ExpireStaleSessions")
	defer func() {
		span.SetAttributes(attribute.Int("sessions.expired", expired))
		endSpan(span, err)
	}()

	cutoff := s.clock.Now().Add(-domain.MaxSessionDuration)
	for {
		stale, err := s.store.Sessions().ListActiveStartedBefore(ctx, cutoff, expireBatchSize)
		if err != nil {
			return expired, domain.ErrInternal("list stale sessions", err)
		}
		ended := 0
		for _, candidate := range stale {
			ok, err := s.expire(ctx, candidate.ID, cutoff)
			if err != nil {
				return expired, err
			}
			if ok {
				ended++
			}
		}
		expired += ended
		if len(stale) < expireBatchSize || ended == 0 {
			break
		}
	}

	if expired > 0 {
		metrics.SessionsExpired(expired)
		s.logger.Info("stale game sessions expired", "count", expired, "cutoff", cutoff)
	}
	return expired, nil
}

// expire ends one stale session. It reports false when the session was ended
// by someone else in the meantime.
func (s *SessionService) expire(ctx context.Context, id domain.SessionID, cutoff time.Time) (bool, error) {
	var ended bool
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		session, err := tx.Sessions().FindByID(ctx, id)
		if err != nil {
			return fmt.Errorf("find session: %w", err)
		}
		if session == nil || !session.IsActive() || !session.StartedAt.Before(cutoff) {
			return nil
		}

		now := s.clock.Now()
		events := &domain.EventLog{}
		if err := session.End(false, now, events); err != nil {
			return err
		}
		session.FlaggedForReview = session.ShouldFlagForReview(now)
		if err := tx.Sessions().Update(ctx, session); err != nil {
			return fmt.Errorf("update session: %w", err)
		}
		if err := writeOutbox(ctx, tx, events); err != nil {
			return err
		}
		ended = true
		return nil
	})
	if err != nil {
		return false, storeError("expire session", err)
	}
	if ended {
		s.logger.Info("game session expired", "session_id", id.String())
	}
	return ended, nil
}
