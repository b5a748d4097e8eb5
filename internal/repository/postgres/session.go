package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rogerbap/gaminglibrary/internal/domain"
	"github.com/rogerbap/gaminglibrary/internal/repository"
)

const sessionColumns = `id, player_id, game_type, score, started_at, ended_at, completed_successfully, game_data, flagged_for_review`

type sessionRepo struct {
	db DBTX
}

func (r *sessionRepo) FindByID(ctx context.Context, id domain.SessionID) (*domain.GameSession, error) {
	row := r.db.QueryRow(ctx, `SELECT `+sessionColumns+` FROM game_sessions WHERE id = $1`, id.UUID())
	return scanSession(row)
}

func (r *sessionRepo) FindActiveByPlayer(ctx context.Context, playerID domain.PlayerID) (*domain.GameSession, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+sessionColumns+` FROM game_sessions
		WHERE player_id = $1 AND ended_at IS NULL`, playerID.UUID())
	return scanSession(row)
}

func (r *sessionRepo) ListByPlayer(ctx context.Context, playerID domain.PlayerID, filter repository.SessionFilter) ([]domain.GameSession, error) {
	return r.list(ctx, `
		SELECT `+sessionColumns+` FROM game_sessions
		WHERE player_id = $1 AND ($2 = 0 OR game_type = $2)
		ORDER BY started_at DESC
		LIMIT $3`, playerID.UUID(), int16(filter.GameType), repository.ClampLimit(filter.Limit))
}

func (r *sessionRepo) Create(ctx context.Context, gs *domain.GameSession) error {
	data, err := marshalGameData(gs.GameData)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `
		INSERT INTO game_sessions (`+sessionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		gs.ID.UUID(),
		gs.PlayerID.UUID(),
		int16(gs.GameType),
		gs.Score,
		gs.StartedAt,
		gs.EndedAt,
		gs.CompletedSuccessfully,
		data,
		gs.FlaggedForReview,
	)
	if isUniqueViolation(err, activeSessionIndex) {
		return repository.ErrActiveSessionExists
	}
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (r *sessionRepo) Update(ctx context.Context, gs *domain.GameSession) error {
	data, err := marshalGameData(gs.GameData)
	if err != nil {
		return err
	}
	tag, err := r.db.Exec(ctx, `
		UPDATE game_sessions
		SET score = $2, ended_at = $3, completed_successfully = $4, game_data = $5, flagged_for_review = $6
		WHERE id = $1`,
		gs.ID.UUID(), gs.Score, gs.EndedAt, gs.CompletedSuccessfully, data, gs.FlaggedForReview,
	)
	if isUniqueViolation(err, activeSessionIndex) {
		return repository.ErrActiveSessionExists
	}
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	if tag.RowsAffected() != 1 {
		return fmt.Errorf("update session %s: %d rows affected", gs.ID, tag.RowsAffected())
	}
	return nil
}

func (r *sessionRepo) ListFlagged(ctx context.Context, limit int) ([]domain.GameSession, error) {
	return r.list(ctx, `
		SELECT `+sessionColumns+` FROM game_sessions
		WHERE flagged_for_review
		ORDER BY ended_at DESC NULLS LAST
		LIMIT $1`, repository.ClampLimit(limit))
}

func (r *sessionRepo) ListActiveStartedBefore(ctx context.Context, cutoff time.Time, limit int) ([]domain.GameSession, error) {
	return r.list(ctx, `
		SELECT `+sessionColumns+` FROM game_sessions
		WHERE ended_at IS NULL AND started_at < $1
		ORDER BY started_at ASC
		LIMIT $2`, cutoff, repository.ClampLimit(limit))
}

func (r *sessionRepo) list(ctx context.Context, query string, args ...interface{}) ([]domain.GameSession, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []domain.GameSession
	for rows.Next() {
		gs, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *gs)
	}
	return sessions, rows.Err()
}

func scanSession(row pgx.Row) (*domain.GameSession, error) {
	var gs domain.GameSession
	var id, playerID uuid.UUID
	var gameType int16
	var data []byte
	err := row.Scan(&id, &playerID, &gameType, &gs.Score, &gs.StartedAt, &gs.EndedAt,
		&gs.CompletedSuccessfully, &data, &gs.FlaggedForReview)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan session: %w", err)
	}
	if gs.ID, err = domain.SessionIDFromUUID(id); err != nil {
		return nil, fmt.Errorf("scan session id: %w", err)
	}
	if gs.PlayerID, err = domain.PlayerIDFromUUID(playerID); err != nil {
		return nil, fmt.Errorf("scan session player id: %w", err)
	}
	gs.GameType = domain.GameType(gameType)
	gs.StartedAt = gs.StartedAt.UTC()
	gs.EndedAt = utcPtr(gs.EndedAt)
	if err := json.Unmarshal(data, &gs.GameData); err != nil {
		return nil, fmt.Errorf("decode game data: %w", err)
	}
	if gs.GameData == nil {
		gs.GameData = domain.GameData{}
	}
	return &gs, nil
}

func marshalGameData(data domain.GameData) ([]byte, error) {
	if data == nil {
		return []byte(`{}`), nil
	}
	b, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode game data: %w", err)
	}
	return b, nil
}
