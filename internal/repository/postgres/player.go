package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rogerbap/gaminglibrary/internal/domain"
	"github.com/rogerbap/gaminglibrary/internal/repository"
)

const playerColumns = `id, name, email, total_score, games_played, is_active, last_played_at, created_at, updated_at`

type playerRepo struct {
	db DBTX
}

func (r *playerRepo) FindByID(ctx context.Context, id domain.PlayerID) (*domain.Player, error) {
	row := r.db.QueryRow(ctx, `SELECT `+playerColumns+` FROM players WHERE id = $1`, id.UUID())
	return scanPlayer(row)
}

func (r *playerRepo) FindByEmail(ctx context.Context, email string) (*domain.Player, error) {
	row := r.db.QueryRow(ctx, `SELECT `+playerColumns+` FROM players WHERE email = $1`, email)
	return scanPlayer(row)
}

func (r *playerRepo) EmailExists(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM players WHERE email = $1)`, email).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check email: %w", err)
	}
	return exists, nil
}

func (r *playerRepo) Create(ctx context.Context, p *domain.Player) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO players (`+playerColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		p.ID.UUID(),
		p.Name,
		p.Email,
		p.TotalScore,
		p.GamesPlayed,
		p.Active,
		p.LastPlayedAt,
		p.CreatedAt,
		p.UpdatedAt,
	)
	if isUniqueViolation(err, emailIndex) {
		return repository.ErrDuplicateEmail
	}
	if err != nil {
		return fmt.Errorf("insert player: %w", err)
	}
	return nil
}

func (r *playerRepo) Update(ctx context.Context, p *domain.Player) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE players
		SET name = $2, email = $3, total_score = $4, games_played = $5, is_active = $6,
		    last_played_at = $7, updated_at = $8
		WHERE id = $1`,
		p.ID.UUID(), p.Name, p.Email, p.TotalScore, p.GamesPlayed, p.Active,
		p.LastPlayedAt, p.UpdatedAt,
	)
	if isUniqueViolation(err, emailIndex) {
		return repository.ErrDuplicateEmail
	}
	if err != nil {
		return fmt.Errorf("update player: %w", err)
	}
	if tag.RowsAffected() != 1 {
		return fmt.Errorf("update player %s: %d rows affected", p.ID, tag.RowsAffected())
	}
	return nil
}

func (r *playerRepo) TopByScore(ctx context.Context, limit int) ([]domain.Player, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+playerColumns+`
		FROM players
		WHERE is_active AND games_played > 0
		ORDER BY total_score DESC, created_at ASC
		LIMIT $1`, repository.ClampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("query leaderboard: %w", err)
	}
	defer rows.Close()

	var players []domain.Player
	for rows.Next() {
		p, err := scanPlayer(rows)
		if err != nil {
			return nil, err
		}
		players = append(players, *p)
	}
	return players, rows.Err()
}

func (r *playerRepo) ListQualifying(ctx context.Context, after domain.PlayerID, limit int) ([]domain.Player, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+playerColumns+`
		FROM players
		WHERE is_active AND games_played > 0 AND id > $1
		ORDER BY id
		LIMIT $2`, after.UUID(), repository.ClampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("query qualifying players: %w", err)
	}
	defer rows.Close()

	var players []domain.Player
	for rows.Next() {
		p, err := scanPlayer(rows)
		if err != nil {
			return nil, err
		}
		players = append(players, *p)
	}
	return players, rows.Err()
}

func scanPlayer(row pgx.Row) (*domain.Player, error) {
	var p domain.Player
	var id uuid.UUID
	err := row.Scan(&id, &p.Name, &p.Email, &p.TotalScore, &p.GamesPlayed, &p.Active,
		&p.LastPlayedAt, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan player: %w", err)
	}
	if p.ID, err = domain.PlayerIDFromUUID(id); err != nil {
		return nil, fmt.Errorf("scan player id: %w", err)
	}
	p.LastPlayedAt = p.LastPlayedAt.UTC()
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	return &p, nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
