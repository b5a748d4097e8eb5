// Package sqlite provides a SQLite-backed repository.Store for single-node
// deployments and local development.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	sqlitemigrate "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	"github.com/rogerbap/gaminglibrary/db/migrations"
	"github.com/rogerbap/gaminglibrary/internal/domain"
	"github.com/rogerbap/gaminglibrary/internal/repository"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

// dbtx is satisfied by *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store persists players, sessions and outbox events in SQLite.
type Store struct {
	sqlDB *sql.DB
	db    dbtx
	inTx  bool
}

var _ repository.Store = (*Store)(nil)

// Open opens the database at path and applies embedded migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// One writer at a time; transactions would otherwise race on lock upgrades.
	sqlDB.SetMaxOpenConns(1)

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(sqlDB); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB, db: sqlDB}, nil
}

func applyMigrations(sqlDB *sql.DB) error {
	src, err := iofs.New(migrations.SQLite, "sqlite")
	if err != nil {
		return fmt.Errorf("open migration source: %w", err)
	}
	driver, err := sqlitemigrate.WithInstance(sqlDB, &sqlitemigrate.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate up: %w", err)
	}
	return nil
}

func (s *Store) Players() repository.PlayerRepository   { return playerRepo{s.db} }
func (s *Store) Sessions() repository.SessionRepository { return sessionRepo{s.db} }
func (s *Store) Outbox() repository.OutboxRepository    { return outboxRepo{s.db} }

func (s *Store) WithTx(ctx context.Context, fn func(tx repository.Store) error) error {
	if s.inTx {
		return fn(s)
	}
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&Store{sqlDB: s.sqlDB, db: tx, inTx: true}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.sqlDB.PingContext(ctx)
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(v int64) time.Time {
	return time.UnixMilli(v).UTC()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func isUniqueViolation(err error, index string) bool {
	if err == nil {
		return false
	}
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return strings.Contains(err.Error(), index)
		}
	}
	message := strings.ToLower(err.Error())
	return strings.Contains(message, "unique constraint failed") && strings.Contains(message, index)
}

const playerColumns = `id, name, email, total_score, games_played, is_active, last_played_at, created_at, updated_at`

type playerRepo struct{ db dbtx }

func (r playerRepo) FindByID(ctx context.Context, id domain.PlayerID) (*domain.Player, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+playerColumns+` FROM players WHERE id = ?`, id.String())
	return scanPlayer(row)
}

func (r playerRepo) FindByEmail(ctx context.Context, email string) (*domain.Player, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+playerColumns+` FROM players WHERE email = ?`, email)
	return scanPlayer(row)
}

func (r playerRepo) EmailExists(ctx context.Context, email string) (bool, error) {
	var exists int
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM players WHERE email = ?)`, email).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check email: %w", err)
	}
	return exists == 1, nil
}

func (r playerRepo) Create(ctx context.Context, p *domain.Player) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO players (`+playerColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID.String(), p.Name, p.Email, p.TotalScore, p.GamesPlayed, boolToInt(p.Active),
		toMillis(p.LastPlayedAt), toMillis(p.CreatedAt), toMillis(p.UpdatedAt),
	)
	if isUniqueViolation(err, "players.email") {
		return repository.ErrDuplicateEmail
	}
	if err != nil {
		return fmt.Errorf("insert player: %w", err)
	}
	return nil
}

func (r playerRepo) Update(ctx context.Context, p *domain.Player) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE players
		SET name = ?, email = ?, total_score = ?, games_played = ?, is_active = ?,
		    last_played_at = ?, updated_at = ?
		WHERE id = ?`,
		p.Name, p.Email, p.TotalScore, p.GamesPlayed, boolToInt(p.Active),
		toMillis(p.LastPlayedAt), toMillis(p.UpdatedAt), p.ID.String(),
	)
	if isUniqueViolation(err, "players.email") {
		return repository.ErrDuplicateEmail
	}
	if err != nil {
		return fmt.Errorf("update player: %w", err)
	}
	return requireOneRow(res, "player")
}

func (r playerRepo) TopByScore(ctx context.Context, limit int) ([]domain.Player, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+playerColumns+`
		FROM players
		WHERE is_active = 1 AND games_played > 0
		ORDER BY total_score DESC, created_at ASC
		LIMIT ?`, repository.ClampLimit(limit))
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

func (r playerRepo) ListQualifying(ctx context.Context, after domain.PlayerID, limit int) ([]domain.Player, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+playerColumns+`
		FROM players
		WHERE is_active = 1 AND games_played > 0 AND id > ?
		ORDER BY id
		LIMIT ?`, after.String(), repository.ClampLimit(limit))
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

type scanner interface {
	Scan(dest ...any) error
}

func scanPlayer(row scanner) (*domain.Player, error) {
	var (
		p                                domain.Player
		id                               string
		active                           int
		lastPlayed, createdAt, updatedAt int64
	)
	err := row.Scan(&id, &p.Name, &p.Email, &p.TotalScore, &p.GamesPlayed, &active,
		&lastPlayed, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan player: %w", err)
	}
	if p.ID, err = domain.ParsePlayerID(id); err != nil {
		return nil, fmt.Errorf("scan player id: %w", err)
	}
	p.Active = active == 1
	p.LastPlayedAt = fromMillis(lastPlayed)
	p.CreatedAt = fromMillis(createdAt)
	p.UpdatedAt = fromMillis(updatedAt)
	return &p, nil
}

const sessionColumns = `id, player_id, game_type, score, started_at, ended_at, completed_successfully, game_data, flagged_for_review`

type sessionRepo struct{ db dbtx }

func (r sessionRepo) FindByID(ctx context.Context, id domain.SessionID) (*domain.GameSession, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM game_sessions WHERE id = ?`, id.String())
	return scanSession(row)
}

func (r sessionRepo) FindActiveByPlayer(ctx context.Context, playerID domain.PlayerID) (*domain.GameSession, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+sessionColumns+` FROM game_sessions
		WHERE player_id = ? AND ended_at IS NULL`, playerID.String())
	return scanSession(row)
}

func (r sessionRepo) ListByPlayer(ctx context.Context, playerID domain.PlayerID, filter repository.SessionFilter) ([]domain.GameSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM game_sessions WHERE player_id = ?`
	args := []any{playerID.String()}
	if filter.GameType != 0 {
		query += ` AND game_type = ?`
		args = append(args, int(filter.GameType))
	}
	query += ` ORDER BY started_at DESC LIMIT ?`
	args = append(args, repository.ClampLimit(filter.Limit))
	return r.list(ctx, query, args...)
}

func (r sessionRepo) Create(ctx context.Context, gs *domain.GameSession) error {
	data, err := marshalGameData(gs.GameData)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO game_sessions (`+sessionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		gs.ID.String(), gs.PlayerID.String(), int(gs.GameType), gs.Score, toMillis(gs.StartedAt),
		nullableMillis(gs.EndedAt), boolToInt(gs.CompletedSuccessfully), data, boolToInt(gs.FlaggedForReview),
	)
	if isUniqueViolation(err, "game_sessions.player_id") {
		return repository.ErrActiveSessionExists
	}
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (r sessionRepo) Update(ctx context.Context, gs *domain.GameSession) error {
	data, err := marshalGameData(gs.GameData)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE game_sessions
		SET score = ?, ended_at = ?, completed_successfully = ?, game_data = ?, flagged_for_review = ?
		WHERE id = ?`,
		gs.Score, nullableMillis(gs.EndedAt), boolToInt(gs.CompletedSuccessfully), data,
		boolToInt(gs.FlaggedForReview), gs.ID.String(),
	)
	if isUniqueViolation(err, "game_sessions.player_id") {
		return repository.ErrActiveSessionExists
	}
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	return requireOneRow(res, "session")
}

func (r sessionRepo) ListFlagged(ctx context.Context, limit int) ([]domain.GameSession, error) {
	return r.list(ctx, `
		SELECT `+sessionColumns+` FROM game_sessions
		WHERE flagged_for_review = 1
		ORDER BY ended_at DESC
		LIMIT ?`, repository.ClampLimit(limit))
}

func (r sessionRepo) ListActiveStartedBefore(ctx context.Context, cutoff time.Time, limit int) ([]domain.GameSession, error) {
	return r.list(ctx, `
		SELECT `+sessionColumns+` FROM game_sessions
		WHERE ended_at IS NULL AND started_at < ?
		ORDER BY started_at ASC
		LIMIT ?`, toMillis(cutoff), repository.ClampLimit(limit))
}

func (r sessionRepo) list(ctx context.Context, query string, args ...any) ([]domain.GameSession, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
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

func scanSession(row scanner) (*domain.GameSession, error) {
	var (
		gs                 domain.GameSession
		id, playerID, data string
		gameType           int
		startedAt          int64
		endedAt            sql.NullInt64
		completed, flagged int
	)
	err := row.Scan(&id, &playerID, &gameType, &gs.Score, &startedAt, &endedAt, &completed, &data, &flagged)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan session: %w", err)
	}
	if gs.ID, err = domain.ParseSessionID(id); err != nil {
		return nil, fmt.Errorf("scan session id: %w", err)
	}
	if gs.PlayerID, err = domain.ParsePlayerID(playerID); err != nil {
		return nil, fmt.Errorf("scan session player id: %w", err)
	}
	gs.GameType = domain.GameType(gameType)
	gs.StartedAt = fromMillis(startedAt)
	if endedAt.Valid {
		t := fromMillis(endedAt.Int64)
		gs.EndedAt = &t
	}
	gs.CompletedSuccessfully = completed == 1
	gs.FlaggedForReview = flagged == 1
	if err := json.Unmarshal([]byte(data), &gs.GameData); err != nil {
		return nil, fmt.Errorf("decode game data: %w", err)
	}
	if gs.GameData == nil {
		gs.GameData = domain.GameData{}
	}
	return &gs, nil
}

func marshalGameData(data domain.GameData) (string, error) {
	if data == nil {
		return "{}", nil
	}
	b, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("encode game data: %w", err)
	}
	return string(b), nil
}

func nullableMillis(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: toMillis(*t), Valid: true}
}

func requireOneRow(res sql.Result, entity string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n != 1 {
		return fmt.Errorf("update %s: %d rows affected", entity, n)
	}
	return nil
}

type outboxRepo struct{ db dbtx }

func (r outboxRepo) Insert(ctx context.Context, draft domain.OutboxDraft) error {
	headers := draft.Headers
	if len(headers) == 0 {
		headers = json.RawMessage(`{}`)
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO event_outbox
		  (event_id, aggregate_type, aggregate_id, event_type, partition_key, headers, payload, occurred_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		draft.EventID.String(),
		string(draft.AggregateType),
		draft.AggregateID,
		string(draft.EventType),
		draft.PartitionKey,
		string(headers),
		string(draft.Payload),
		toMillis(draft.OccurredAt),
	)
	if err != nil {
		return fmt.Errorf("insert outbox event: %w", err)
	}
	return nil
}

func (r outboxRepo) FetchUnpublished(ctx context.Context, limit int) ([]domain.OutboxDraft, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, event_id, aggregate_type, aggregate_id, event_type,
		       partition_key, headers, payload, occurred_at
		FROM event_outbox
		ORDER BY id ASC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch unpublished events: %w", err)
	}
	defer rows.Close()

	var events []domain.OutboxDraft
	for rows.Next() {
		var (
			d                        domain.OutboxDraft
			eventID, aggType, evType string
			headers, payload         string
			occurredAt               int64
		)
		err := rows.Scan(&d.SeqID, &eventID, &aggType, &d.AggregateID, &evType,
			&d.PartitionKey, &headers, &payload, &occurredAt)
		if err != nil {
			return nil, fmt.Errorf("scan outbox row: %w", err)
		}
		if d.EventID, err = uuid.Parse(eventID); err != nil {
			return nil, fmt.Errorf("parse event id: %w", err)
		}
		d.AggregateType = domain.AggregateType(aggType)
		d.EventType = domain.EventType(evType)
		d.Headers = json.RawMessage(headers)
		d.Payload = json.RawMessage(payload)
		d.OccurredAt = fromMillis(occurredAt)
		events = append(events, d)
	}
	return events, rows.Err()
}

func (r outboxRepo) MarkPublished(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	_, err := r.db.ExecContext(ctx, `DELETE FROM event_outbox WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return fmt.Errorf("mark published: %w", err)
	}
	return nil
}
