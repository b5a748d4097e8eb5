// Package memory is an in-process repository.Store used by tests and by the
// API when STORE_DRIVER=memory.
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/rogerbap/gaminglibrary/internal/domain"
	"github.com/rogerbap/gaminglibrary/internal/repository"
)

var errClosed = errors.New("memory store is closed")

type state struct {
	players  map[domain.PlayerID]domain.Player
	sessions map[domain.SessionID]domain.GameSession
	outbox   []domain.OutboxDraft
	nextSeq  int64
	closed   bool
}

func newState() *state {
	return &state{
		players:  make(map[domain.PlayerID]domain.Player),
		sessions: make(map[domain.SessionID]domain.GameSession),
	}
}

func (st *state) clone() *state {
	c := &state{
		players:  make(map[domain.PlayerID]domain.Player, len(st.players)),
		sessions: make(map[domain.SessionID]domain.GameSession, len(st.sessions)),
		outbox:   append([]domain.OutboxDraft(nil), st.outbox...),
		nextSeq:  st.nextSeq,
		closed:   st.closed,
	}
	for k, v := range st.players {
		c.players[k] = v
	}
	for k, v := range st.sessions {
		c.sessions[k] = v
	}
	return c
}

type db struct {
	mu sync.Mutex
	st *state
}

// Store is a mutex-guarded repository.Store. A transaction holds the lock for
// its whole duration, so check-then-insert sequences inside WithTx are atomic.
type Store struct {
	db   *db
	inTx bool
}

var _ repository.Store = (*Store)(nil)

func New() *Store {
	return &Store{db: &db{st: newState()}}
}

func (s *Store) Players() repository.PlayerRepository   { return playerRepo{s} }
func (s *Store) Sessions() repository.SessionRepository { return sessionRepo{s} }
func (s *Store) Outbox() repository.OutboxRepository    { return outboxRepo{s} }

func (s *Store) WithTx(ctx context.Context, fn func(tx repository.Store) error) error {
	if s.inTx {
		return fn(s)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if s.db.st.closed {
		return errClosed
	}

	snapshot := s.db.st.clone()
	if err := fn(&Store{db: s.db, inTx: true}); err != nil {
		s.db.st = snapshot
		return err
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.do(ctx, func(*state) error { return nil })
}

func (s *Store) Close() error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	s.db.st.closed = true
	return nil
}

// do runs fn against the shared state, taking the lock unless the caller is
// already inside a transaction.
func (s *Store) do(ctx context.Context, fn func(st *state) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !s.inTx {
		s.db.mu.Lock()
		defer s.db.mu.Unlock()
	}
	if s.db.st.closed {
		return errClosed
	}
	return fn(s.db.st)
}

type playerRepo struct{ s *Store }

func (r playerRepo) FindByID(ctx context.Context, id domain.PlayerID) (*domain.Player, error) {
	var out *domain.Player
	err := r.s.do(ctx, func(st *state) error {
		if p, ok := st.players[id]; ok {
			out = &p
		}
		return nil
	})
	return out, err
}

func (r playerRepo) FindByEmail(ctx context.Context, email string) (*domain.Player, error) {
	var out *domain.Player
	err := r.s.do(ctx, func(st *state) error {
		for _, p := range st.players {
			if p.Email == email {
				out = &p
				return nil
			}
		}
		return nil
	})
	return out, err
}

func (r playerRepo) EmailExists(ctx context.Context, email string) (bool, error) {
	p, err := r.FindByEmail(ctx, email)
	return p != nil, err
}

func (r playerRepo) Create(ctx context.Context, p *domain.Player) error {
	return r.s.do(ctx, func(st *state) error {
		if emailTaken(st, p.Email, p.ID) {
			return repository.ErrDuplicateEmail
		}
		if _, ok := st.players[p.ID]; ok {
			return errors.New("insert player: duplicate id")
		}
		st.players[p.ID] = *p
		return nil
	})
}

func (r playerRepo) Update(ctx context.Context, p *domain.Player) error {
	return r.s.do(ctx, func(st *state) error {
		if _, ok := st.players[p.ID]; !ok {
			return errors.New("update player: not found")
		}
		if emailTaken(st, p.Email, p.ID) {
			return repository.ErrDuplicateEmail
		}
		st.players[p.ID] = *p
		return nil
	})
}

func (r playerRepo) TopByScore(ctx context.Context, limit int) ([]domain.Player, error) {
	var out []domain.Player
	err := r.s.do(ctx, func(st *state) error {
		for _, p := range st.players {
			if p.QualifiesForLeaderboard() {
				out = append(out, p)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalScore != out[j].TotalScore {
			return out[i].TotalScore > out[j].TotalScore
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return truncate(out, limit), err
}

func (r playerRepo) ListQualifying(ctx context.Context, after domain.PlayerID, limit int) ([]domain.Player, error) {
	var out []domain.Player
	cursor := after.String()
	err := r.s.do(ctx, func(st *state) error {
		for _, p := range st.players {
			if p.QualifiesForLeaderboard() && p.ID.String() > cursor {
				out = append(out, p)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return truncate(out, limit), err
}

func emailTaken(st *state, email string, self domain.PlayerID) bool {
	for id, p := range st.players {
		if id != self && p.Email == email {
			return true
		}
	}
	return false
}

type sessionRepo struct{ s *Store }

func (r sessionRepo) FindByID(ctx context.Context, id domain.SessionID) (*domain.GameSession, error) {
	var out *domain.GameSession
	err := r.s.do(ctx, func(st *state) error {
		if gs, ok := st.sessions[id]; ok {
			out = copySession(gs)
		}
		return nil
	})
	return out, err
}

func (r sessionRepo) FindActiveByPlayer(ctx context.Context, playerID domain.PlayerID) (*domain.GameSession, error) {
	var out *domain.GameSession
	err := r.s.do(ctx, func(st *state) error {
		if gs, ok := activeFor(st, playerID, domain.SessionID{}); ok {
			out = copySession(gs)
		}
		return nil
	})
	return out, err
}

func (r sessionRepo) ListByPlayer(ctx context.Context, playerID domain.PlayerID, filter repository.SessionFilter) ([]domain.GameSession, error) {
	out, err := r.collect(ctx, func(gs domain.GameSession) bool {
		if gs.PlayerID != playerID {
			return false
		}
		return filter.GameType == 0 || gs.GameType == filter.GameType
	})
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	return truncate(out, filter.Limit), err
}

func (r sessionRepo) Create(ctx context.Context, gs *domain.GameSession) error {
	return r.s.do(ctx, func(st *state) error {
		if gs.IsActive() {
			if _, ok := activeFor(st, gs.PlayerID, gs.ID); ok {
				return repository.ErrActiveSessionExists
			}
		}
		if _, ok := st.sessions[gs.ID]; ok {
			return errors.New("insert session: duplicate id")
		}
		st.sessions[gs.ID] = *copySession(*gs)
		return nil
	})
}

func (r sessionRepo) Update(ctx context.Context, gs *domain.GameSession) error {
	return r.s.do(ctx, func(st *state) error {
		if _, ok := st.sessions[gs.ID]; !ok {
			return errors.New("update session: not found")
		}
		if gs.IsActive() {
			if _, ok := activeFor(st, gs.PlayerID, gs.ID); ok {
				return repository.ErrActiveSessionExists
			}
		}
		st.sessions[gs.ID] = *copySession(*gs)
		return nil
	})
}

func (r sessionRepo) ListFlagged(ctx context.Context, limit int) ([]domain.GameSession, error) {
	out, err := r.collect(ctx, func(gs domain.GameSession) bool { return gs.FlaggedForReview })
	sort.Slice(out, func(i, j int) bool { return endedAt(out[i]).After(endedAt(out[j])) })
	return truncate(out, limit), err
}

func (r sessionRepo) ListActiveStartedBefore(ctx context.Context, cutoff time.Time, limit int) ([]domain.GameSession, error) {
	out, err := r.collect(ctx, func(gs domain.GameSession) bool {
		return gs.IsActive() && gs.StartedAt.Before(cutoff)
	})
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return truncate(out, limit), err
}

func (r sessionRepo) collect(ctx context.Context, match func(domain.GameSession) bool) ([]domain.GameSession, error) {
	var out []domain.GameSession
	err := r.s.do(ctx, func(st *state) error {
		for _, gs := range st.sessions {
			if match(gs) {
				out = append(out, *copySession(gs))
			}
		}
		return nil
	})
	return out, err
}

func activeFor(st *state, playerID domain.PlayerID, except domain.SessionID) (domain.GameSession, bool) {
	for id, gs := range st.sessions {
		if id != except && gs.PlayerID == playerID && gs.IsActive() {
			return gs, true
		}
	}
	return domain.GameSession{}, false
}

// copySession detaches the mutable parts of a session from the stored value.
func copySession(gs domain.GameSession) *domain.GameSession {
	gs.GameData = gs.GameData.Clone()
	if gs.EndedAt != nil {
		t := *gs.EndedAt
		gs.EndedAt = &t
	}
	return &gs
}

func endedAt(gs domain.GameSession) time.Time {
	if gs.EndedAt == nil {
		return time.Time{}
	}
	return *gs.EndedAt
}

type outboxRepo struct{ s *Store }

func (r outboxRepo) Insert(ctx context.Context, draft domain.OutboxDraft) error {
	return r.s.do(ctx, func(st *state) error {
		st.nextSeq++
		draft.SeqID = st.nextSeq
		st.outbox = append(st.outbox, draft)
		return nil
	})
}

func (r outboxRepo) FetchUnpublished(ctx context.Context, limit int) ([]domain.OutboxDraft, error) {
	var out []domain.OutboxDraft
	err := r.s.do(ctx, func(st *state) error {
		n := len(st.outbox)
		if limit > 0 && limit < n {
			n = limit
		}
		out = append(out, st.outbox[:n]...)
		return nil
	})
	return out, err
}

func (r outboxRepo) MarkPublished(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	done := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		done[id] = struct{}{}
	}
	return r.s.do(ctx, func(st *state) error {
		kept := make([]domain.OutboxDraft, 0, len(st.outbox))
		for _, d := range st.outbox {
			if _, ok := done[d.SeqID]; !ok {
				kept = append(kept, d)
			}
		}
		st.outbox = kept
		return nil
	})
}

func truncate[T any](items []T, limit int) []T {
	limit = repository.ClampLimit(limit)
	if len(items) > limit {
		return items[:limit]
	}
	return items
}
