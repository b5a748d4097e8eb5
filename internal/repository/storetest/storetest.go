// Package storetest is a conformance suite every repository.Store must pass.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rogerbap/gaminglibrary/internal/domain"
	"github.com/rogerbap/gaminglibrary/internal/repository"
	"github.com/stretchr/testify/suite"
)

var t0 = time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)

// Suite exercises a fresh store per test. NewStore must return an empty store.
type Suite struct {
	suite.Suite
	NewStore func() repository.Store

	ctx   context.Context
	store repository.Store
}

func (s *Suite) SetupTest() {
	s.ctx = context.Background()
	s.store = s.NewStore()
}

func (s *Suite) TearDownTest() {
	s.Require().NoError(s.store.Close())
}

func (s *Suite) newPlayer(name, email string) *domain.Player {
	p, err := domain.NewPlayer(name, email, t0, nil)
	s.Require().NoError(err)
	s.Require().NoError(s.store.Players().Create(s.ctx, p))
	return p
}

func (s *Suite) newSession(playerID domain.PlayerID, gt domain.GameType, at time.Time) *domain.GameSession {
	gs, err := domain.NewGameSession(playerID, gt, at, nil)
	s.Require().NoError(err)
	s.Require().NoError(s.store.Sessions().Create(s.ctx, gs))
	return gs
}

func (s *Suite) TestPing() {
	s.NoError(s.store.Ping(s.ctx))
}

func (s *Suite) TestPlayerRoundTrip() {
	p := s.newPlayer("Ada", "ada@ex.com")

	got, err := s.store.Players().FindByID(s.ctx, p.ID)
	s.Require().NoError(err)
	s.Require().NotNil(got)
	s.Equal(p.ID, got.ID)
	s.Equal("Ada", got.Name)
	s.Equal("ada@ex.com", got.Email)
	s.True(got.Active)
	s.True(p.CreatedAt.Equal(got.CreatedAt))

	byEmail, err := s.store.Players().FindByEmail(s.ctx, "ada@ex.com")
	s.Require().NoError(err)
	s.Require().NotNil(byEmail)
	s.Equal(p.ID, byEmail.ID)

	exists, err := s.store.Players().EmailExists(s.ctx, "ada@ex.com")
	s.NoError(err)
	s.True(exists)
}

func (s *Suite) TestPlayerMissingReturnsNil() {
	got, err := s.store.Players().FindByID(s.ctx, domain.NewPlayerID())
	s.NoError(err)
	s.Nil(got)

	exists, err := s.store.Players().EmailExists(s.ctx, "nobody@ex.com")
	s.NoError(err)
	s.False(exists)
}

func (s *Suite) TestPlayerDuplicateEmail() {
	s.newPlayer("Ada", "ada@ex.com")

	dup, err := domain.NewPlayer("Other", "ada@ex.com", t0, nil)
	s.Require().NoError(err)
	err = s.store.Players().Create(s.ctx, dup)
	s.True(errors.Is(err, repository.ErrDuplicateEmail), "got %v", err)
}

func (s *Suite) TestPlayerUpdate() {
	p := s.newPlayer("Ada", "ada@ex.com")
	other := s.newPlayer("Grace", "grace@ex.com")

	p.UpdateScore(500, true, t0.Add(time.Hour), nil)
	p.Deactivate(t0.Add(2*time.Hour), nil)
	s.Require().NoError(s.store.Players().Update(s.ctx, p))

	got, err := s.store.Players().FindByID(s.ctx, p.ID)
	s.Require().NoError(err)
	s.Equal(int64(500), got.TotalScore)
	s.Equal(1, got.GamesPlayed)
	s.False(got.Active)
	s.True(t0.Add(time.Hour).Equal(got.LastPlayedAt))

	other.Email = "ada@ex.com"
	err = s.store.Players().Update(s.ctx, other)
	s.True(errors.Is(err, repository.ErrDuplicateEmail), "got %v", err)
}

func (s *Suite) TestTopByScore() {
	low := s.newPlayer("Low", "low@ex.com")
	high := s.newPlayer("High", "high@ex.com")
	idle := s.newPlayer("Idle", "idle@ex.com")
	gone := s.newPlayer("Gone", "gone@ex.com")

	low.UpdateScore(100, true, t0, nil)
	high.UpdateScore(900, true, t0, nil)
	gone.UpdateScore(5000, true, t0, nil)
	gone.Deactivate(t0, nil)
	for _, p := range []*domain.Player{low, high, gone} {
		s.Require().NoError(s.store.Players().Update(s.ctx, p))
	}

	top, err := s.store.Players().TopByScore(s.ctx, 10)
	s.Require().NoError(err)
	s.Require().Len(top, 2)
	s.Equal(high.ID, top[0].ID)
	s.Equal(low.ID, top[1].ID)
	for _, p := range top {
		s.NotEqual(idle.ID, p.ID)
	}

	top, err = s.store.Players().TopByScore(s.ctx, 1)
	s.Require().NoError(err)
	s.Len(top, 1)
}

func (s *Suite) TestListQualifyingPagesEveryPlayer() {
	want := map[domain.PlayerID]bool{}
	for i := range 7 {
		p := s.newPlayer(fmt.Sprintf("Player %d", i), fmt.Sprintf("p%d@ex.com", i))
		p.UpdateScore(int64(100*(i+1)), true, t0, nil)
		s.Require().NoError(s.store.Players().Update(s.ctx, p))
		want[p.ID] = true
	}
	s.newPlayer("Idle", "idle@ex.com")
	gone := s.newPlayer("Gone", "gone@ex.com")
	gone.UpdateScore(50, true, t0, nil)
	gone.Deactivate(t0, nil)
	s.Require().NoError(s.store.Players().Update(s.ctx, gone))

	got := map[domain.PlayerID]bool{}
	var after domain.PlayerID
	for pages := 0; ; pages++ {
		s.Require().Less(pages, 10, "paging does not terminate")
		page, err := s.store.Players().ListQualifying(s.ctx, after, 3)
		s.Require().NoError(err)
		if len(page) == 0 {
			break
		}
		s.LessOrEqual(len(page), 3)
		for _, p := range page {
			s.False(got[p.ID], "player %s returned twice", p.ID)
			got[p.ID] = true
		}
		after = page[len(page)-1].ID
	}
	s.Equal(want, got)
}

func (s *Suite) TestSessionRoundTrip() {
	p := s.newPlayer("Ada", "ada@ex.com")
	gs := s.newSession(p.ID, domain.GameGitBlaster, t0)

	s.Require().NoError(gs.ApplyGameData(domain.GameData{domain.KeyAverageAccuracy: 0.75, "Level": "3"}))
	s.Require().NoError(gs.SetFinalScore(420))
	s.Require().NoError(gs.End(true, t0.Add(3*time.Minute), nil))
	gs.FlaggedForReview = true
	s.Require().NoError(s.store.Sessions().Update(s.ctx, gs))

	got, err := s.store.Sessions().FindByID(s.ctx, gs.ID)
	s.Require().NoError(err)
	s.Require().NotNil(got)
	s.Equal(p.ID, got.PlayerID)
	s.Equal(domain.GameGitBlaster, got.GameType)
	s.Equal(int64(420), got.Score)
	s.True(got.CompletedSuccessfully)
	s.True(got.FlaggedForReview)
	s.Require().NotNil(got.EndedAt)
	s.True(t0.Add(3 * time.Minute).Equal(*got.EndedAt))
	s.InDelta(0.75, got.GameData.Float(domain.KeyAverageAccuracy), 1e-9)
	s.Equal("3", got.GameData["Level"])

	missing, err := s.store.Sessions().FindByID(s.ctx, domain.NewSessionID())
	s.NoError(err)
	s.Nil(missing)
}

func (s *Suite) TestOneActiveSessionPerPlayer() {
	p := s.newPlayer("Ada", "ada@ex.com")
	first := s.newSession(p.ID, domain.GameDeployTheCat, t0)

	second, err := domain.NewGameSession(p.ID, domain.GameGitBlaster, t0, nil)
	s.Require().NoError(err)
	err = s.store.Sessions().Create(s.ctx, second)
	s.True(errors.Is(err, repository.ErrActiveSessionExists), "got %v", err)

	active, err := s.store.Sessions().FindActiveByPlayer(s.ctx, p.ID)
	s.Require().NoError(err)
	s.Require().NotNil(active)
	s.Equal(first.ID, active.ID)

	s.Require().NoError(first.End(false, t0.Add(time.Minute), nil))
	s.Require().NoError(s.store.Sessions().Update(s.ctx, first))
	s.NoError(s.store.Sessions().Create(s.ctx, second))
}

func (s *Suite) TestConcurrentCreateAllowsOneActive() {
	p := s.newPlayer("Ada", "ada@ex.com")

	const workers = 8
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := range workers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			gs, err := domain.NewGameSession(p.ID, domain.GameDeployTheCat, t0, nil)
			if err != nil {
				errs[i] = err
				return
			}
			errs[i] = s.store.WithTx(s.ctx, func(tx repository.Store) error {
				return tx.Sessions().Create(s.ctx, gs)
			})
		}(i)
	}
	wg.Wait()

	var ok, conflicts int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, repository.ErrActiveSessionExists):
			conflicts++
		}
	}
	s.Equal(1, ok)
	s.Equal(workers-1, conflicts)
}

func (s *Suite) TestListByPlayer() {
	p := s.newPlayer("Ada", "ada@ex.com")
	other := s.newPlayer("Grace", "grace@ex.com")
	s.newSession(other.ID, domain.GameDeployTheCat, t0)

	var ids []domain.SessionID
	for i := range 4 {
		gt := domain.GameDeployTheCat
		if i%2 == 1 {
			gt = domain.GameGitBlaster
		}
		at := t0.Add(time.Duration(i) * time.Hour)
		gs := s.newSession(p.ID, gt, at)
		s.Require().NoError(gs.End(true, at.Add(time.Minute), nil))
		s.Require().NoError(s.store.Sessions().Update(s.ctx, gs))
		ids = append(ids, gs.ID)
	}

	all, err := s.store.Sessions().ListByPlayer(s.ctx, p.ID, repository.SessionFilter{Limit: 10})
	s.Require().NoError(err)
	s.Require().Len(all, 4)
	s.Equal(ids[3], all[0].ID, "newest first")
	s.Equal(ids[0], all[3].ID)

	blaster, err := s.store.Sessions().ListByPlayer(s.ctx, p.ID, repository.SessionFilter{
		GameType: domain.GameGitBlaster,
		Limit:    10,
	})
	s.Require().NoError(err)
	s.Require().Len(blaster, 2)
	for _, gs := range blaster {
		s.Equal(domain.GameGitBlaster, gs.GameType)
	}

	limited, err := s.store.Sessions().ListByPlayer(s.ctx, p.ID, repository.SessionFilter{Limit: 1})
	s.Require().NoError(err)
	s.Len(limited, 1)
}

func (s *Suite) TestListFlaggedAndStale() {
	p := s.newPlayer("Ada", "ada@ex.com")
	q := s.newPlayer("Grace", "grace@ex.com")

	flagged := s.newSession(p.ID, domain.GameDeployTheCat, t0)
	s.Require().NoError(flagged.End(true, t0.Add(time.Minute), nil))
	flagged.FlaggedForReview = true
	s.Require().NoError(s.store.Sessions().Update(s.ctx, flagged))

	stale := s.newSession(q.ID, domain.GameGitBlaster, t0)
	fresh := s.newSession(p.ID, domain.GameGitBlaster, t0.Add(2*time.Hour))

	got, err := s.store.Sessions().ListFlagged(s.ctx, 10)
	s.Require().NoError(err)
	s.Require().Len(got, 1)
	s.Equal(flagged.ID, got[0].ID)

	old, err := s.store.Sessions().ListActiveStartedBefore(s.ctx, t0.Add(time.Hour), 10)
	s.Require().NoError(err)
	s.Require().Len(old, 1)
	s.Equal(stale.ID, old[0].ID)
	s.NotEqual(fresh.ID, old[0].ID)
}

func (s *Suite) TestWithTxRollsBack() {
	p, err := domain.NewPlayer("Ada", "ada@ex.com", t0, nil)
	s.Require().NoError(err)

	boom := errors.New("boom")
	err = s.store.WithTx(s.ctx, func(tx repository.Store) error {
		if err := tx.Players().Create(s.ctx, p); err != nil {
			return err
		}
		if err := tx.Outbox().Insert(s.ctx, domain.NewOutboxDraft(domain.PlayerCreated{PlayerID: p.ID, At: t0})); err != nil {
			return err
		}
		return boom
	})
	s.ErrorIs(err, boom)

	got, err := s.store.Players().FindByID(s.ctx, p.ID)
	s.NoError(err)
	s.Nil(got)

	pending, err := s.store.Outbox().FetchUnpublished(s.ctx, 10)
	s.NoError(err)
	s.Empty(pending)
}

func (s *Suite) TestWithTxCommits() {
	p, err := domain.NewPlayer("Ada", "ada@ex.com", t0, nil)
	s.Require().NoError(err)

	err = s.store.WithTx(s.ctx, func(tx repository.Store) error {
		if err := tx.Players().Create(s.ctx, p); err != nil {
			return err
		}
		// Reads inside the transaction see its own writes.
		got, err := tx.Players().FindByID(s.ctx, p.ID)
		if err != nil {
			return err
		}
		if got == nil {
			return fmt.Errorf("player %s not visible inside tx", p.ID)
		}
		return nil
	})
	s.Require().NoError(err)

	got, err := s.store.Players().FindByID(s.ctx, p.ID)
	s.NoError(err)
	s.NotNil(got)
}

func (s *Suite) TestOutboxLifecycle() {
	playerID := domain.NewPlayerID()
	var drafts []domain.OutboxDraft
	for i := range 3 {
		drafts = append(drafts, domain.NewOutboxDraft(domain.PlayerCreated{
			PlayerID: playerID,
			Name:     fmt.Sprintf("p%d", i),
			Email:    fmt.Sprintf("p%d@ex.com", i),
			At:       t0.Add(time.Duration(i) * time.Second),
		}))
	}
	for _, d := range drafts {
		s.Require().NoError(s.store.Outbox().Insert(s.ctx, d))
	}

	pending, err := s.store.Outbox().FetchUnpublished(s.ctx, 2)
	s.Require().NoError(err)
	s.Require().Len(pending, 2)
	s.Equal(drafts[0].EventID, pending[0].EventID)
	s.Equal(drafts[1].EventID, pending[1].EventID)
	s.Equal(domain.EventPlayerCreated, pending[0].EventType)
	s.Equal(playerID.String(), pending[0].PartitionKey)
	s.NotZero(pending[0].SeqID)
	s.Less(pending[0].SeqID, pending[1].SeqID)
	s.JSONEq(string(drafts[0].Payload), string(pending[0].Payload))

	s.Require().NoError(s.store.Outbox().MarkPublished(s.ctx, []int64{pending[0].SeqID, pending[1].SeqID}))

	rest, err := s.store.Outbox().FetchUnpublished(s.ctx, 10)
	s.Require().NoError(err)
	s.Require().Len(rest, 1)
	s.Equal(drafts[2].EventID, rest[0].EventID)
}
