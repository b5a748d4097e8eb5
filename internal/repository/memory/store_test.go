package memory

import (
	"context"
	"testing"
	"time"

	"github.com/rogerbap/gaminglibrary/internal/domain"
	"github.com/rogerbap/gaminglibrary/internal/repository"
	"github.com/rogerbap/gaminglibrary/internal/repository/storetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

func TestStoreConformance(t *testing.T) {
	suite.Run(t, &storetest.Suite{NewStore: func() repository.Store { return New() }})
}

func TestStore_ReturnsDetachedCopies(t *testing.T) {
	ctx := context.Background()
	s := New()

	p, err := domain.NewPlayer("Ada", "ada@ex.com", t0(), nil)
	require.NoError(t, err)
	require.NoError(t, s.Players().Create(ctx, p))

	gs, err := domain.NewGameSession(p.ID, domain.GameGitBlaster, t0(), nil)
	require.NoError(t, err)
	require.NoError(t, gs.SetGameData("Level", 1))
	require.NoError(t, s.Sessions().Create(ctx, gs))

	got, err := s.Sessions().FindByID(ctx, gs.ID)
	require.NoError(t, err)
	got.GameData["Level"] = 99
	require.NoError(t, gs.SetGameData("Level", 2))

	again, err := s.Sessions().FindByID(ctx, gs.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, again.GameData["Level"])
}

func TestStore_ClosedRejectsCalls(t *testing.T) {
	s := New()
	require.NoError(t, s.Close())
	assert.Error(t, s.Ping(context.Background()))
}

func TestStore_HonoursCancelledContext(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Players().FindByID(ctx, domain.NewPlayerID())
	assert.ErrorIs(t, err, context.Canceled)
}

func t0() time.Time { return time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC) }
