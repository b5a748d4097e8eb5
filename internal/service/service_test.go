package service

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/rogerbap/gaminglibrary/internal/dependencies/mocks"
	"github.com/rogerbap/gaminglibrary/internal/domain"
	"github.com/rogerbap/gaminglibrary/internal/policy"
	"github.com/rogerbap/gaminglibrary/internal/repository/memory"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2026, 4, 2, 18, 30, 0, 0, time.UTC)

type fixture struct {
	store    *memory.Store
	clock    *mocks.MockClock
	players  *PlayerService
	sessions *SessionService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.New()
	t.Cleanup(func() { _ = store.Close() })

	clk := mocks.NewMockClock(epoch)
	logger := slog.New(slog.DiscardHandler)
	return &fixture{
		store:    store,
		clock:    clk,
		players:  NewPlayerService(store, nil, clk, logger),
		sessions: NewSessionService(store, policy.DefaultRatingTable(), nil, clk, logger),
	}
}

func (f *fixture) createPlayer(t *testing.T, name, email string) *domain.Player {
	t.Helper()
	p, err := f.players.CreatePlayer(context.Background(), name, email)
	require.NoError(t, err)
	return p
}

// outboxTypes lists the pending outbox event types in insertion order.
func (f *fixture) outboxTypes(t *testing.T) []domain.EventType {
	t.Helper()
	drafts, err := f.store.Outbox().FetchUnpublished(context.Background(), 0)
	require.NoError(t, err)
	types := make([]domain.EventType, 0, len(drafts))
	for _, d := range drafts {
		types = append(types, d.EventType)
	}
	return types
}

func requireCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	require.Truef(t, domain.IsCode(err, code), "want %s, got %v", code, err)
}
