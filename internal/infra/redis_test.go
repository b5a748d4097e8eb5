package infra

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rogerbap/gaminglibrary/internal/domain"
	"github.com/rogerbap/gaminglibrary/internal/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRedisClient(t *testing.T) {
	mini := miniredis.RunT(t)

	client, err := NewRedisClient(context.Background(), "redis://"+mini.Addr())
	require.NoError(t, err)
	assert.NoError(t, client.Close())

	_, err = NewRedisClient(context.Background(), "not a url")
	assert.Error(t, err)
}

func TestLiveRelay_RoundTrip(t *testing.T) {
	mini := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mini.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	relay := NewLiveRelay(client, slog.New(slog.DiscardHandler))

	var (
		mu  sync.Mutex
		got []domain.OutboxDraft
	)
	sink := events.SinkFunc{SinkName: "capture", Fn: func(_ context.Context, e domain.OutboxDraft) error {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, e)
		return nil
	}}

	ctx, cancel := context.WithCancel(context.Background())
	done, err := relay.Run(ctx, sink)
	require.NoError(t, err)

	playerID := domain.NewPlayerID()
	draft := domain.NewOutboxDraft(domain.PlayerDeactivated{PlayerID: playerID, At: time.Now().UTC()})
	require.NoError(t, relay.Deliver(context.Background(), draft))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	assert.Equal(t, draft.EventID, got[0].EventID)
	assert.Equal(t, domain.EventPlayerDeactivated, got[0].EventType)
	assert.Equal(t, playerID.String(), got[0].PartitionKey)
	assert.JSONEq(t, string(draft.Payload), string(got[0].Payload))
	mu.Unlock()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("relay did not stop")
	}
}
