package infra

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rogerbap/gaminglibrary/internal/domain"
	"github.com/rogerbap/gaminglibrary/internal/events"
)

// NewRedisClient connects to url and verifies the connection.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

const liveChannel = "gaminglibrary:live"

// LiveRelay carries outbox events from a dispatcher in another process to the
// API's WebSocket hub over Redis pub/sub.
type LiveRelay struct {
	client  *redis.Client
	channel string
	logger  *slog.Logger
}

func NewLiveRelay(client *redis.Client, logger *slog.Logger) *LiveRelay {
	return &LiveRelay{client: client, channel: liveChannel, logger: logger}
}

func (r *LiveRelay) Name() string { return "live_relay" }

// Deliver publishes the event on the relay channel.
func (r *LiveRelay) Deliver(ctx context.Context, event domain.OutboxDraft) error {
	payload, err := events.Envelope(event)
	if err != nil {
		return fmt.Errorf("encode event %s: %w", event.EventID, err)
	}
	if err := r.client.Publish(ctx, r.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish live event: %w", err)
	}
	return nil
}

// Run subscribes to the relay channel and hands every event to sink until
// ctx is cancelled. The returned channel closes once the subscription is
// active; the loop itself runs in a goroutine.
func (r *LiveRelay) Run(ctx context.Context, sink events.Sink) (<-chan struct{}, error) {
	sub := r.client.Subscribe(ctx, r.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", r.channel, err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		defer sub.Close()
		r.logger.Info("live relay subscribed", "channel", r.channel, "sink", sink.Name())

		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var event domain.OutboxDraft
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					r.logger.Warn("live relay dropped malformed event", "error", err)
					continue
				}
				if err := sink.Deliver(ctx, event); err != nil {
					r.logger.Warn("live relay delivery failed", "sink", sink.Name(), "error", err)
				}
			}
		}
	}()
	return done, nil
}
