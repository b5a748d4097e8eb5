package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
	"github.com/rogerbap/gaminglibrary/internal/events"
	"github.com/rogerbap/gaminglibrary/internal/infra"
	"github.com/rogerbap/gaminglibrary/internal/leaderboard"
	"github.com/rogerbap/gaminglibrary/internal/repository"
)

// Backends holds the optional Redis and Kafka connections a process uses.
// Disabled features leave their fields nil.
type Backends struct {
	Redis    *redis.Client
	Board    *leaderboard.Board
	Relay    *infra.LiveRelay
	Producer *infra.KafkaProducer
}

// OpenBackends connects to Redis when the leaderboard or the live relay is
// enabled and always creates a Kafka producer, which no-ops when disabled.
func OpenBackends(ctx context.Context, cfg *infra.Config, logger *slog.Logger) (*Backends, error) {
	b := &Backends{Producer: infra.NewKafkaProducer(cfg.KafkaBrokers, cfg.KafkaEnabled, logger)}

	if cfg.LeaderboardEnabled || cfg.LiveRelayEnabled {
		client, err := infra.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			_ = b.Producer.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		b.Redis = client
		logger.Info("connected to redis")
	}
	if cfg.LeaderboardEnabled {
		b.Board = leaderboard.New(b.Redis, "")
	}
	if cfg.LiveRelayEnabled {
		b.Relay = infra.NewLiveRelay(b.Redis, logger)
	}
	return b, nil
}

// RebuildLeaderboard reloads the cached ranking from every qualifying
// player in the store.
func (b *Backends) RebuildLeaderboard(ctx context.Context, store repository.Store) error {
	if b.Board == nil {
		return nil
	}
	if err := b.Board.Rebuild(ctx, store.Players()); err != nil {
		return fmt.Errorf("rebuild leaderboard: %w", err)
	}
	return nil
}

// Sinks lists the outbox sinks backed by these connections. The log sink is
// always first.
func (b *Backends) Sinks(logger *slog.Logger) []events.Sink {
	sinks := []events.Sink{events.LogSink{Logger: logger}}
	if b.Producer.Enabled() {
		sinks = append(sinks, infra.NewKafkaSink(b.Producer))
	}
	if b.Board != nil {
		sinks = append(sinks, b.Board)
	}
	if b.Relay != nil {
		sinks = append(sinks, b.Relay)
	}
	return sinks
}

func (b *Backends) Close() error {
	var errs []error
	if err := b.Producer.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close kafka producer: %w", err))
	}
	if b.Redis != nil {
		if err := b.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
	}
	return errors.Join(errs...)
}
