// Package leaderboard keeps a Redis sorted-set projection of player
// standings, fed from the outbox and read by the leaderboard endpoint.
package leaderboard

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
	"github.com/rogerbap/gaminglibrary/internal/domain"
)

const (
	defaultPrefix = "gaminglibrary:leaderboard"
	fieldName     = "name"
	fieldGames    = "games"
)

// Board is both the outbox sink that maintains the ranking and the reader
// that serves it.
type Board struct {
	client *redis.Client
	prefix string
}

// New creates a Board on client. An empty prefix uses the default key space.
func New(client *redis.Client, prefix string) *Board {
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &Board{client: client, prefix: prefix}
}

func (b *Board) scoresKey() string { return b.prefix + ":scores" }

func (b *Board) playerKey(id string) string { return b.prefix + ":player:" + id }

// Name identifies the board as an outbox sink.
func (b *Board) Name() string { return "leaderboard" }

// Deliver applies one player event to the ranking. Session events and
// unknown types are ignored. Every write sets absolute values, so replays
// are harmless.
func (b *Board) Deliver(ctx context.Context, event domain.OutboxDraft) error {
	switch event.EventType {
	case domain.EventPlayerScoreUpdated:
		var e domain.PlayerScoreUpdated
		if err := json.Unmarshal(event.Payload, &e); err != nil {
			return fmt.Errorf("decode %s: %w", event.EventType, err)
		}
		if !e.Active || e.GamesPlayed < 1 {
			return b.remove(ctx, e.PlayerID.String())
		}
		return b.upsert(ctx, e.PlayerID.String(), e.Name, e.NewScore, e.GamesPlayed)

	case domain.EventPlayerReactivated:
		var e domain.PlayerReactivated
		if err := json.Unmarshal(event.Payload, &e); err != nil {
			return fmt.Errorf("decode %s: %w", event.EventType, err)
		}
		if e.GamesPlayed < 1 {
			return nil
		}
		return b.upsert(ctx, e.PlayerID.String(), e.Name, e.TotalScore, e.GamesPlayed)

	case domain.EventPlayerDeactivated:
		var e domain.PlayerDeactivated
		if err := json.Unmarshal(event.Payload, &e); err != nil {
			return fmt.Errorf("decode %s: %w", event.EventType, err)
		}
		return b.remove(ctx, e.PlayerID.String())

	case domain.EventPlayerInfoUpdated:
		var e domain.PlayerInfoUpdated
		if err := json.Unmarshal(event.Payload, &e); err != nil {
			return fmt.Errorf("decode %s: %w", event.EventType, err)
		}
		key := b.playerKey(e.PlayerID.String())
		n, err := b.client.Exists(ctx, key).Result()
		if err != nil {
			return fmt.Errorf("check leaderboard entry: %w", err)
		}
		if n == 0 {
			return nil
		}
		return b.client.HSet(ctx, key, fieldName, e.Name).Err()
	}
	return nil
}

func (b *Board) upsert(ctx context.Context, playerID, name string, score int64, games int) error {
	pipe := b.client.TxPipeline()
	pipe.ZAdd(ctx, b.scoresKey(), redis.Z{Score: float64(score), Member: playerID})
	pipe.HSet(ctx, b.playerKey(playerID), fieldName, name, fieldGames, games)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("upsert leaderboard entry: %w", err)
	}
	return nil
}

func (b *Board) remove(ctx context.Context, playerID string) error {
	pipe := b.client.TxPipeline()
	pipe.ZRem(ctx, b.scoresKey(), playerID)
	pipe.Del(ctx, b.playerKey(playerID))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("remove leaderboard entry: %w", err)
	}
	return nil
}

// Top returns the highest ranked players, best first.
func (b *Board) Top(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	if limit <= 0 {
		return nil, nil
	}
	ranked, err := b.client.ZRevRangeWithScores(ctx, b.scoresKey(), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("read leaderboard: %w", err)
	}
	if len(ranked) == 0 {
		return []domain.LeaderboardEntry{}, nil
	}

	pipe := b.client.Pipeline()
	details := make([]*redis.MapStringStringCmd, len(ranked))
	for i, z := range ranked {
		details[i] = pipe.HGetAll(ctx, b.playerKey(z.Member.(string)))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("read leaderboard entries: %w", err)
	}

	entries := make([]domain.LeaderboardEntry, 0, len(ranked))
	for i, z := range ranked {
		id, err := domain.ParsePlayerID(z.Member.(string))
		if err != nil {
			return nil, fmt.Errorf("leaderboard member %q: %w", z.Member, err)
		}
		fields := details[i].Val()
		games, _ := strconv.Atoi(fields[fieldGames])
		p := domain.Player{
			ID:          id,
			Name:        fields[fieldName],
			TotalScore:  int64(z.Score),
			GamesPlayed: games,
		}
		entries = append(entries, domain.NewLeaderboardEntry(i+1, &p))
	}
	return entries, nil
}

// Source pages through every player that belongs on the board, in id order.
type Source interface {
	ListQualifying(ctx context.Context, after domain.PlayerID, limit int) ([]domain.Player, error)
}

const rebuildPageSize = 100

func (b *Board) stagingKey() string { return b.prefix + ":scores:rebuild" }

// Rebuild replaces the ranking with every player src yields. The new set is
// staged under a separate key and swapped in once complete, so readers never
// see a partial board. Players that do not qualify are skipped.
func (b *Board) Rebuild(ctx context.Context, src Source) error {
	staging := b.stagingKey()
	if err := b.client.Del(ctx, staging).Err(); err != nil {
		return fmt.Errorf("clear leaderboard staging: %w", err)
	}

	kept := make(map[string]struct{})
	var after domain.PlayerID
	for {
		page, err := src.ListQualifying(ctx, after, rebuildPageSize)
		if err != nil {
			return fmt.Errorf("load players after %s: %w", after, err)
		}
		if len(page) == 0 {
			break
		}
		pipe := b.client.Pipeline()
		for i := range page {
			p := &page[i]
			if !p.QualifiesForLeaderboard() {
				continue
			}
			id := p.ID.String()
			kept[id] = struct{}{}
			pipe.ZAdd(ctx, staging, redis.Z{Score: float64(p.TotalScore), Member: id})
			pipe.HSet(ctx, b.playerKey(id), fieldName, p.Name, fieldGames, p.GamesPlayed)
		}
		if _, err := pipe.Exec(ctx); err != nil {
			return fmt.Errorf("stage leaderboard page: %w", err)
		}
		after = page[len(page)-1].ID
		if len(page) < rebuildPageSize {
			break
		}
	}

	previous, err := b.client.ZRange(ctx, b.scoresKey(), 0, -1).Result()
	if err != nil {
		return fmt.Errorf("read leaderboard: %w", err)
	}

	pipe := b.client.TxPipeline()
	if len(kept) == 0 {
		pipe.Del(ctx, b.scoresKey())
	} else {
		pipe.Rename(ctx, staging, b.scoresKey())
	}
	for _, m := range previous {
		if _, ok := kept[m]; !ok {
			pipe.Del(ctx, b.playerKey(m))
		}
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("swap leaderboard: %w", err)
	}
	return nil
}
