package guard

import (
	"context"
	"testing"
	"time"

	"github.com/rogerbap/gaminglibrary/internal/dependencies/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)

func TestRateLimiter_AllowsBurst(t *testing.T) {
	rl := NewRateLimiter(1, 3, mocks.NewMockClock(epoch))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		result := rl.Check(ctx, "player-a")
		assert.True(t, result.Allowed, "request %d should be allowed", i+1)
	}
}

func TestRateLimiter_BlocksOverBurst(t *testing.T) {
	rl := NewRateLimiter(1, 2, mocks.NewMockClock(epoch))
	ctx := context.Background()

	rl.Check(ctx, "player-a")
	rl.Check(ctx, "player-a")
	result := rl.Check(ctx, "player-a")

	assert.False(t, result.Allowed)
	assert.Equal(t, "rate_limiter", result.Guard)
}

func TestRateLimiter_RefillsOverTime(t *testing.T) {
	clk := mocks.NewMockClock(epoch)
	rl := NewRateLimiter(0.5, 1, clk)
	ctx := context.Background()

	require.True(t, rl.Check(ctx, "player-a").Allowed)
	require.False(t, rl.Check(ctx, "player-a").Allowed)

	clk.Advance(2 * time.Second)
	assert.True(t, rl.Check(ctx, "player-a").Allowed)
}

func TestRateLimiter_SeparateKeys(t *testing.T) {
	rl := NewRateLimiter(1, 1, mocks.NewMockClock(epoch))
	ctx := context.Background()

	r1 := rl.Check(ctx, "key-a")
	r2 := rl.Check(ctx, "key-b")

	assert.True(t, r1.Allowed)
	assert.True(t, r2.Allowed)
}

func TestRateLimiter_DisabledWhenRateNotPositive(t *testing.T) {
	rl := NewRateLimiter(0, 1, mocks.NewMockClock(epoch))
	ctx := context.Background()

	for i := 0; i < 50; i++ {
		require.True(t, rl.Check(ctx, "player-a").Allowed)
	}
}

func TestRateLimiter_CleanupDropsIdleKeys(t *testing.T) {
	clk := mocks.NewMockClock(epoch)
	rl := NewRateLimiter(1, 1, clk)
	ctx := context.Background()

	rl.Check(ctx, "old")
	clk.Advance(11 * time.Minute)
	rl.Check(ctx, "fresh")

	assert.Equal(t, 1, rl.Cleanup())
	assert.Equal(t, 1, rl.Len())
}

func TestCircuitBreaker_ClosedByDefault(t *testing.T) {
	cb := NewCircuitBreaker(3, 5*time.Second, mocks.NewMockClock(epoch))
	ctx := context.Background()

	result := cb.Check(ctx, "kafka")
	assert.True(t, result.Allowed)
	assert.Equal(t, CircuitClosed, cb.State("kafka"))
}

func TestCircuitBreaker_OpensOnThreshold(t *testing.T) {
	cb := NewCircuitBreaker(2, 5*time.Second, mocks.NewMockClock(epoch))
	ctx := context.Background()

	cb.Check(ctx, "kafka")
	cb.RecordFailure("kafka")
	cb.RecordFailure("kafka")

	result := cb.Check(ctx, "kafka")
	assert.False(t, result.Allowed)
	assert.Equal(t, "circuit_breaker", result.Guard)
	assert.Equal(t, CircuitOpen, cb.State("kafka"))
}

func TestCircuitBreaker_SuccessResets(t *testing.T) {
	cb := NewCircuitBreaker(2, 5*time.Second, mocks.NewMockClock(epoch))
	ctx := context.Background()

	cb.Check(ctx, "kafka")
	cb.RecordFailure("kafka")
	cb.RecordSuccess("kafka")
	cb.RecordFailure("kafka")

	result := cb.Check(ctx, "kafka")
	assert.True(t, result.Allowed)
}

func TestCircuitBreaker_HalfOpenTrial(t *testing.T) {
	clk := mocks.NewMockClock(epoch)
	cb := NewCircuitBreaker(1, 5*time.Second, clk)
	ctx := context.Background()

	cb.Check(ctx, "redis")
	cb.RecordFailure("redis")
	require.False(t, cb.Check(ctx, "redis").Allowed)

	clk.Advance(6 * time.Second)
	require.True(t, cb.Check(ctx, "redis").Allowed, "trial allowed after reset timeout")
	assert.Equal(t, CircuitHalfOpen, cb.State("redis"))

	cb.RecordFailure("redis")
	assert.Equal(t, CircuitOpen, cb.State("redis"), "failed trial reopens")

	clk.Advance(6 * time.Second)
	require.True(t, cb.Check(ctx, "redis").Allowed)
	cb.RecordSuccess("redis")
	assert.Equal(t, CircuitClosed, cb.State("redis"))
}

func TestIdempotencyGuard_AllowsFirst(t *testing.T) {
	ig := NewIdempotencyGuard(time.Hour, mocks.NewMockClock(epoch))
	ctx := context.Background()

	result := ig.Check(ctx, "req-123")
	assert.True(t, result.Allowed)
}

func TestIdempotencyGuard_BlocksDuplicate(t *testing.T) {
	ig := NewIdempotencyGuard(time.Hour, mocks.NewMockClock(epoch))
	ctx := context.Background()

	ig.Check(ctx, "req-123")
	result := ig.Check(ctx, "req-123")

	assert.False(t, result.Allowed)
	assert.Equal(t, "idempotency", result.Guard)
}

func TestIdempotencyGuard_EmptyKeyAllowed(t *testing.T) {
	ig := NewIdempotencyGuard(time.Hour, mocks.NewMockClock(epoch))
	ctx := context.Background()

	r1 := ig.Check(ctx, "")
	r2 := ig.Check(ctx, "")

	assert.True(t, r1.Allowed)
	assert.True(t, r2.Allowed)
}

func TestIdempotencyGuard_RemoveAllowsRetry(t *testing.T) {
	ig := NewIdempotencyGuard(time.Hour, mocks.NewMockClock(epoch))
	ctx := context.Background()

	ig.Check(ctx, "req-456")
	ig.Remove("req-456")

	result := ig.Check(ctx, "req-456")
	require.True(t, result.Allowed)
}

func TestIdempotencyGuard_ReplaysCompletedResponse(t *testing.T) {
	ig := NewIdempotencyGuard(time.Hour, mocks.NewMockClock(epoch))
	ctx := context.Background()

	_, _, ok := ig.Replay("req-789")
	assert.False(t, ok)

	require.True(t, ig.Check(ctx, "req-789").Allowed)
	_, _, ok = ig.Replay("req-789")
	assert.False(t, ok, "in-flight keys have nothing to replay")

	ig.Complete("req-789", 201, []byte(`{"name":"Ada"}`))
	status, body, ok := ig.Replay("req-789")
	require.True(t, ok)
	assert.Equal(t, 201, status)
	assert.JSONEq(t, `{"name":"Ada"}`, string(body))
}

func TestIdempotencyGuard_KeysExpire(t *testing.T) {
	clk := mocks.NewMockClock(epoch)
	ig := NewIdempotencyGuard(time.Minute, clk)
	ctx := context.Background()

	require.True(t, ig.Check(ctx, "req-1").Allowed)
	ig.Complete("req-1", 201, []byte(`{}`))

	clk.Advance(2 * time.Minute)
	_, _, ok := ig.Replay("req-1")
	assert.False(t, ok)
	assert.True(t, ig.Check(ctx, "req-1").Allowed)
}
