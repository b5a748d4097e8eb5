package guard

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rogerbap/gaminglibrary/internal/dependencies/clock"
	"github.com/rogerbap/gaminglibrary/internal/domain"
	"golang.org/x/time/rate"
)

// RateLimiter is a token-bucket limiter keyed by caller, e.g. one bucket per
// player for session starts.
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*keyLimiter
	rate     rate.Limit
	burst    int
	idleTTL  time.Duration
	clock    clock.Clock
}

type keyLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter allows perSecond events per key with the given burst.
// A non-positive perSecond disables limiting.
func NewRateLimiter(perSecond float64, burst int, clk clock.Clock) *RateLimiter {
	limit := rate.Limit(perSecond)
	if perSecond <= 0 {
		limit = rate.Inf
	}
	return &RateLimiter{
		limiters: make(map[string]*keyLimiter),
		rate:     limit,
		burst:    max(1, burst),
		idleTTL:  10 * time.Minute,
		clock:    clk,
	}
}

// Check consumes one token for key and reports whether it was available.
func (rl *RateLimiter) Check(_ context.Context, key string) domain.GuardResult {
	now := rl.clock.Now()

	rl.mu.Lock()
	kl, ok := rl.limiters[key]
	if !ok {
		kl = &keyLimiter{limiter: rate.NewLimiter(rl.rate, rl.burst)}
		rl.limiters[key] = kl
	}
	kl.lastSeen = now
	allowed := kl.limiter.AllowN(now, 1)
	rl.mu.Unlock()

	if !allowed {
		return domain.GuardResult{
			Allowed: false,
			Reason:  fmt.Sprintf("rate limit exceeded: %.2g/s burst %d", float64(rl.rate), rl.burst),
			Guard:   "rate_limiter",
		}
	}
	return domain.GuardResult{Allowed: true}
}

// Cleanup drops buckets idle for longer than the idle TTL and returns how
// many were removed.
func (rl *RateLimiter) Cleanup() int {
	cutoff := rl.clock.Now().Add(-rl.idleTTL)

	rl.mu.Lock()
	defer rl.mu.Unlock()
	removed := 0
	for key, kl := range rl.limiters {
		if kl.lastSeen.Before(cutoff) {
			delete(rl.limiters, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked keys.
func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.limiters)
}
