package guard

import (
	"context"
	"sync"
	"time"

	"github.com/rogerbap/gaminglibrary/internal/dependencies/clock"
	"github.com/rogerbap/gaminglibrary/internal/domain"
)

// IdempotencyGuard deduplicates requests by idempotency key and remembers the
// response of completed ones so a retry can be answered identically.
type IdempotencyGuard struct {
	mu      sync.Mutex
	entries map[string]*idempotencyEntry
	ttl     time.Duration
	clock   clock.Clock
}

type idempotencyEntry struct {
	done    bool
	status  int
	body    []byte
	expires time.Time
}

// NewIdempotencyGuard creates an in-memory guard whose keys expire after ttl.
func NewIdempotencyGuard(ttl time.Duration, clk clock.Clock) *IdempotencyGuard {
	return &IdempotencyGuard{
		entries: make(map[string]*idempotencyEntry),
		ttl:     ttl,
		clock:   clk,
	}
}

// Check claims key. It is rejected while another request holds the key or
// after it completed; use Replay to answer the latter.
func (ig *IdempotencyGuard) Check(_ context.Context, key string) domain.GuardResult {
	if key == "" {
		return domain.GuardResult{Allowed: true}
	}
	now := ig.clock.Now()

	ig.mu.Lock()
	defer ig.mu.Unlock()

	if e, ok := ig.entries[key]; ok && now.Before(e.expires) {
		return domain.GuardResult{
			Allowed: false,
			Reason:  "duplicate request: idempotency key already processed",
			Guard:   "idempotency",
		}
	}
	ig.entries[key] = &idempotencyEntry{expires: now.Add(ig.ttl)}
	return domain.GuardResult{Allowed: true}
}

// Complete stores the response for a claimed key.
func (ig *IdempotencyGuard) Complete(key string, status int, body []byte) {
	if key == "" {
		return
	}
	ig.mu.Lock()
	defer ig.mu.Unlock()
	if e, ok := ig.entries[key]; ok {
		e.done = true
		e.status = status
		e.body = append([]byte(nil), body...)
	}
}

// Replay returns the stored response for a completed, unexpired key.
func (ig *IdempotencyGuard) Replay(key string) (int, []byte, bool) {
	if key == "" {
		return 0, nil, false
	}
	now := ig.clock.Now()

	ig.mu.Lock()
	defer ig.mu.Unlock()
	e, ok := ig.entries[key]
	if !ok || !e.done || !now.Before(e.expires) {
		return 0, nil, false
	}
	return e.status, e.body, true
}

// Remove deletes a key from the seen set (for retry scenarios).
func (ig *IdempotencyGuard) Remove(key string) {
	ig.mu.Lock()
	defer ig.mu.Unlock()
	delete(ig.entries, key)
}
