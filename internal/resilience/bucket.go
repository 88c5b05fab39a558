// ABOUTME: Token bucket rate limiter with lazy elapsed-time refill.
// ABOUTME: Refill and check-and-subtract are one atomic unit under the mutex.

package resilience

import (
	"sync"
	"time"
)

// TokenBucket holds a capped pool of permits that refill continuously over
// time. Consume never blocks; callers that are denied should back off rather
// than retry immediately.
type TokenBucket struct {
	mu         sync.Mutex
	capacity   int
	rate       float64 // tokens per second
	tokens     float64
	lastRefill time.Time

	now func() time.Time
}

// NewTokenBucket creates a bucket that starts full.
func NewTokenBucket(capacity int, rate float64) *TokenBucket {
	tb := &TokenBucket{
		capacity: capacity,
		rate:     rate,
		tokens:   float64(capacity),
		now:      time.Now,
	}
	tb.lastRefill = tb.now()
	return tb
}

// Consume attempts to take n tokens. The refill for elapsed time and the
// check-and-subtract happen under a single lock acquisition so concurrent
// callers can never double-spend. Returns false, leaving the level unchanged,
// when fewer than n tokens are available.
func (tb *TokenBucket) Consume(n int) bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refillLocked()
	if tb.tokens >= float64(n) {
		tb.tokens -= float64(n)
		return true
	}
	return false
}

// Tokens returns the current token level after applying any pending refill.
func (tb *TokenBucket) Tokens() float64 {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	tb.refillLocked()
	return tb.tokens
}

// refillLocked credits elapsed*rate tokens, capped at capacity. Must hold mu.
func (tb *TokenBucket) refillLocked() {
	now := tb.now()
	elapsed := now.Sub(tb.lastRefill).Seconds()
	tb.tokens += elapsed * tb.rate
	if tb.tokens > float64(tb.capacity) {
		tb.tokens = float64(tb.capacity)
	}
	tb.lastRefill = now
}
