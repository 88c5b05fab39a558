// ABOUTME: Generic pending-request broker keyed by request id with one-shot signals.
// ABOUTME: Underlies the sampling and elicitation brokers, which differ only in payload.

package hitl

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrWaitTimeout indicates a wait elapsed without the request being resolved.
// It is advisory to that wait only; the request itself stays pending.
var ErrWaitTimeout = errors.New("wait timed out")

// broker holds open requests and their wake signals. R is the request value
// type; requests are stored and returned by value so readers never observe a
// concurrent mutation.
type broker[R any] struct {
	mu       sync.Mutex
	requests map[string]R
	signals  map[string]chan struct{}
	ttl      time.Duration

	isPending func(R) bool
	createdAt func(R) time.Time
}

func newBroker[R any](ttl time.Duration, isPending func(R) bool, createdAt func(R) time.Time) *broker[R] {
	return &broker[R]{
		requests:  make(map[string]R),
		signals:   make(map[string]chan struct{}),
		ttl:       ttl,
		isPending: isPending,
		createdAt: createdAt,
	}
}

// create stores the request as pending and prepares its wake signal.
// Must be called before any waiter.
func (b *broker[R]) create(id string, req R) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.requests[id] = req
	b.signals[id] = make(chan struct{})
}

// get returns a snapshot of the request. Never blocks.
func (b *broker[R]) get(id string) (R, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	req, ok := b.requests[id]
	return req, ok
}

// wait suspends until the request's signal fires, the timeout elapses, or ctx
// is done. On signal it returns the resolved snapshot. Unknown ids resolve
// immediately to ErrWaitTimeout. The signal channel is closed on resolution,
// so a waiter arriving after the resolve returns instantly.
func (b *broker[R]) wait(ctx context.Context, id string, timeout time.Duration) (R, error) {
	var zero R

	b.mu.Lock()
	sig, ok := b.signals[id]
	b.mu.Unlock()
	if !ok {
		return zero, ErrWaitTimeout
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-sig:
		req, ok := b.get(id)
		if !ok {
			// Swept between signal and lookup.
			return zero, ErrWaitTimeout
		}
		return req, nil
	case <-timer.C:
		return zero, ErrWaitTimeout
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// resolve applies the terminal mutation if and only if the request is still
// pending (compare-and-swap: first resolution wins), then fires the signal
// exactly once by closing it. Returns false for unknown ids and for requests
// already resolved.
func (b *broker[R]) resolve(id string, apply func(*R)) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	req, ok := b.requests[id]
	if !ok || !b.isPending(req) {
		return false
	}

	apply(&req)
	b.requests[id] = req

	// The closed signal stays in the map so late waiters still observe it.
	if sig, ok := b.signals[id]; ok {
		close(sig)
	}
	return true
}

// listPending returns all requests still in pending status, in no particular order.
func (b *broker[R]) listPending() []R {
	b.mu.Lock()
	defer b.mu.Unlock()

	var pending []R
	for _, req := range b.requests {
		if b.isPending(req) {
			pending = append(pending, req)
		}
	}
	return pending
}

// sweepExpired removes every request older than the TTL regardless of status,
// along with its signal. Returns the count removed.
func (b *broker[R]) sweepExpired() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	removed := 0
	for id, req := range b.requests {
		if now.Sub(b.createdAt(req)) > b.ttl {
			if sig, ok := b.signals[id]; ok {
				// Wake any waiter still parked on an unresolved request;
				// resolved requests already closed their signal.
				if b.isPending(req) {
					close(sig)
				}
				delete(b.signals, id)
			}
			delete(b.requests, id)
			removed++
		}
	}
	return removed
}
