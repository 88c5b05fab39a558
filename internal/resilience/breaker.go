// ABOUTME: Circuit breaker state machine with lazy Open→HalfOpen recovery.
// ABOUTME: Tracks consecutive failures per endpoint and blocks calls while Open.

package resilience

import (
	"sync"
	"time"
)

// CircuitState is the current position of a breaker in its state machine.
type CircuitState int

const (
	// StateClosed allows all calls; failures are counted.
	StateClosed CircuitState = iota
	// StateOpen rejects all calls until the recovery timeout elapses.
	StateOpen
	// StateHalfOpen allows probe calls; one success closes, one failure reopens.
	StateHalfOpen
)

// String returns the lowercase name of the state.
func (s CircuitState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// CircuitBreaker stops calls to a failing endpoint after a run of consecutive
// failures, then periodically allows a probe once the recovery timeout has
// elapsed. The Open→HalfOpen transition happens lazily on state reads, never
// via a background timer.
type CircuitBreaker struct {
	mu               sync.Mutex
	failureThreshold int
	recoveryTimeout  time.Duration
	state            CircuitState
	failureCount     int
	lastFailureTime  time.Time

	// now is swappable for deterministic tests.
	now func() time.Time
}

// NewCircuitBreaker creates a breaker in the Closed state.
func NewCircuitBreaker(failureThreshold int, recoveryTimeout time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		failureThreshold: failureThreshold,
		recoveryTimeout:  recoveryTimeout,
		state:            StateClosed,
		now:              time.Now,
	}
}

// State returns the current state, applying the lazy Open→HalfOpen transition
// when the recovery timeout has elapsed since the last failure. The transition
// is persisted so subsequent reads observe HalfOpen.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.resolveStateLocked()
}

// RawState returns the stored state without the lazy transition. Fallback URL
// selection uses this: an endpoint routes to its fallback only once a failure
// has actually tripped the breaker, not merely when it is eligible to probe.
func (cb *CircuitBreaker) RawState() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// resolveStateLocked applies the time-triggered transition. Must hold mu.
func (cb *CircuitBreaker) resolveStateLocked() CircuitState {
	if cb.state == StateOpen && cb.now().Sub(cb.lastFailureTime) >= cb.recoveryTimeout {
		cb.state = StateHalfOpen
	}
	return cb.state
}

// CanExecute reports whether a call may proceed. True in Closed and HalfOpen.
func (cb *CircuitBreaker) CanExecute() bool {
	return cb.State() != StateOpen
}

// RecordSuccess notes a successful call. A HalfOpen breaker closes; the
// consecutive-failure counter always resets.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.resolveStateLocked() == StateHalfOpen {
		cb.state = StateClosed
	}
	cb.failureCount = 0
}

// RecordFailure notes a failed call. A HalfOpen breaker reopens immediately
// without touching the counter; a Closed breaker counts the failure and opens
// at the threshold.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.resolveStateLocked() == StateHalfOpen {
		cb.state = StateOpen
		cb.lastFailureTime = cb.now()
		return
	}

	cb.failureCount++
	cb.lastFailureTime = cb.now()
	if cb.failureCount >= cb.failureThreshold {
		cb.state = StateOpen
	}
}

// FailureCount returns the current consecutive-failure count.
func (cb *CircuitBreaker) FailureCount() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.failureCount
}
