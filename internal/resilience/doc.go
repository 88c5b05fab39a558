// ABOUTME: Package resilience provides per-endpoint circuit breaking and rate limiting.
// ABOUTME: The Service composes one breaker and one bucket per registered endpoint.

// Package resilience implements the reliability primitives that guard every
// outbound call to a registered endpoint.
//
// # Components
//
//   - CircuitBreaker: failure-tracking state machine (Closed, Open, HalfOpen).
//     The Open→HalfOpen transition is evaluated lazily on every state read;
//     there is no background timer per breaker.
//   - TokenBucket: continuously-refilling rate limiter. Refill and
//     check-and-subtract happen as one atomic unit under the bucket mutex.
//   - Service: registry of endpointID → (breaker, bucket, primary URL,
//     fallback URL). All admission checks and outcome recording go through
//     the Service; nothing mutates a breaker or bucket directly.
//
// # Caller contract
//
// Before every backend call: CanExecute, then CheckRateLimit. On denial, do
// not call the backend. After every call attempt, exactly one of
// RecordSuccess or RecordFailure. On failure with a configured fallback,
// retry once against the fallback URL; a second failure propagates.
// The registry.Invoker enforces this contract.
//
// # Error policy
//
// Breaker and bucket operations sit on the hot path and never return errors;
// all denial is communicated through booleans. Operations on an unregistered
// endpoint fail soft (false / empty string).
package resilience
