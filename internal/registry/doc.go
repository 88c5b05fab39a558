// Package registry owns the endpoint lifecycle. Registration persists the
// endpoint, creates its circuit breaker and token bucket, and builds the
// escalation capabilities handed to backend transports. The Invoker is the
// single call path through the admission checks: circuit first, then rate
// limit, then the call itself with one fallback retry on failure.
package registry
