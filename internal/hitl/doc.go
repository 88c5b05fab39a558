// ABOUTME: Package hitl brokers human-in-the-loop approval for backend requests.
// ABOUTME: Pending requests suspend the caller until a different path resolves them.

// Package hitl implements the pending-request brokers and the escalation
// orchestrators used when a backend cannot complete an operation without a
// human decision.
//
// # Flow
//
// A backend transport invokes an escalator, which registers a pending request
// with its broker and suspends on the request's one-shot signal. The decision
// arrives on a completely different execution path: an HTTP handler calls
// Approve/Reject (sampling) or Respond (elicitation), which resolves the
// request and fires the signal. The escalator waits in two stages: a short
// wait, then — if still unresolved — a broadcast notification to external
// observers followed by a long wait.
//
// # Guarantees
//
//   - Resolution is a compare-and-swap from pending to exactly one terminal
//     status; a second resolve attempt returns false.
//   - The signal is a closed channel, so a waiter that arrives after the
//     resolution observes the resolved state instantly (no lost wakeup).
//   - A wait timeout is advisory to that call only; it never mutates the
//     request. Requests are removed only by the TTL sweep.
//   - Escalator failures are typed (*HITLError) so transports can translate
//     them into their own protocol's error shape.
package hitl
