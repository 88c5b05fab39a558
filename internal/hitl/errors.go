// ABOUTME: Typed failure for escalations that end without an accepted resolution.
// ABOUTME: Distinguishes timeout from explicit rejection so transports can map it.

package hitl

import "fmt"

// FailureKind classifies why an escalation did not produce a result.
type FailureKind string

const (
	// FailureTimeout means both wait stages elapsed with no decision.
	FailureTimeout FailureKind = "timeout"
	// FailureRejected means the request was explicitly rejected, declined, or cancelled.
	FailureRejected FailureKind = "rejected"
)

// HITLError is the terminal failure of an escalation. Backend transports
// match it with errors.As and translate it into their protocol's error shape;
// it must never be degraded to an empty successful response.
type HITLError struct {
	Kind       FailureKind
	RequestID  string
	EndpointID string
	Reason     string
}

func (e *HITLError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("hitl %s: request %s (endpoint %s): %s", e.Kind, e.RequestID, e.EndpointID, e.Reason)
	}
	return fmt.Sprintf("hitl %s: request %s (endpoint %s)", e.Kind, e.RequestID, e.EndpointID)
}
