// ABOUTME: Elicitation request type and broker for structured user input.
// ABOUTME: A backend asks the user for input matching a schema; accept, decline, or cancel.

package hitl

import (
	"context"
	"time"
)

// ElicitationAction is the decision a user takes on an elicitation request.
type ElicitationAction string

const (
	ActionAccept  ElicitationAction = "accept"
	ActionDecline ElicitationAction = "decline"
	ActionCancel  ElicitationAction = "cancel"
)

// ElicitationStatus is the lifecycle state of an elicitation request.
type ElicitationStatus string

const (
	ElicitationPending   ElicitationStatus = "pending"
	ElicitationAccepted  ElicitationStatus = "accepted"
	ElicitationDeclined  ElicitationStatus = "declined"
	ElicitationCancelled ElicitationStatus = "cancelled"
	ElicitationTimedOut  ElicitationStatus = "timed_out"
)

// ElicitationRequest is a backend's request for structured user input. The
// RequestedSchema is a JSON Schema describing the shape of the expected content.
type ElicitationRequest struct {
	ID              string            `json:"id"`
	EndpointID      string            `json:"endpoint_id"`
	Message         string            `json:"message"`
	RequestedSchema map[string]any    `json:"requested_schema"`
	Action          ElicitationAction `json:"action,omitempty"`
	Content         map[string]any    `json:"content,omitempty"`
	Status          ElicitationStatus `json:"status"`
	CreatedAt       time.Time         `json:"created_at"`
}

// ElicitationBroker holds open elicitation requests keyed by request id.
type ElicitationBroker struct {
	b *broker[ElicitationRequest]
}

// NewElicitationBroker creates a broker whose requests are swept ttl after creation.
func NewElicitationBroker(ttl time.Duration) *ElicitationBroker {
	return &ElicitationBroker{
		b: newBroker(ttl,
			func(r ElicitationRequest) bool { return r.Status == ElicitationPending },
			func(r ElicitationRequest) time.Time { return r.CreatedAt },
		),
	}
}

// CreateRequest stores the request as pending. Status and CreatedAt are
// stamped here; callers supply identity and payload.
func (e *ElicitationBroker) CreateRequest(req ElicitationRequest) {
	req.Status = ElicitationPending
	if req.CreatedAt.IsZero() {
		req.CreatedAt = time.Now()
	}
	e.b.create(req.ID, req)
}

// GetRequest returns a snapshot of the request. Never blocks.
func (e *ElicitationBroker) GetRequest(id string) (ElicitationRequest, bool) {
	return e.b.get(id)
}

// WaitForResponse suspends until the request is resolved, the timeout elapses
// (ErrWaitTimeout), or ctx is done (ctx.Err()).
func (e *ElicitationBroker) WaitForResponse(ctx context.Context, id string, timeout time.Duration) (ElicitationRequest, error) {
	return e.b.wait(ctx, id, timeout)
}

// Respond resolves the request with the user's action and, for accept, the
// input content. Returns false if the id is unknown or already resolved.
func (e *ElicitationBroker) Respond(id string, action ElicitationAction, content map[string]any) bool {
	return e.b.resolve(id, func(r *ElicitationRequest) {
		r.Action = action
		r.Content = content
		switch action {
		case ActionAccept:
			r.Status = ElicitationAccepted
		case ActionDecline:
			r.Status = ElicitationDeclined
		case ActionCancel:
			r.Status = ElicitationCancelled
		}
	})
}

// ListPending returns all requests still awaiting a decision.
func (e *ElicitationBroker) ListPending() []ElicitationRequest {
	return e.b.listPending()
}

// SweepExpired removes requests older than the TTL regardless of status.
func (e *ElicitationBroker) SweepExpired() int {
	return e.b.sweepExpired()
}
