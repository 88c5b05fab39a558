// ABOUTME: Sampling request type and broker for LLM-generation approval.
// ABOUTME: A backend asks the gateway to run an LLM call; a human approves or rejects.

package hitl

import (
	"context"
	"time"
)

// SamplingStatus is the lifecycle state of a sampling request.
type SamplingStatus string

const (
	SamplingPending  SamplingStatus = "pending"
	SamplingApproved SamplingStatus = "approved"
	SamplingRejected SamplingStatus = "rejected"
	SamplingTimedOut SamplingStatus = "timed_out"
)

// SamplingRequest is a backend's request for an LLM generation that must be
// approved by a human before the gateway performs it.
type SamplingRequest struct {
	ID               string           `json:"id"`
	EndpointID       string           `json:"endpoint_id"`
	Messages         []map[string]any `json:"messages"`
	ModelPreferences map[string]any   `json:"model_preferences,omitempty"`
	SystemPrompt     string           `json:"system_prompt,omitempty"`
	MaxTokens        int              `json:"max_tokens"`
	Status           SamplingStatus   `json:"status"`
	Result           map[string]any   `json:"result,omitempty"`
	RejectReason     string           `json:"reject_reason,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
}

// SamplingBroker holds open sampling requests keyed by request id.
type SamplingBroker struct {
	b *broker[SamplingRequest]
}

// NewSamplingBroker creates a broker whose requests are swept ttl after creation.
func NewSamplingBroker(ttl time.Duration) *SamplingBroker {
	return &SamplingBroker{
		b: newBroker(ttl,
			func(r SamplingRequest) bool { return r.Status == SamplingPending },
			func(r SamplingRequest) time.Time { return r.CreatedAt },
		),
	}
}

// CreateRequest stores the request as pending. Status and CreatedAt are
// stamped here; callers supply identity and payload.
func (s *SamplingBroker) CreateRequest(req SamplingRequest) {
	req.Status = SamplingPending
	if req.CreatedAt.IsZero() {
		req.CreatedAt = time.Now()
	}
	s.b.create(req.ID, req)
}

// GetRequest returns a snapshot of the request. Never blocks.
func (s *SamplingBroker) GetRequest(id string) (SamplingRequest, bool) {
	return s.b.get(id)
}

// WaitForResponse suspends until the request is resolved, the timeout elapses
// (ErrWaitTimeout), or ctx is done (ctx.Err()). The timeout is advisory to
// this call only and never mutates the request.
func (s *SamplingBroker) WaitForResponse(ctx context.Context, id string, timeout time.Duration) (SamplingRequest, error) {
	return s.b.wait(ctx, id, timeout)
}

// Approve resolves the request with the LLM result and wakes the waiter.
// Returns false if the id is unknown or the request is already resolved.
func (s *SamplingBroker) Approve(id string, result map[string]any) bool {
	return s.b.resolve(id, func(r *SamplingRequest) {
		r.Status = SamplingApproved
		r.Result = result
	})
}

// Reject resolves the request with a rejection reason and wakes the waiter.
func (s *SamplingBroker) Reject(id, reason string) bool {
	return s.b.resolve(id, func(r *SamplingRequest) {
		r.Status = SamplingRejected
		r.RejectReason = reason
	})
}

// ListPending returns all requests still awaiting a decision.
func (s *SamplingBroker) ListPending() []SamplingRequest {
	return s.b.listPending()
}

// SweepExpired removes requests older than the TTL regardless of status.
func (s *SamplingBroker) SweepExpired() int {
	return s.b.sweepExpired()
}
