// ABOUTME: Two-stage escalating wait wrapped around the pending-request brokers.
// ABOUTME: Short wait, broadcast notification, long wait, then a typed outcome.

package hitl

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Event types published when an escalation exceeds its initial wait window.
const (
	EventSamplingRequest    = "sampling_request"
	EventElicitationRequest = "elicitation_request"
)

// Notifier pushes escalation events to external observers. Publication is
// best-effort; a failed delivery never aborts the wait.
type Notifier interface {
	Broadcast(eventType string, data any)
}

// SamplingParams is the payload a backend supplies when requesting an
// approved LLM generation.
type SamplingParams struct {
	Messages         []map[string]any
	ModelPreferences map[string]any
	SystemPrompt     string
	MaxTokens        int
}

// SamplingApprover is the capability handed to a backend transport at
// connection time. The transport blocks on ResolveApproval from within its
// own request handling.
type SamplingApprover interface {
	ResolveApproval(ctx context.Context, params SamplingParams) (map[string]any, error)
}

// ElicitationPrompter is the elicitation counterpart of SamplingApprover.
type ElicitationPrompter interface {
	ResolveInput(ctx context.Context, message string, requestedSchema map[string]any) (ElicitationResult, error)
}

// ElicitationResult is the user's decision returned to the backend.
type ElicitationResult struct {
	Action  ElicitationAction `json:"action"`
	Content map[string]any    `json:"content,omitempty"`
}

// Timeouts configures the two wait stages of an escalation.
type Timeouts struct {
	Short time.Duration
	Long  time.Duration
}

// SamplingEscalator implements SamplingApprover for one endpoint. It is
// constructed once at endpoint registration and holds its dependencies
// explicitly rather than capturing them in a closure.
type SamplingEscalator struct {
	endpointID string
	broker     *SamplingBroker
	notifier   Notifier
	timeouts   Timeouts
	logger     *slog.Logger
}

// NewSamplingEscalator creates the sampling approver for an endpoint.
// Pass nil logger for the default.
func NewSamplingEscalator(endpointID string, broker *SamplingBroker, notifier Notifier, timeouts Timeouts, logger *slog.Logger) *SamplingEscalator {
	if logger == nil {
		logger = slog.Default()
	}
	return &SamplingEscalator{
		endpointID: endpointID,
		broker:     broker,
		notifier:   notifier,
		timeouts:   timeouts,
		logger:     logger.With("component", "sampling-escalator", "endpoint_id", endpointID),
	}
}

// ResolveApproval registers a pending sampling request and waits for a human
// decision arriving on a different execution path. Stage one is a short wait;
// if unresolved, an escalation event is broadcast and a long wait follows.
// The outcome is either the approved result or a typed *HITLError. Caller
// cancellation propagates as ctx.Err().
func (e *SamplingEscalator) ResolveApproval(ctx context.Context, params SamplingParams) (map[string]any, error) {
	id := uuid.New().String()
	req := SamplingRequest{
		ID:               id,
		EndpointID:       e.endpointID,
		Messages:         params.Messages,
		ModelPreferences: params.ModelPreferences,
		SystemPrompt:     params.SystemPrompt,
		MaxTokens:        params.MaxTokens,
	}
	e.broker.CreateRequest(req)

	resolved, err := e.broker.WaitForResponse(ctx, id, e.timeouts.Short)
	if err != nil {
		if !errors.Is(err, ErrWaitTimeout) {
			return nil, err
		}

		e.logger.Info("sampling approval not resolved in short window, escalating", "request_id", id)
		e.notifier.Broadcast(EventSamplingRequest, map[string]any{
			"request_id":  id,
			"endpoint_id": e.endpointID,
			"messages":    params.Messages,
		})

		resolved, err = e.broker.WaitForResponse(ctx, id, e.timeouts.Long)
		if err != nil {
			if !errors.Is(err, ErrWaitTimeout) {
				return nil, err
			}
			return nil, &HITLError{Kind: FailureTimeout, RequestID: id, EndpointID: e.endpointID}
		}
	}

	if resolved.Status == SamplingApproved {
		return resolved.Result, nil
	}
	return nil, &HITLError{
		Kind:       FailureRejected,
		RequestID:  id,
		EndpointID: e.endpointID,
		Reason:     resolved.RejectReason,
	}
}

// ElicitationEscalator implements ElicitationPrompter for one endpoint.
type ElicitationEscalator struct {
	endpointID string
	broker     *ElicitationBroker
	notifier   Notifier
	timeouts   Timeouts
	logger     *slog.Logger
}

// NewElicitationEscalator creates the elicitation prompter for an endpoint.
// Pass nil logger for the default.
func NewElicitationEscalator(endpointID string, broker *ElicitationBroker, notifier Notifier, timeouts Timeouts, logger *slog.Logger) *ElicitationEscalator {
	if logger == nil {
		logger = slog.Default()
	}
	return &ElicitationEscalator{
		endpointID: endpointID,
		broker:     broker,
		notifier:   notifier,
		timeouts:   timeouts,
		logger:     logger.With("component", "elicitation-escalator", "endpoint_id", endpointID),
	}
}

// ResolveInput mirrors ResolveApproval for elicitation: short wait, escalate,
// long wait, then either the user's accepted input or a typed *HITLError.
func (e *ElicitationEscalator) ResolveInput(ctx context.Context, message string, requestedSchema map[string]any) (ElicitationResult, error) {
	id := uuid.New().String()
	req := ElicitationRequest{
		ID:              id,
		EndpointID:      e.endpointID,
		Message:         message,
		RequestedSchema: requestedSchema,
	}
	e.broker.CreateRequest(req)

	resolved, err := e.broker.WaitForResponse(ctx, id, e.timeouts.Short)
	if err != nil {
		if !errors.Is(err, ErrWaitTimeout) {
			return ElicitationResult{}, err
		}

		e.logger.Info("elicitation not resolved in short window, escalating", "request_id", id)
		e.notifier.Broadcast(EventElicitationRequest, map[string]any{
			"request_id":       id,
			"endpoint_id":      e.endpointID,
			"message":          message,
			"requested_schema": requestedSchema,
		})

		resolved, err = e.broker.WaitForResponse(ctx, id, e.timeouts.Long)
		if err != nil {
			if !errors.Is(err, ErrWaitTimeout) {
				return ElicitationResult{}, err
			}
			return ElicitationResult{}, &HITLError{Kind: FailureTimeout, RequestID: id, EndpointID: e.endpointID}
		}
	}

	if resolved.Status == ElicitationAccepted {
		return ElicitationResult{Action: ActionAccept, Content: resolved.Content}, nil
	}
	return ElicitationResult{}, &HITLError{
		Kind:       FailureRejected,
		RequestID:  id,
		EndpointID: e.endpointID,
		Reason:     string(resolved.Status),
	}
}
