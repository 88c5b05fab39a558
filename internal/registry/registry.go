// ABOUTME: Endpoint registration subsystem tying together persistence,
// ABOUTME: resilience state, and per-endpoint escalation capabilities.

package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/2389/aegis-gateway/internal/hitl"
	"github.com/2389/aegis-gateway/internal/resilience"
	"github.com/2389/aegis-gateway/internal/store"
)

// Registration errors
var (
	ErrDuplicate  = errors.New("endpoint with this URL already registered")
	ErrInvalidURL = errors.New("invalid endpoint URL")
)

// escalators holds the per-endpoint HITL capabilities built at registration.
type escalators struct {
	sampling    *hitl.SamplingEscalator
	elicitation *hitl.ElicitationEscalator
}

// Registry manages the lifecycle of registered endpoints: persistence,
// resilience state, and the escalation capabilities handed to backend
// transports.
type Registry struct {
	mu         sync.RWMutex
	escalators map[string]*escalators

	store       store.Store
	resilience  *resilience.Service
	sampling    *hitl.SamplingBroker
	elicitation *hitl.ElicitationBroker
	notifier    hitl.Notifier
	timeouts    hitl.Timeouts
	logger      *slog.Logger
}

// New creates a Registry. Pass nil logger for the default.
func New(st store.Store, rs *resilience.Service, sampling *hitl.SamplingBroker, elicitation *hitl.ElicitationBroker, notifier hitl.Notifier, timeouts hitl.Timeouts, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		escalators:  make(map[string]*escalators),
		store:       st,
		resilience:  rs,
		sampling:    sampling,
		elicitation: elicitation,
		notifier:    notifier,
		timeouts:    timeouts,
		logger:      logger.With("component", "registry"),
	}
}

// Register adds a new endpoint. The URL must be http or https and not already
// registered. When name is empty it defaults to the URL host. The endpoint is
// persisted, given fresh resilience state, and equipped with escalators.
func (r *Registry) Register(ctx context.Context, rawURL, name, fallbackURL string) (*store.Endpoint, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidURL, rawURL)
	}
	if fallbackURL != "" {
		fb, err := url.Parse(fallbackURL)
		if err != nil || (fb.Scheme != "http" && fb.Scheme != "https") || fb.Host == "" {
			return nil, fmt.Errorf("%w: fallback %q", ErrInvalidURL, fallbackURL)
		}
	}

	if _, err := r.store.GetEndpointByURL(ctx, rawURL); err == nil {
		return nil, ErrDuplicate
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("checking for duplicate URL: %w", err)
	}

	if name == "" {
		name = parsed.Host
	}

	ep := &store.Endpoint{
		ID:           uuid.New().String(),
		Name:         name,
		URL:          rawURL,
		FallbackURL:  fallbackURL,
		Enabled:      true,
		Status:       store.EndpointStatusUnknown,
		RegisteredAt: time.Now().UTC(),
	}

	if err := r.store.SaveEndpoint(ctx, ep); err != nil {
		if errors.Is(err, store.ErrDuplicateEndpoint) {
			return nil, ErrDuplicate
		}
		return nil, fmt.Errorf("persisting endpoint: %w", err)
	}

	if err := r.activate(ep); err != nil {
		// Roll back the persisted row so a retry is possible.
		_ = r.store.DeleteEndpoint(ctx, ep.ID)
		return nil, err
	}

	r.logger.Info("endpoint registered",
		"endpoint_id", ep.ID,
		"name", ep.Name,
		"url", ep.URL,
		"has_fallback", ep.FallbackURL != "",
	)
	return ep, nil
}

// activate registers the endpoint with the resilience service and builds its
// escalation capabilities.
func (r *Registry) activate(ep *store.Endpoint) error {
	err := r.resilience.Register(resilience.Endpoint{
		ID:          ep.ID,
		URL:         ep.URL,
		FallbackURL: ep.FallbackURL,
	})
	if err != nil {
		return fmt.Errorf("registering resilience state: %w", err)
	}

	r.mu.Lock()
	r.escalators[ep.ID] = &escalators{
		sampling:    hitl.NewSamplingEscalator(ep.ID, r.sampling, r.notifier, r.timeouts, r.logger),
		elicitation: hitl.NewElicitationEscalator(ep.ID, r.elicitation, r.notifier, r.timeouts, r.logger),
	}
	r.mu.Unlock()
	return nil
}

// deactivate tears down the in-memory state for an endpoint.
func (r *Registry) deactivate(endpointID string) {
	r.resilience.Unregister(endpointID)
	r.mu.Lock()
	delete(r.escalators, endpointID)
	r.mu.Unlock()
}

// Unregister removes the endpoint entirely: persistence, resilience state,
// and escalators. Returns store.ErrNotFound for unknown ids.
func (r *Registry) Unregister(ctx context.Context, endpointID string) error {
	if err := r.store.DeleteEndpoint(ctx, endpointID); err != nil {
		return err
	}
	r.deactivate(endpointID)
	r.logger.Info("endpoint unregistered", "endpoint_id", endpointID)
	return nil
}

// Get returns the persisted endpoint record.
func (r *Registry) Get(ctx context.Context, endpointID string) (*store.Endpoint, error) {
	return r.store.GetEndpoint(ctx, endpointID)
}

// List returns all persisted endpoints.
func (r *Registry) List(ctx context.Context) ([]*store.Endpoint, error) {
	return r.store.ListEndpoints(ctx)
}

// Enable marks the endpoint enabled and restores its in-memory state.
// Resilience state starts fresh; a previously open circuit does not survive
// a disable/enable cycle.
func (r *Registry) Enable(ctx context.Context, endpointID string) error {
	ep, err := r.store.GetEndpoint(ctx, endpointID)
	if err != nil {
		return err
	}
	if err := r.store.SetEnabled(ctx, endpointID, true); err != nil {
		return err
	}
	if err := r.activate(ep); err != nil && !errors.Is(err, resilience.ErrAlreadyRegistered) {
		return err
	}
	r.logger.Info("endpoint enabled", "endpoint_id", endpointID)
	return nil
}

// Disable marks the endpoint disabled and drops its in-memory state. Calls
// through the Invoker will fail with ErrUnknownEndpoint until re-enabled.
func (r *Registry) Disable(ctx context.Context, endpointID string) error {
	if err := r.store.SetEnabled(ctx, endpointID, false); err != nil {
		return err
	}
	r.deactivate(endpointID)
	r.logger.Info("endpoint disabled", "endpoint_id", endpointID)
	return nil
}

// Restore reloads persisted endpoints at startup and reactivates the enabled
// ones. Individual failures are logged and skipped so one bad row cannot keep
// the gateway from starting.
func (r *Registry) Restore(ctx context.Context) error {
	endpoints, err := r.store.ListEndpoints(ctx)
	if err != nil {
		return fmt.Errorf("listing persisted endpoints: %w", err)
	}

	restored := 0
	for _, ep := range endpoints {
		if !ep.Enabled {
			continue
		}
		if err := r.activate(ep); err != nil {
			r.logger.Warn("failed to restore endpoint", "endpoint_id", ep.ID, "error", err)
			continue
		}
		restored++
	}

	r.logger.Info("endpoints restored", "total", len(endpoints), "restored", restored)
	return nil
}

// SamplingApprover returns the sampling capability for an endpoint, or nil
// if the endpoint is not active.
func (r *Registry) SamplingApprover(endpointID string) hitl.SamplingApprover {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.escalators[endpointID]
	if !ok {
		return nil
	}
	return e.sampling
}

// ElicitationPrompter returns the elicitation capability for an endpoint, or
// nil if the endpoint is not active.
func (r *Registry) ElicitationPrompter(endpointID string) hitl.ElicitationPrompter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.escalators[endpointID]
	if !ok {
		return nil
	}
	return e.elicitation
}
