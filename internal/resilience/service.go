// ABOUTME: Service owns one circuit breaker and one token bucket per endpoint.
// ABOUTME: Provides admission control, outcome recording, and fallback URL selection.

package resilience

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrAlreadyRegistered indicates an endpoint id is already live in the service.
// Re-registering would silently reset breaker and bucket state, so it is
// rejected; callers that want a reset must Unregister first.
var ErrAlreadyRegistered = errors.New("endpoint already registered")

// Endpoint describes what the Service needs to know about a backend: its
// identity, primary URL, and optional fallback URL.
type Endpoint struct {
	ID          string
	URL         string
	FallbackURL string
}

// Config holds the service-level defaults applied to every endpoint's breaker
// and bucket at registration time.
type Config struct {
	RateLimitRPS     float64
	BurstSize        int
	FailureThreshold int
	RecoveryTimeout  time.Duration
}

// entry is the per-endpoint resilience state.
type entry struct {
	breaker  *CircuitBreaker
	bucket   *TokenBucket
	endpoint Endpoint
}

// Service is a registry of per-endpoint resilience state. Endpoints are added
// explicitly; operations on unknown ids fail soft (false / empty string) to
// keep admission-check call sites branch-free.
type Service struct {
	mu      sync.RWMutex
	entries map[string]*entry
	cfg     Config
	logger  *slog.Logger
}

// NewService creates a Service. Pass nil logger for the default.
func NewService(cfg Config, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		entries: make(map[string]*entry),
		cfg:     cfg,
		logger:  logger.With("component", "resilience"),
	}
}

// Register creates a fresh breaker and bucket for the endpoint. Returns
// ErrAlreadyRegistered if the id is already live.
func (s *Service) Register(ep Endpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[ep.ID]; exists {
		return ErrAlreadyRegistered
	}

	s.entries[ep.ID] = &entry{
		breaker:  NewCircuitBreaker(s.cfg.FailureThreshold, s.cfg.RecoveryTimeout),
		bucket:   NewTokenBucket(s.cfg.BurstSize, s.cfg.RateLimitRPS),
		endpoint: ep,
	}

	s.logger.Info("endpoint registered",
		"endpoint_id", ep.ID,
		"url", ep.URL,
		"has_fallback", ep.FallbackURL != "",
	)
	return nil
}

// Unregister removes the endpoint and its resilience state. No-op if unknown.
func (s *Service) Unregister(endpointID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[endpointID]; !exists {
		return
	}
	delete(s.entries, endpointID)
	s.logger.Info("endpoint unregistered", "endpoint_id", endpointID)
}

// CanExecute reports whether the endpoint's breaker admits a call.
// False for unknown endpoints.
func (s *Service) CanExecute(endpointID string) bool {
	e := s.get(endpointID)
	if e == nil {
		return false
	}
	return e.breaker.CanExecute()
}

// CheckRateLimit consumes one token from the endpoint's bucket.
// False for unknown endpoints.
func (s *Service) CheckRateLimit(endpointID string) bool {
	e := s.get(endpointID)
	if e == nil {
		return false
	}
	return e.bucket.Consume(1)
}

// RecordSuccess forwards a successful outcome to the breaker. No-op if unknown.
func (s *Service) RecordSuccess(endpointID string) {
	if e := s.get(endpointID); e != nil {
		e.breaker.RecordSuccess()
	}
}

// RecordFailure forwards a failed outcome to the breaker. No-op if unknown.
func (s *Service) RecordFailure(endpointID string) {
	e := s.get(endpointID)
	if e == nil {
		return
	}
	e.breaker.RecordFailure()
	if e.breaker.RawState() == StateOpen {
		s.logger.Warn("circuit opened", "endpoint_id", endpointID, "url", e.endpoint.URL)
	}
}

// ActiveURL returns the URL a call should target right now. The fallback URL
// is returned only when one is configured and the breaker's raw stored state
// is Open; a breaker that is merely eligible to probe still routes primary.
// Empty string for unknown endpoints.
func (s *Service) ActiveURL(endpointID string) string {
	e := s.get(endpointID)
	if e == nil {
		return ""
	}
	if e.endpoint.FallbackURL != "" && e.breaker.RawState() == StateOpen {
		return e.endpoint.FallbackURL
	}
	return e.endpoint.URL
}

// HasFallback reports whether the endpoint has a fallback URL configured.
func (s *Service) HasFallback(endpointID string) bool {
	e := s.get(endpointID)
	return e != nil && e.endpoint.FallbackURL != ""
}

// FallbackURL returns the configured fallback URL, or empty string.
func (s *Service) FallbackURL(endpointID string) string {
	e := s.get(endpointID)
	if e == nil {
		return ""
	}
	return e.endpoint.FallbackURL
}

// CircuitState returns the lazily-resolved breaker state for the endpoint.
// StateClosed and false are returned for unknown endpoints.
func (s *Service) CircuitState(endpointID string) (CircuitState, bool) {
	e := s.get(endpointID)
	if e == nil {
		return StateClosed, false
	}
	return e.breaker.State(), true
}

func (s *Service) get(endpointID string) *entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.entries[endpointID]
}
