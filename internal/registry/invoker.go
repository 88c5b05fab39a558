// ABOUTME: Admission-checked call path for registered endpoints.
// ABOUTME: Circuit and rate checks, outcome recording, one fallback retry.

package registry

import (
	"context"
	"errors"
	"log/slog"

	"github.com/2389/aegis-gateway/internal/resilience"
)

// Invocation errors
var (
	ErrUnknownEndpoint = errors.New("unknown endpoint")
	ErrCircuitOpen     = errors.New("circuit breaker open")
	ErrRateLimited     = errors.New("rate limit exceeded")
)

// CallFunc performs the actual request against the given URL. The Invoker
// treats a non-nil error as a failure for circuit accounting.
type CallFunc func(ctx context.Context, url string) error

// Invoker runs calls through the resilience admission checks and records
// their outcomes. It is safe for concurrent use.
type Invoker struct {
	resilience *resilience.Service
	logger     *slog.Logger
}

// NewInvoker creates an Invoker. Pass nil logger for the default.
func NewInvoker(rs *resilience.Service, logger *slog.Logger) *Invoker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Invoker{
		resilience: rs,
		logger:     logger.With("component", "invoker"),
	}
}

// Do executes call against the endpoint's active URL after admission checks.
// An open circuit returns ErrCircuitOpen, an empty bucket ErrRateLimited;
// neither consumes resources downstream. Call outcomes feed the breaker.
// When the primary call fails and a fallback URL is configured (and was not
// already the target), the call is retried once on the fallback; a second
// failure propagates the fallback's error.
func (inv *Invoker) Do(ctx context.Context, endpointID string, call CallFunc) error {
	activeURL := inv.resilience.ActiveURL(endpointID)
	if activeURL == "" {
		return ErrUnknownEndpoint
	}

	if !inv.resilience.CanExecute(endpointID) {
		return ErrCircuitOpen
	}

	if !inv.resilience.CheckRateLimit(endpointID) {
		return ErrRateLimited
	}

	err := call(ctx, activeURL)
	if err == nil {
		inv.resilience.RecordSuccess(endpointID)
		return nil
	}
	inv.resilience.RecordFailure(endpointID)

	fallbackURL := inv.resilience.FallbackURL(endpointID)
	if fallbackURL == "" || fallbackURL == activeURL {
		return err
	}

	inv.logger.Info("primary call failed, retrying on fallback",
		"endpoint_id", endpointID,
		"error", err,
	)

	if err := call(ctx, fallbackURL); err != nil {
		inv.resilience.RecordFailure(endpointID)
		return err
	}
	inv.resilience.RecordSuccess(endpointID)
	return nil
}
