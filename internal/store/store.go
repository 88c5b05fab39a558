// ABOUTME: Store interface and endpoint entity for aegis-gateway persistence.
// ABOUTME: Endpoints survive restarts so resilience state can be rebuilt at startup.

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicateEndpoint is returned when an endpoint with the same URL already exists.
var ErrDuplicateEndpoint = errors.New("endpoint already exists")

// Endpoint status constants.
const (
	EndpointStatusUnknown      = "unknown"
	EndpointStatusConnected    = "connected"
	EndpointStatusDisconnected = "disconnected"
	EndpointStatusError        = "error"
)

// Endpoint is a registered backend: a tool server or peer agent reachable
// over the backend RPC protocol.
type Endpoint struct {
	ID              string
	Name            string
	URL             string
	FallbackURL     string
	Enabled         bool
	Status          string
	RegisteredAt    time.Time
	LastHealthCheck *time.Time
}

// Store is the persistence interface for endpoint records.
type Store interface {
	// SaveEndpoint inserts or updates an endpoint record.
	SaveEndpoint(ctx context.Context, ep *Endpoint) error

	// GetEndpoint returns the endpoint with the given id, or ErrNotFound.
	GetEndpoint(ctx context.Context, id string) (*Endpoint, error)

	// GetEndpointByURL returns the endpoint with the given primary URL, or ErrNotFound.
	GetEndpointByURL(ctx context.Context, url string) (*Endpoint, error)

	// ListEndpoints returns all endpoints ordered by registration time.
	ListEndpoints(ctx context.Context) ([]*Endpoint, error)

	// DeleteEndpoint removes the endpoint. Returns ErrNotFound if absent.
	DeleteEndpoint(ctx context.Context, id string) error

	// SetEnabled flips the enabled flag. Returns ErrNotFound if absent.
	SetEnabled(ctx context.Context, id string, enabled bool) error

	// UpdateStatus records a connection status and health-check time.
	UpdateStatus(ctx context.Context, id, status string) error

	// Close releases the underlying resources.
	Close() error
}
