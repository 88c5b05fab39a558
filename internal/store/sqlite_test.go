// ABOUTME: Tests for the SQLite endpoint store.
// ABOUTME: Uses in-memory databases so each test gets a fresh schema.

package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSaveAndGetEndpoint(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	ep := &Endpoint{
		ID:          "ep-1",
		Name:        "billing",
		URL:         "http://billing.internal:8080",
		FallbackURL: "http://billing-standby.internal:8080",
		Enabled:     true,
	}
	require.NoError(t, s.SaveEndpoint(ctx, ep))

	got, err := s.GetEndpoint(ctx, "ep-1")
	require.NoError(t, err)
	assert.Equal(t, "billing", got.Name)
	assert.Equal(t, "http://billing.internal:8080", got.URL)
	assert.Equal(t, "http://billing-standby.internal:8080", got.FallbackURL)
	assert.True(t, got.Enabled)
	assert.Equal(t, EndpointStatusUnknown, got.Status)
	assert.False(t, got.RegisteredAt.IsZero())
	assert.Nil(t, got.LastHealthCheck)
}

func TestGetEndpointNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetEndpoint(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetEndpointByURL(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveEndpoint(ctx, &Endpoint{
		ID:      "ep-1",
		Name:    "search",
		URL:     "http://search.internal:9200",
		Enabled: true,
	}))

	got, err := s.GetEndpointByURL(ctx, "http://search.internal:9200")
	require.NoError(t, err)
	assert.Equal(t, "ep-1", got.ID)

	_, err = s.GetEndpointByURL(ctx, "http://missing.internal")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSaveEndpointDuplicateURL(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveEndpoint(ctx, &Endpoint{
		ID:      "ep-1",
		Name:    "first",
		URL:     "http://svc.internal:8080",
		Enabled: true,
	}))

	err := s.SaveEndpoint(ctx, &Endpoint{
		ID:      "ep-2",
		Name:    "second",
		URL:     "http://svc.internal:8080",
		Enabled: true,
	})
	assert.ErrorIs(t, err, ErrDuplicateEndpoint)
}

func TestSaveEndpointUpsert(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	ep := &Endpoint{ID: "ep-1", Name: "old", URL: "http://a.internal", Enabled: true}
	require.NoError(t, s.SaveEndpoint(ctx, ep))

	ep.Name = "new"
	ep.Enabled = false
	require.NoError(t, s.SaveEndpoint(ctx, ep))

	got, err := s.GetEndpoint(ctx, "ep-1")
	require.NoError(t, err)
	assert.Equal(t, "new", got.Name)
	assert.False(t, got.Enabled)
}

func TestListEndpoints(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	eps, err := s.ListEndpoints(ctx)
	require.NoError(t, err)
	assert.Empty(t, eps)

	base := time.Now().UTC()
	require.NoError(t, s.SaveEndpoint(ctx, &Endpoint{
		ID: "ep-1", Name: "a", URL: "http://a", Enabled: true, RegisteredAt: base,
	}))
	require.NoError(t, s.SaveEndpoint(ctx, &Endpoint{
		ID: "ep-2", Name: "b", URL: "http://b", Enabled: true, RegisteredAt: base.Add(time.Second),
	}))

	eps, err = s.ListEndpoints(ctx)
	require.NoError(t, err)
	require.Len(t, eps, 2)
	assert.Equal(t, "ep-1", eps[0].ID)
	assert.Equal(t, "ep-2", eps[1].ID)
}

func TestDeleteEndpoint(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveEndpoint(ctx, &Endpoint{
		ID: "ep-1", Name: "a", URL: "http://a", Enabled: true,
	}))
	require.NoError(t, s.DeleteEndpoint(ctx, "ep-1"))

	_, err := s.GetEndpoint(ctx, "ep-1")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, s.DeleteEndpoint(ctx, "ep-1"), ErrNotFound)
}

func TestSetEnabled(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveEndpoint(ctx, &Endpoint{
		ID: "ep-1", Name: "a", URL: "http://a", Enabled: true,
	}))

	require.NoError(t, s.SetEnabled(ctx, "ep-1", false))
	got, err := s.GetEndpoint(ctx, "ep-1")
	require.NoError(t, err)
	assert.False(t, got.Enabled)

	assert.ErrorIs(t, s.SetEnabled(ctx, "ghost", true), ErrNotFound)
}

func TestUpdateStatus(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveEndpoint(ctx, &Endpoint{
		ID: "ep-1", Name: "a", URL: "http://a", Enabled: true,
	}))

	require.NoError(t, s.UpdateStatus(ctx, "ep-1", EndpointStatusConnected))
	got, err := s.GetEndpoint(ctx, "ep-1")
	require.NoError(t, err)
	assert.Equal(t, EndpointStatusConnected, got.Status)
	require.NotNil(t, got.LastHealthCheck)
	assert.WithinDuration(t, time.Now(), *got.LastHealthCheck, 5*time.Second)

	assert.ErrorIs(t, s.UpdateStatus(ctx, "ghost", EndpointStatusError), ErrNotFound)
}
