// ABOUTME: Tests for the gateway run/shutdown lifecycle.
// ABOUTME: Covers endpoint restore, the sweeper and health-checker tickers, and graceful drain.

package gateway

import (
	"context"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/2389/aegis-gateway/internal/hitl"
)

func TestRunLifecycle(t *testing.T) {
	cfg := testConfig()
	cfg.HITL.SweepInterval = 10 * time.Millisecond
	cfg.Gateway.HealthCheckInterval = 10 * time.Millisecond

	g, err := New(cfg, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	var probes atomic.Int32
	g.probe = func(ctx context.Context, url string) error {
		probes.Add(1)
		return nil
	}
	registerTestEndpoint(t, g, "http://svc.internal:8080")

	// Already past the TTL; the sweeper should drop these shortly after startup.
	stale := time.Now().Add(-time.Hour)
	g.sampling.CreateRequest(hitl.SamplingRequest{ID: "stale-sampling", CreatedAt: stale})
	g.elicitation.CreateRequest(hitl.ElicitationRequest{ID: "stale-elicitation", CreatedAt: stale})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	runDone := make(chan error, 1)
	go func() { runDone <- g.Run(ctx) }()

	deadline := time.After(5 * time.Second)
	for len(g.sampling.ListPending())+len(g.elicitation.ListPending()) > 0 {
		select {
		case <-deadline:
			t.Fatal("sweeper never removed the expired requests")
		case <-time.After(5 * time.Millisecond):
		}
	}

	for probes.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("health checker never probed the endpoint")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	select {
	case err := <-runDone:
		if err != nil {
			t.Errorf("Run() error = %v, want nil on graceful shutdown", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after context cancel")
	}
}

func TestRunRestoresPersistedEndpoints(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "gateway.db")

	cfg := testConfig()
	cfg.Database.Path = dbPath
	g1, err := New(cfg, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	ep := registerTestEndpoint(t, g1, "http://svc.internal:8080")
	if err := g1.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown error = %v", err)
	}

	cfg2 := testConfig()
	cfg2.Database.Path = dbPath
	g2, err := New(cfg2, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	runDone := make(chan error, 1)
	go func() { runDone <- g2.Run(ctx) }()

	deadline := time.After(5 * time.Second)
	for {
		if _, ok := g2.resilience.CircuitState(ep.ID); ok {
			break
		}
		select {
		case <-deadline:
			t.Fatal("endpoint was never restored into the resilience state")
		case <-time.After(5 * time.Millisecond):
		}
	}
	if g2.registry.SamplingApprover(ep.ID) == nil {
		t.Error("expected restored endpoint to have a sampling approver")
	}

	cancel()
	select {
	case err := <-runDone:
		if err != nil {
			t.Errorf("Run() error = %v, want nil on graceful shutdown", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after context cancel")
	}
}
