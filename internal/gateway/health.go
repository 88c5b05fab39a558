// ABOUTME: Background health monitor for registered endpoints.
// ABOUTME: Probes enabled endpoints on an interval and persists connection status.

package gateway

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/2389/aegis-gateway/internal/store"
)

// healthProbe reports whether the backend at url answered a liveness probe.
type healthProbe func(ctx context.Context, url string) error

// httpProbe probes a backend over plain HTTP. Any response below 500 counts
// as alive: the backend is reachable even if it rejects the probed path.
func httpProbe(client *http.Client) healthProbe {
	return func(ctx context.Context, url string) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		resp, err := client.Do(req)
		if err != nil {
			return err
		}
		defer func() { _ = resp.Body.Close() }()
		if resp.StatusCode >= http.StatusInternalServerError {
			return fmt.Errorf("probe returned status %d", resp.StatusCode)
		}
		return nil
	}
}

// runHealthChecker probes all enabled endpoints once at startup, then on a
// fixed interval until the done channel closes.
func (g *Gateway) runHealthChecker(ctx context.Context) {
	g.checkAllEndpoints(ctx)

	ticker := time.NewTicker(g.config.Gateway.HealthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-g.done:
			return
		case <-ticker.C:
			g.checkAllEndpoints(ctx)
		}
	}
}

// checkAllEndpoints probes every enabled endpoint, persists the resulting
// status, and feeds the outcome into the resilience state so an unreachable
// backend trips its circuit before traffic hits it.
func (g *Gateway) checkAllEndpoints(ctx context.Context) {
	endpoints, err := g.store.ListEndpoints(ctx)
	if err != nil {
		g.logger.Warn("health check: listing endpoints failed", "error", err)
		return
	}

	for _, ep := range endpoints {
		if !ep.Enabled {
			continue
		}

		status := store.EndpointStatusConnected
		if err := g.probe(ctx, ep.URL); err != nil {
			status = store.EndpointStatusError
			g.resilience.RecordFailure(ep.ID)
		} else {
			g.resilience.RecordSuccess(ep.ID)
		}

		if err := g.store.UpdateStatus(ctx, ep.ID, status); err != nil {
			g.logger.Warn("health check: status update failed", "endpoint_id", ep.ID, "error", err)
			continue
		}
		if ep.Status != status {
			g.logger.Info("endpoint status changed", "endpoint_id", ep.ID, "from", ep.Status, "to", status)
		}
	}
}
