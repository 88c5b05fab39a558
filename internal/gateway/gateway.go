// ABOUTME: Gateway orchestrator wiring store, resilience, brokers, and HTTP server
// ABOUTME: Manages startup, the TTL sweeper, the health checker, and graceful shutdown

package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/2389/aegis-gateway/internal/auth"
	"github.com/2389/aegis-gateway/internal/config"
	"github.com/2389/aegis-gateway/internal/events"
	"github.com/2389/aegis-gateway/internal/hitl"
	"github.com/2389/aegis-gateway/internal/registry"
	"github.com/2389/aegis-gateway/internal/resilience"
	"github.com/2389/aegis-gateway/internal/store"
)

// Gateway orchestrates the aegis-gateway server components. It owns the
// endpoint store, the resilience state, the pending-request brokers, and the
// HTTP server exposing the management API and event stream.
type Gateway struct {
	config      *config.Config
	store       store.Store
	resilience  *resilience.Service
	registry    *registry.Registry
	invoker     *registry.Invoker
	sampling    *hitl.SamplingBroker
	elicitation *hitl.ElicitationBroker
	broadcaster *events.Broadcaster
	httpServer  *http.Server
	logger      *slog.Logger

	// probe checks a single backend; swappable in tests
	probe healthProbe

	// done stops the background sweeper and health-checker goroutines
	done chan struct{}
}

// initStore creates and returns a store based on config and environment.
func initStore(cfg *config.Config) (store.Store, error) {
	dbPath := cfg.Database.Path
	if envPath := os.Getenv("AEGIS_DB_PATH"); envPath != "" {
		dbPath = envPath
	}

	s, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("initializing store: %w", err)
	}
	return s, nil
}

// registerAPIRoutes registers API routes on the mux with or without auth middleware.
func (g *Gateway) registerAPIRoutes(mux *http.ServeMux) {
	routes := map[string]http.HandlerFunc{
		"/api/endpoints":             g.handleEndpoints,
		"/api/endpoints/":            g.handleEndpointByID,
		"/api/sampling/requests":     g.handleListSampling,
		"/api/sampling/requests/":    g.handleSamplingAction,
		"/api/elicitation/requests":  g.handleListElicitation,
		"/api/elicitation/requests/": g.handleElicitationAction,
		"/api/events":                g.handleEvents,
	}

	if g.config.Auth.JWTSecret != "" {
		verifier := auth.NewJWTVerifier([]byte(g.config.Auth.JWTSecret))
		middleware := auth.Middleware(verifier)
		for pattern, handler := range routes {
			mux.Handle(pattern, middleware(handler))
		}
		g.logger.Info("HTTP auth middleware enabled")
		return
	}

	for pattern, handler := range routes {
		mux.HandleFunc(pattern, handler)
	}
	g.logger.Warn("HTTP auth disabled - no jwt_secret configured")
}

// New creates a new Gateway instance with the given configuration.
func New(cfg *config.Config, logger *slog.Logger) (*Gateway, error) {
	if logger == nil {
		logger = slog.Default()
	}

	s, err := initStore(cfg)
	if err != nil {
		return nil, err
	}

	rs := resilience.NewService(resilience.Config{
		RateLimitRPS:     cfg.Gateway.RateLimitRPS,
		BurstSize:        cfg.Gateway.BurstSize,
		FailureThreshold: cfg.Gateway.FailureThreshold,
		RecoveryTimeout:  cfg.Gateway.RecoveryTimeout,
	}, logger)

	broadcaster := events.NewBroadcaster(logger.With("component", "broadcaster"))
	sampling := hitl.NewSamplingBroker(cfg.HITL.RequestTTL)
	elicitation := hitl.NewElicitationBroker(cfg.HITL.RequestTTL)
	timeouts := hitl.Timeouts{Short: cfg.HITL.ShortTimeout, Long: cfg.HITL.LongTimeout}

	reg := registry.New(s, rs, sampling, elicitation, broadcaster, timeouts, logger)

	g := &Gateway{
		config:      cfg,
		store:       s,
		resilience:  rs,
		registry:    reg,
		invoker:     registry.NewInvoker(rs, logger),
		sampling:    sampling,
		elicitation: elicitation,
		broadcaster: broadcaster,
		logger:      logger.With("component", "gateway"),
		probe:       httpProbe(&http.Client{Timeout: 5 * time.Second}),
		done:        make(chan struct{}),
	}

	mux := http.NewServeMux()

	// Health endpoints - no auth required
	mux.HandleFunc("/health", g.handleHealth)
	mux.HandleFunc("/health/ready", g.handleReady)

	g.registerAPIRoutes(mux)

	g.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return g, nil
}

// Registry exposes the endpoint registry for callers embedding the gateway.
func (g *Gateway) Registry() *registry.Registry {
	return g.registry
}

// Invoker exposes the admission-checked call path.
func (g *Gateway) Invoker() *registry.Invoker {
	return g.invoker
}

// runSweeper drops expired pending requests on a fixed interval until
// the done channel closes.
func (g *Gateway) runSweeper() {
	ticker := time.NewTicker(g.config.HITL.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-g.done:
			return
		case <-ticker.C:
			swept := g.sampling.SweepExpired() + g.elicitation.SweepExpired()
			if swept > 0 {
				g.logger.Info("swept expired pending requests", "count", swept)
			}
		}
	}
}

// startServer starts the HTTP server in a goroutine, returning an error channel.
func (g *Gateway) startServer(ln net.Listener) chan error {
	errCh := make(chan error, 1)

	go func() {
		g.logger.Info("HTTP server listening", "addr", ln.Addr().String())
		if err := g.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	return errCh
}

// waitForShutdownSignal waits for context cancellation or a server error.
func (g *Gateway) waitForShutdownSignal(ctx context.Context, errCh chan error) error {
	select {
	case <-ctx.Done():
		g.logger.Info("context canceled, initiating shutdown")
		return nil
	case err := <-errCh:
		g.logger.Error("server error", "error", err)
		return err
	}
}

// Run starts the gateway and blocks until the context is canceled.
// Persisted endpoints are restored before the server accepts traffic.
// Returns nil on graceful shutdown, or an error if the server fails.
func (g *Gateway) Run(ctx context.Context) error {
	if err := g.registry.Restore(ctx); err != nil {
		return err
	}

	ln, err := net.Listen("tcp", g.config.Server.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listening on HTTP address: %w", err)
	}

	go g.runSweeper()
	if g.config.Gateway.HealthCheckInterval > 0 {
		go g.runHealthChecker(ctx)
	}

	errCh := g.startServer(ln)
	serverErr := g.waitForShutdownSignal(ctx, errCh)

	shutdownErr := g.gracefulShutdown()

	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

// gracefulShutdown performs shutdown with a fresh context and timeout.
// Uses context.Background() intentionally since the original context is already canceled.
func (g *Gateway) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return g.Shutdown(ctx)
}

// Shutdown gracefully stops the gateway and releases resources.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.logger.Info("shutting down gateway")

	close(g.done)

	var errs []error
	if err := g.httpServer.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("HTTP shutdown: %w", err))
	}

	g.broadcaster.Close()

	if err := g.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("store close: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}
	return nil
}

// handleHealth returns 200 OK if the server is alive.
func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleReady returns 200 OK once at least one endpoint is registered.
func (g *Gateway) handleReady(w http.ResponseWriter, r *http.Request) {
	endpoints, err := g.registry.List(r.Context())
	if err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("store unavailable"))
		return
	}
	if len(endpoints) == 0 {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("no endpoints registered"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, "ready (%d endpoints)", len(endpoints))
}
