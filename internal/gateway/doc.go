// Package gateway wires the aegis-gateway components together and exposes
// them over HTTP: endpoint management under /api/endpoints, pending-request
// listing and resolution under /api/sampling and /api/elicitation, a
// server-sent-events stream at /api/events, and health probes. Run starts
// the server, restores persisted endpoints, and runs the TTL sweeper until
// the context is canceled.
package gateway
