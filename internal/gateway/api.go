// ABOUTME: HTTP API handlers for endpoint management and pending-request resolution.
// ABOUTME: Covers /api/endpoints, /api/sampling, and /api/elicitation routes.

package gateway

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/2389/aegis-gateway/internal/hitl"
	"github.com/2389/aegis-gateway/internal/registry"
	"github.com/2389/aegis-gateway/internal/store"
)

// RegisterEndpointRequest is the JSON request body for POST /api/endpoints.
type RegisterEndpointRequest struct {
	URL         string `json:"url"`
	Name        string `json:"name,omitempty"`
	FallbackURL string `json:"fallback_url,omitempty"`
}

// EndpointResponse is the JSON shape of an endpoint in API responses.
type EndpointResponse struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	URL          string `json:"url"`
	FallbackURL  string `json:"fallback_url,omitempty"`
	Enabled      bool   `json:"enabled"`
	Status       string `json:"status"`
	CircuitState string `json:"circuit_state"`
	RegisteredAt string `json:"registered_at"`
}

// ApproveSamplingRequest is the JSON request body for sampling approval.
type ApproveSamplingRequest struct {
	Result map[string]any `json:"result"`
}

// RejectSamplingRequest is the JSON request body for sampling rejection.
type RejectSamplingRequest struct {
	Reason string `json:"reason,omitempty"`
}

// ElicitationResponseRequest is the JSON request body for elicitation resolution.
type ElicitationResponseRequest struct {
	Action  string         `json:"action"`
	Content map[string]any `json:"content,omitempty"`
}

// endpointResponse builds the API shape for one endpoint, attaching the
// live circuit state when the endpoint is active.
func (g *Gateway) endpointResponse(ep *store.Endpoint) EndpointResponse {
	circuitState := "inactive"
	if state, ok := g.resilience.CircuitState(ep.ID); ok {
		circuitState = state.String()
	}
	return EndpointResponse{
		ID:           ep.ID,
		Name:         ep.Name,
		URL:          ep.URL,
		FallbackURL:  ep.FallbackURL,
		Enabled:      ep.Enabled,
		Status:       string(ep.Status),
		CircuitState: circuitState,
		RegisteredAt: ep.RegisteredAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

// handleEndpoints handles GET and POST /api/endpoints.
func (g *Gateway) handleEndpoints(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		g.handleListEndpoints(w, r)
	case http.MethodPost:
		g.handleRegisterEndpoint(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// handleListEndpoints returns all registered endpoints.
func (g *Gateway) handleListEndpoints(w http.ResponseWriter, r *http.Request) {
	endpoints, err := g.registry.List(r.Context())
	if err != nil {
		g.logger.Error("failed to list endpoints", "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	response := make([]EndpointResponse, 0, len(endpoints))
	for _, ep := range endpoints {
		response = append(response, g.endpointResponse(ep))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// handleRegisterEndpoint registers a new endpoint.
func (g *Gateway) handleRegisterEndpoint(w http.ResponseWriter, r *http.Request) {
	req, err := parseRegisterRequest(r.Body)
	if err != nil {
		g.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	ep, err := g.registry.Register(r.Context(), req.URL, req.Name, req.FallbackURL)
	if err != nil {
		switch {
		case errors.Is(err, registry.ErrInvalidURL):
			g.sendJSONError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, registry.ErrDuplicate):
			g.sendJSONError(w, http.StatusConflict, "endpoint with this URL already registered")
		default:
			g.logger.Error("failed to register endpoint", "error", err)
			g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(g.endpointResponse(ep))
}

// handleEndpointByID handles GET and DELETE /api/endpoints/{id}, plus the
// POST /api/endpoints/{id}/enable and /disable actions.
func (g *Gateway) handleEndpointByID(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/endpoints/")
	id, action, _ := strings.Cut(rest, "/")
	if id == "" {
		g.sendJSONError(w, http.StatusBadRequest, "endpoint id required")
		return
	}

	if action != "" {
		g.handleEndpointAction(w, r, id, action)
		return
	}

	switch r.Method {
	case http.MethodGet:
		ep, err := g.registry.Get(r.Context(), id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				g.sendJSONError(w, http.StatusNotFound, "endpoint not found")
				return
			}
			g.logger.Error("failed to get endpoint", "endpoint_id", id, "error", err)
			g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(g.endpointResponse(ep))

	case http.MethodDelete:
		if err := g.registry.Unregister(r.Context(), id); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				g.sendJSONError(w, http.StatusNotFound, "endpoint not found")
				return
			}
			g.logger.Error("failed to unregister endpoint", "endpoint_id", id, "error", err)
			g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// handleEndpointAction handles POST /api/endpoints/{id}/enable and /disable.
func (g *Gateway) handleEndpointAction(w http.ResponseWriter, r *http.Request, id, action string) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var err error
	switch action {
	case "enable":
		err = g.registry.Enable(r.Context(), id)
	case "disable":
		err = g.registry.Disable(r.Context(), id)
	default:
		g.sendJSONError(w, http.StatusNotFound, "unknown action")
		return
	}

	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			g.sendJSONError(w, http.StatusNotFound, "endpoint not found")
			return
		}
		g.logger.Error("endpoint action failed", "endpoint_id", id, "action", action, "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleListSampling handles GET /api/sampling/requests.
func (g *Gateway) handleListSampling(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	pending := g.sampling.ListPending()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"requests": pending})
}

// handleSamplingAction handles POST /api/sampling/requests/{id}/approve
// and /api/sampling/requests/{id}/reject.
func (g *Gateway) handleSamplingAction(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/api/sampling/requests/")
	id, action, _ := strings.Cut(rest, "/")
	if id == "" {
		g.sendJSONError(w, http.StatusBadRequest, "request id required")
		return
	}

	var ok bool
	switch action {
	case "approve":
		var req ApproveSamplingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			g.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		ok = g.sampling.Approve(id, req.Result)
	case "reject":
		var req RejectSamplingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			g.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		ok = g.sampling.Reject(id, req.Reason)
	default:
		g.sendJSONError(w, http.StatusNotFound, "unknown action")
		return
	}

	if !ok {
		g.sendJSONError(w, http.StatusConflict, "request not found or already resolved")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleListElicitation handles GET /api/elicitation/requests.
func (g *Gateway) handleListElicitation(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	pending := g.elicitation.ListPending()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"requests": pending})
}

// handleElicitationAction handles POST /api/elicitation/requests/{id}/respond.
func (g *Gateway) handleElicitationAction(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/api/elicitation/requests/")
	id, action, _ := strings.Cut(rest, "/")
	if id == "" {
		g.sendJSONError(w, http.StatusBadRequest, "request id required")
		return
	}
	if action != "respond" {
		g.sendJSONError(w, http.StatusNotFound, "unknown action")
		return
	}

	var req ElicitationResponseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	elAction := hitl.ElicitationAction(req.Action)
	switch elAction {
	case hitl.ActionAccept, hitl.ActionDecline, hitl.ActionCancel:
	default:
		g.sendJSONError(w, http.StatusBadRequest, "action must be accept, decline, or cancel")
		return
	}

	if !g.elicitation.Respond(id, elAction, req.Content) {
		g.sendJSONError(w, http.StatusConflict, "request not found or already resolved")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// sendJSONError writes a JSON error response.
func (g *Gateway) sendJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// parseRegisterRequest parses and validates a RegisterEndpointRequest.
// Returns an error if the JSON is invalid or the url field is missing.
func parseRegisterRequest(r io.Reader) (*RegisterEndpointRequest, error) {
	var req RegisterEndpointRequest
	if err := json.NewDecoder(r).Decode(&req); err != nil {
		return nil, errors.New("invalid JSON body")
	}

	if req.URL == "" {
		return nil, errors.New("url is required")
	}

	return &req, nil
}
