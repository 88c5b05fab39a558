// ABOUTME: SSE handler streaming gateway events to connected clients.
// ABOUTME: Subscribers are removed automatically on client disconnect.

package gateway

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// handleEvents handles GET /api/events. It subscribes the client to the
// event broadcaster and streams each event in SSE format until the client
// disconnects.
func (g *Gateway) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		g.sendJSONError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	// Subscription is torn down by the broadcaster when the request
	// context is canceled.
	ch, subID := g.broadcaster.Subscribe(r.Context())
	g.logger.Info("event stream client connected", "sub_id", subID)

	for {
		select {
		case <-r.Context().Done():
			g.logger.Info("event stream client disconnected", "sub_id", subID)
			return
		case event, ok := <-ch:
			if !ok {
				return
			}
			g.writeSSEEvent(w, event.Type, event.Data)
			flusher.Flush()
		}
	}
}

// writeSSEEvent writes a single SSE event to the response writer.
func (g *Gateway) writeSSEEvent(w http.ResponseWriter, event string, data any) {
	dataJSON, err := json.Marshal(data)
	if err != nil {
		g.logger.Error("failed to marshal SSE data", "error", err)
		return
	}

	fmt.Fprintf(w, "event: %s\n", event)
	fmt.Fprintf(w, "data: %s\n\n", dataJSON)
}
