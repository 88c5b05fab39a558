// ABOUTME: Tests for the SSE event stream handler.
// ABOUTME: Verifies headers, event framing, and disconnect cleanup.

package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestHandleEvents_MethodNotAllowed(t *testing.T) {
	g := newTestGateway(t)

	req := httptest.NewRequest(http.MethodPost, "/api/events", nil)
	rec := httptest.NewRecorder()
	g.handleEvents(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected status %d, got %d", http.StatusMethodNotAllowed, rec.Code)
	}
}

func TestHandleEvents_StreamsBroadcasts(t *testing.T) {
	g := newTestGateway(t)

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/api/events", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	handlerDone := make(chan struct{})
	go func() {
		g.handleEvents(rec, req)
		close(handlerDone)
	}()

	// Wait for the subscription to land, then broadcast
	deadline := time.After(2 * time.Second)
	for g.broadcaster.SubscriberCount() == 0 {
		select {
		case <-deadline:
			t.Fatal("subscriber never registered")
		default:
			time.Sleep(5 * time.Millisecond)
		}
	}

	g.broadcaster.Broadcast("sampling_request", map[string]string{"request_id": "req-1"})

	// Give the handler a moment to write the event, then disconnect
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-handlerDone:
	case <-time.After(2 * time.Second):
		t.Fatal("handler did not return after disconnect")
	}

	if got := rec.Header().Get("Content-Type"); got != "text/event-stream" {
		t.Errorf("Content-Type = %q, want text/event-stream", got)
	}
	if got := rec.Header().Get("Cache-Control"); got != "no-cache" {
		t.Errorf("Cache-Control = %q, want no-cache", got)
	}

	body := rec.Body.String()
	if !strings.Contains(body, "event: sampling_request\n") {
		t.Errorf("body missing event line: %q", body)
	}
	if !strings.Contains(body, `"request_id":"req-1"`) {
		t.Errorf("body missing data payload: %q", body)
	}

	// Subscriber slot is released on disconnect
	deadline = time.After(2 * time.Second)
	for g.broadcaster.SubscriberCount() != 0 {
		select {
		case <-deadline:
			t.Fatal("subscriber never cleaned up")
		default:
			time.Sleep(5 * time.Millisecond)
		}
	}
}
