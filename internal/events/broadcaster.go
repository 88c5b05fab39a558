// ABOUTME: In-memory fan-out broadcaster pushing gateway events to observers.
// ABOUTME: Backs the SSE stream that notifies clients of HITL escalations.

package events

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

const (
	// subscriberBufferSize is the channel buffer for each subscriber.
	subscriberBufferSize = 64
)

// Event is a single broadcast item: a type tag and an arbitrary JSON-encodable payload.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Broadcaster provides in-memory pub/sub for gateway events. Delivery is
// best-effort: a full subscriber drops events without affecting delivery to
// other subscribers or the broadcasting caller.
type Broadcaster struct {
	mu          sync.Mutex
	subscribers map[string]chan Event
	logger      *slog.Logger
	closed      bool
}

// NewBroadcaster creates a broadcaster. Pass nil logger for default.
func NewBroadcaster(logger *slog.Logger) *Broadcaster {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broadcaster{
		subscribers: make(map[string]chan Event),
		logger:      logger.With("component", "broadcaster"),
	}
}

// Subscribe registers a subscriber and returns its event channel and a
// subscription ID for later unsubscription. The subscription is automatically
// cleaned up when ctx is cancelled, so every exit path of the consumer
// releases its slot.
func (b *Broadcaster) Subscribe(ctx context.Context) (<-chan Event, string) {
	subID := uuid.New().String()
	ch := make(chan Event, subscriberBufferSize)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(ch)
		return ch, subID
	}
	b.subscribers[subID] = ch
	b.mu.Unlock()

	b.logger.Debug("subscriber added", "sub_id", subID)

	go func() {
		<-ctx.Done()
		b.Unsubscribe(subID)
	}()

	return ch, subID
}

// Broadcast sends an event to every current subscriber with a non-blocking
// enqueue. Broadcasts are serialized through the broadcaster lock, so each
// subscriber observes events in the order Broadcast was called. Never fails
// the caller.
func (b *Broadcaster) Broadcast(eventType string, data any) {
	event := Event{Type: eventType, Data: data}

	b.mu.Lock()
	defer b.mu.Unlock()

	for subID, ch := range b.subscribers {
		select {
		case ch <- event:
		default:
			// Subscriber channel full — drop the event for this subscriber only.
			b.logger.Debug("dropped event for slow subscriber",
				"sub_id", subID,
				"event_type", eventType)
		}
	}
}

// Unsubscribe removes a subscription and closes its channel. Safe to call
// for unknown or already-removed IDs.
func (b *Broadcaster) Unsubscribe(subID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch, exists := b.subscribers[subID]
	if !exists {
		return
	}
	delete(b.subscribers, subID)
	close(ch)

	b.logger.Debug("subscriber removed", "sub_id", subID)
}

// SubscriberCount returns the number of live subscriptions.
func (b *Broadcaster) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subscribers)
}

// Close shuts down the broadcaster and closes all subscriber channels.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for subID, ch := range b.subscribers {
		close(ch)
		delete(b.subscribers, subID)
	}

	b.logger.Debug("broadcaster closed")
}
