// ABOUTME: Tests for the fan-out event broadcaster.
// ABOUTME: Covers delivery, ordering, slow subscribers, cancellation cleanup, concurrency.

package events

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBroadcaster_SingleSubscriberReceivesEvent(t *testing.T) {
	b := NewBroadcaster(nil)
	defer b.Close()

	ch, _ := b.Subscribe(context.Background())

	b.Broadcast("sampling_request", map[string]any{"request_id": "r1"})

	select {
	case ev := <-ch:
		assert.Equal(t, "sampling_request", ev.Type)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestBroadcaster_AllSubscribersReceiveEveryEvent(t *testing.T) {
	b := NewBroadcaster(nil)
	defer b.Close()

	ch1, _ := b.Subscribe(context.Background())
	ch2, _ := b.Subscribe(context.Background())
	ch3, _ := b.Subscribe(context.Background())

	b.Broadcast("e1", nil)
	b.Broadcast("e2", nil)

	for i, ch := range []<-chan Event{ch1, ch2, ch3} {
		for _, want := range []string{"e1", "e2"} {
			select {
			case ev := <-ch:
				assert.Equal(t, want, ev.Type, "subscriber %d", i)
			case <-time.After(time.Second):
				t.Fatalf("subscriber %d timed out waiting for %s", i, want)
			}
		}
	}
}

func TestBroadcaster_PerSubscriberOrdering(t *testing.T) {
	b := NewBroadcaster(nil)
	defer b.Close()

	ch, _ := b.Subscribe(context.Background())

	for i := 0; i < 20; i++ {
		b.Broadcast(fmt.Sprintf("evt-%d", i), nil)
	}

	for i := 0; i < 20; i++ {
		select {
		case ev := <-ch:
			assert.Equal(t, fmt.Sprintf("evt-%d", i), ev.Type)
		case <-time.After(time.Second):
			t.Fatalf("timed out at event %d", i)
		}
	}
}

func TestBroadcaster_SlowSubscriberDoesNotBlockOthers(t *testing.T) {
	b := NewBroadcaster(nil)
	defer b.Close()

	// Never read from the slow subscriber.
	_, _ = b.Subscribe(context.Background())
	fast, _ := b.Subscribe(context.Background())

	done := make(chan struct{})
	go func() {
		// Overflow the slow subscriber's buffer; Broadcast must not block.
		for i := 0; i < 200; i++ {
			b.Broadcast("overflow", nil)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("broadcast blocked on a slow subscriber")
	}

	received := 0
	for {
		select {
		case <-fast:
			received++
		default:
			goto drained
		}
	}
drained:
	assert.Greater(t, received, 0, "fast subscriber still receives events")
}

func TestBroadcaster_ContextCancellationCleansUp(t *testing.T) {
	b := NewBroadcaster(nil)
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	ch, _ := b.Subscribe(ctx)
	require.Equal(t, 1, b.SubscriberCount())

	cancel()

	// Give the cleanup goroutine time to run.
	require.Eventually(t, func() bool {
		return b.SubscriberCount() == 0
	}, time.Second, 10*time.Millisecond)

	select {
	case _, ok := <-ch:
		assert.False(t, ok, "channel should be closed after context cancel")
	case <-time.After(time.Second):
		t.Fatal("channel not closed after context cancel")
	}
}

func TestBroadcaster_ManualUnsubscribe(t *testing.T) {
	b := NewBroadcaster(nil)
	defer b.Close()

	ch, subID := b.Subscribe(context.Background())
	b.Unsubscribe(subID)

	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("channel not closed after unsubscribe")
	}

	// Double unsubscribe and broadcast after removal must not panic.
	b.Unsubscribe(subID)
	b.Broadcast("after", nil)
}

func TestBroadcaster_CloseClosesAllSubscriptions(t *testing.T) {
	b := NewBroadcaster(nil)

	ch1, _ := b.Subscribe(context.Background())
	ch2, _ := b.Subscribe(context.Background())

	b.Close()

	for i, ch := range []<-chan Event{ch1, ch2} {
		select {
		case _, ok := <-ch:
			assert.False(t, ok, "channel %d should be closed", i)
		case <-time.After(time.Second):
			t.Fatalf("channel %d not closed after Close()", i)
		}
	}

	// Subscribing after close yields a closed channel.
	ch3, _ := b.Subscribe(context.Background())
	_, ok := <-ch3
	assert.False(t, ok)
}

func TestBroadcaster_ConcurrentBroadcastSubscribe(t *testing.T) {
	b := NewBroadcaster(nil)
	defer b.Close()

	var wg sync.WaitGroup
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ch, _ := b.Subscribe(ctx)
			for i := 0; i < 5; i++ {
				select {
				case <-ch:
				case <-time.After(500 * time.Millisecond):
					return
				}
			}
		}()
	}

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 10; i++ {
				b.Broadcast("concurrent", nil)
			}
		}()
	}

	wg.Wait()
}
