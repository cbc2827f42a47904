package broadcast

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestPublishReachesAllSubscribers(t *testing.T) {
	bus := NewBus()
	var calls atomic.Int64
	done := make(chan struct{}, 2)
	for i := 0; i < 2; i++ {
		bus.Subscribe(func() {
			calls.Add(1)
			done <- struct{}{}
		})
	}
	bus.Publish(context.Background())
	for i := 0; i < 2; i++ {
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatalf("subscriber %d not notified", i)
		}
	}
	if calls.Load() != 2 {
		t.Fatalf("expected 2 calls, got %d", calls.Load())
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	bus := NewBus()
	var calls atomic.Int64
	unsubscribe := bus.Subscribe(func() { calls.Add(1) })
	unsubscribe()
	bus.Publish(context.Background())
	time.Sleep(50 * time.Millisecond)
	if calls.Load() != 0 {
		t.Fatalf("expected no calls after unsubscribe, got %d", calls.Load())
	}
}

func TestPublishWithNoSubscribers(t *testing.T) {
	bus := NewBus()
	// Must not panic or block.
	bus.Publish(context.Background())
}
