// Package broadcast carries the single "state changed" signal between
// whatever currently renders a piece of the aggregate. There is no payload:
// subscribers re-read the full aggregate, which is small enough that refetch
// is cheap.
package broadcast

import (
	"context"
	"log"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Bus is the in-process publish/subscribe channel. An attached redis relay
// extends the signal across processes on the same document; the relay is
// best-effort and never required for correctness.
type Bus struct {
	mu   sync.Mutex
	subs map[int]func()
	next int

	rdb        *redis.Client
	channel    string
	instanceID string
}

func NewBus() *Bus {
	return &Bus{
		subs:       make(map[int]func()),
		instanceID: uuid.NewString(),
	}
}

// Subscribe registers a no-argument callback invoked on every published
// change. The returned function removes the subscription.
func (b *Bus) Subscribe(fn func()) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.next
	b.next++
	b.subs[id] = fn
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subs, id)
	}
}

// Publish signals a confirmed state change. Fire-and-forget: subscribers run
// on their own goroutines and the relay publish is best-effort.
func (b *Bus) Publish(ctx context.Context) {
	b.fanout()
	b.mu.Lock()
	rdb, channel, instance := b.rdb, b.channel, b.instanceID
	b.mu.Unlock()
	if rdb == nil {
		return
	}
	if err := rdb.Publish(ctx, channel, instance).Err(); err != nil {
		log.Printf("broadcast relay publish error: %v", err)
	}
}

func (b *Bus) fanout() {
	b.mu.Lock()
	callbacks := make([]func(), 0, len(b.subs))
	for _, fn := range b.subs {
		callbacks = append(callbacks, fn)
	}
	b.mu.Unlock()
	for _, fn := range callbacks {
		go fn()
	}
}

// AttachRelay connects the bus to a redis channel so changes published by
// other processes reach local subscribers. Messages carrying this instance's
// id are ignored to avoid echoing our own publishes. The relay stops when ctx
// is cancelled.
func (b *Bus) AttachRelay(ctx context.Context, rdb *redis.Client, channel string) {
	b.mu.Lock()
	b.rdb = rdb
	b.channel = channel
	b.mu.Unlock()

	pubsub := rdb.Subscribe(ctx, channel)
	go func() {
		defer pubsub.Close()
		messages := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}
				if msg.Payload == b.instanceID {
					continue
				}
				b.fanout()
			}
		}
	}()
}
