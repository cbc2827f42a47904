// Package syncer reconciles the in-memory campus aggregate with the remote
// shared store and the local durable mirror. The remote store is the
// cross-device source of truth; the local cache is a best-effort offline
// mirror; the built-in default is the floor the service never drops below.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"campushub/statesync/internal/broadcast"
	"campushub/statesync/internal/localcache"
	"campushub/statesync/internal/remote"
	"campushub/statesync/internal/state"
)

// ErrPayloadTooLarge is reported when the encoded aggregate exceeds the
// remote store's ceiling. Distinct from remote.ErrUnavailable so an admin
// knows to shrink an image rather than retry.
var ErrPayloadTooLarge = errors.New("payload exceeds remote store size limit")

// Coordinator owns the authoritative in-memory copy of the aggregate for the
// lifetime of the process. remote and local may each be nil; the coordinator
// degrades gracefully without them. No operation here ever panics or
// propagates garbage into a view.
type Coordinator struct {
	remote    remote.Store
	local     *localcache.Cache
	bus       *broadcast.Bus
	sizeLimit int

	mu      sync.Mutex
	current *state.AppState
}

func New(remoteStore remote.Store, local *localcache.Cache, bus *broadcast.Bus, sizeLimit int) *Coordinator {
	if sizeLimit <= 0 {
		sizeLimit = remote.DefaultSizeLimit
	}
	return &Coordinator{
		remote:    remoteStore,
		local:     local,
		bus:       bus,
		sizeLimit: sizeLimit,
		current:   state.Default(),
	}
}

// Load resolves the current aggregate, degrading through three tiers:
// remote (validated and mirrored locally) -> local cache -> built-in default.
// It never fails; every outcome is a usable aggregate.
func (c *Coordinator) Load(ctx context.Context) *state.AppState {
	if c.remote != nil {
		st, err := c.remote.Fetch(ctx)
		if err == nil {
			c.mirror(ctx, st)
			c.setCurrent(st)
			loadTotal.WithLabelValues("remote").Inc()
			return st.Clone()
		}
		log.Printf("remote fetch failed, falling back to local cache: %v", err)
	}
	if c.local != nil {
		st, err := c.local.Get(ctx)
		if err != nil {
			log.Printf("local cache read failed, falling back to default: %v", err)
		} else if st != nil {
			c.setCurrent(st)
			loadTotal.WithLabelValues("local").Inc()
			return st.Clone()
		}
	}
	st := state.Default()
	c.setCurrent(st)
	loadTotal.WithLabelValues("default").Inc()
	return st.Clone()
}

// Save makes newState the current aggregate everywhere it can reach. The
// local mirror is written unconditionally (its failures are swallowed). The
// remote replace is skipped with ErrPayloadTooLarge when the encoded size
// exceeds the ceiling, and reports ErrUnavailable on any remote failure. The
// change broadcast fires exactly once, only on success. Note the asymmetry on
// failure: the local copy already reflects newState even though other devices
// will not see it; callers surface that distinctly.
func (c *Coordinator) Save(ctx context.Context, newState *state.AppState) error {
	snapshot := newState.Clone()
	c.mirror(ctx, snapshot)
	c.setCurrent(snapshot)

	if c.remote != nil {
		encoded, err := snapshot.Encode()
		if err != nil {
			saveTotal.WithLabelValues("encode_error").Inc()
			return fmt.Errorf("encode aggregate: %w", err)
		}
		if len(encoded) > c.sizeLimit {
			saveTotal.WithLabelValues("too_large").Inc()
			return fmt.Errorf("%w: %d bytes over %d", ErrPayloadTooLarge, len(encoded), c.sizeLimit)
		}
		if err := c.remote.Replace(ctx, snapshot); err != nil {
			saveTotal.WithLabelValues("remote_error").Inc()
			return err
		}
	}

	saveTotal.WithLabelValues("ok").Inc()
	if c.bus != nil {
		c.bus.Publish(ctx)
	}
	return nil
}

// Reset replaces the aggregate with the built-in default, then broadcasts so
// every dependent view re-reads instead of holding stale collections.
func (c *Coordinator) Reset(ctx context.Context) error {
	return c.Save(ctx, state.Default())
}

// Current returns a snapshot of the authoritative in-memory copy without
// touching the network.
func (c *Coordinator) Current() *state.AppState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current.Clone()
}

// Subscribe registers a callback on the change broadcast. Returns an
// unsubscribe function.
func (c *Coordinator) Subscribe(fn func()) func() {
	if c.bus == nil {
		return func() {}
	}
	return c.bus.Subscribe(fn)
}

func (c *Coordinator) setCurrent(st *state.AppState) {
	c.mu.Lock()
	c.current = st.Clone()
	c.mu.Unlock()
}

// mirror persists a copy to the local cache. Best-effort: quota or storage
// failures are logged and swallowed so remote-first operation continues.
func (c *Coordinator) mirror(ctx context.Context, st *state.AppState) {
	if c.local == nil {
		return
	}
	if err := c.local.Put(ctx, st); err != nil {
		log.Printf("local cache write failed: %v", err)
	}
}
