package syncer

import (
	"context"
	"log"
	"time"

	"campushub/statesync/internal/config"
)

// StartPoller re-pulls the shared aggregate on a fixed interval to
// approximate real-time sync across devices without a push channel. Each tick
// is a silent load: the in-memory copy is refreshed and the change broadcast
// fires only when the fetched aggregate differs from the one currently held.
// The goroutine stops when ctx is cancelled.
func StartPoller(ctx context.Context, cfg config.Config, coordinator *Coordinator) {
	if !cfg.PollEnabled {
		return
	}
	interval := cfg.PollInterval
	if interval <= 0 {
		interval = 15 * time.Second
	}
	timeout := cfg.PollTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				tickCtx, cancel := context.WithTimeout(ctx, timeout)
				changed := coordinator.refresh(tickCtx)
				cancel()
				if changed {
					log.Printf("poll refresh picked up a changed aggregate")
				}
			}
		}
	}()
}

// refresh performs one silent poll tick. Returns whether the aggregate
// changed.
func (c *Coordinator) refresh(ctx context.Context) bool {
	previous := c.Current()
	latest := c.Load(ctx)
	if latest.Equal(previous) {
		return false
	}
	pollRefreshTotal.Inc()
	if c.bus != nil {
		c.bus.Publish(ctx)
	}
	return true
}
