package worker

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

// Loader reloads the project cache from the remote store.
// Implemented by *cache.Cache.
type Loader interface {
	Load(ctx context.Context) error
	Len() int
}

// RefreshCoordinator keeps the project cache in step with the remote store.
// A failed reload leaves the previous snapshot in place.
type RefreshCoordinator struct {
	cache    Loader
	interval time.Duration
	failures atomic.Int64
}

// NewRefreshCoordinator creates a coordinator that reloads cache every interval.
func NewRefreshCoordinator(cache Loader, interval time.Duration) *RefreshCoordinator {
	return &RefreshCoordinator{cache: cache, interval: interval}
}

// ConsecutiveFailures is the number of reloads that have failed since the
// last successful one.
func (c *RefreshCoordinator) ConsecutiveFailures() int64 {
	return c.failures.Load()
}

// Run reloads once straight away, then every interval until ctx is done.
func (c *RefreshCoordinator) Run(ctx context.Context) {
	log := slog.Default().With("component", "worker", "worker", "refresh-coordinator")
	log.Info("worker started", "action", "worker_started", "interval", c.interval.String())

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		c.refresh(ctx, log)
		select {
		case <-ctx.Done():
			log.Info("worker stopped", "action", "worker_stopped", "reason", "context_cancelled")
			return
		case <-ticker.C:
		}
	}
}

func (c *RefreshCoordinator) refresh(ctx context.Context, log *slog.Logger) {
	start := time.Now()

	if err := c.cache.Load(ctx); err != nil {
		if ctx.Err() != nil {
			return
		}
		log.Warn("cache refresh failed",
			"action", "refresh_failed",
			"consecutive_failures", c.failures.Add(1),
			"error", err,
		)
		return
	}

	if n := c.failures.Swap(0); n > 0 {
		log.Info("cache refresh recovered", "action", "refresh_recovered", "after_failures", n)
	}
	log.Debug("cache refreshed",
		"action", "refresh_complete",
		"projects", c.cache.Len(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
}
