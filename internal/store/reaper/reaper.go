// Package reaper provides background eviction of expired entries.
//
// Expiration in stashkv is otherwise passive: an expired entry is
// detected on read but stays in memory until overwritten. The reaper
// bounds that growth by periodically sweeping the store under its
// normal lock discipline.
package reaper

import (
	"context"
	"log/slog"
	"time"
)

// Store is the minimal contract required by the reaper. It keeps the
// reaper decoupled from the concrete store implementation.
type Store interface {
	RemoveExpired() int
}

// Reaper periodically evicts expired entries from the store.
type Reaper struct {
	store    Store
	interval time.Duration
	logger   *slog.Logger
}

// New creates a reaper sweeping at the given interval.
func New(store Store, interval time.Duration, logger *slog.Logger) *Reaper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reaper{
		store:    store,
		interval: interval,
		logger:   logger,
	}
}

// Run executes the sweep loop until the context is cancelled. It blocks
// and is normally started in its own goroutine.
func (r *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if removed := r.store.RemoveExpired(); removed > 0 {
				r.logger.Info("evicted expired entries", "count", removed)
			}
		case <-ctx.Done():
			r.logger.Debug("reaper stopped")
			return
		}
	}
}
