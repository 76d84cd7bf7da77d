// Package shutdown provides graceful shutdown handling for stashkv.
//
// It waits for SIGINT/SIGTERM and runs registered cleanup hooks in
// reverse order of registration, bounded by a timeout.
package shutdown

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
)

// Handler coordinates graceful shutdown.
type Handler struct {
	timeout time.Duration
	hooks   []func(context.Context) error
	mu      sync.Mutex
	done    chan struct{}
}

// NewHandler creates a shutdown handler with the given hook timeout.
func NewHandler(timeout time.Duration) *Handler {
	return &Handler{
		timeout: timeout,
		done:    make(chan struct{}),
	}
}

// OnShutdown registers a cleanup hook. Hooks run in reverse order of
// registration.
func (h *Handler) OnShutdown(hook func(context.Context) error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.hooks = append(h.hooks, hook)
}

// Wait blocks until a termination signal arrives, then runs the hooks.
func (h *Handler) Wait() error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	h.mu.Lock()
	hooks := make([]func(context.Context) error, len(h.hooks))
	copy(hooks, h.hooks)
	h.mu.Unlock()

	var errs []error
	for i := len(hooks) - 1; i >= 0; i-- {
		if err := hooks[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}

	close(h.done)
	return errors.Join(errs...)
}

// Done returns a channel that closes when shutdown is complete.
func (h *Handler) Done() <-chan struct{} {
	return h.done
}
