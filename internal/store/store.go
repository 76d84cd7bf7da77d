// Package store provides the TTL-aware key-value engine for stashkv.
//
// The store owns the entry mapping exclusively. Every mutation commits
// the full mapping to the persister before returning, and every
// operation serializes behind a single global lock: the persistence
// model is a whole-snapshot rewrite per write, so finer-grained locking
// would buy nothing.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/stashkv/stashkv/internal/core/domain"
	"github.com/stashkv/stashkv/internal/store/persist"
	"github.com/stashkv/stashkv/internal/telemetry/metric"
)

// Persister is the durable snapshot backend consumed by the store.
type Persister interface {
	Load() (*persist.Snapshot, error)
	Save(*persist.Snapshot) error
}

// Store is the in-memory key-value engine.
type Store struct {
	mu      sync.Mutex
	entries map[string]*domain.Entry

	persister Persister
	logger    *slog.Logger
	metrics   *metric.Registry
}

// Option configures the Store.
type Option func(*Store)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// WithMetrics sets the metrics registry.
func WithMetrics(m *metric.Registry) Option {
	return func(s *Store) {
		s.metrics = m
	}
}

// New creates a store backed by the given persister. Call Rehydrate
// before serving traffic to load the durable snapshot.
func New(persister Persister, opts ...Option) *Store {
	s := &Store{
		entries:   make(map[string]*domain.Entry),
		persister: persister,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Rehydrate loads the durable snapshot into memory, replacing any
// existing entries. A corrupt snapshot is surfaced to the caller rather
// than treated as empty.
func (s *Store) Rehydrate(_ context.Context) error {
	snap, err := s.persister.Load()
	if err != nil {
		return fmt.Errorf("store: rehydrate: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = make(map[string]*domain.Entry, len(snap.Entries))
	for key, entry := range snap.Entries {
		s.entries[key] = entry.Clone()
	}
	s.updateKeyGaugeLocked()

	s.logger.Info("store rehydrated", "keys", len(s.entries))
	return nil
}

// Put creates or overwrites the entry for key and durably commits the
// full mapping before returning. The in-memory mapping is updated even
// when the commit fails; the failure is returned so the caller can relay
// an error to the client.
func (s *Store) Put(_ context.Context, key, value string, ttl time.Duration) error {
	entry, err := domain.NewEntry(key, value, ttl)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[key] = entry
	s.updateKeyGaugeLocked()

	if err := s.commitLocked(); err != nil {
		s.logger.Error("durable commit failed", "key", key, "error", err)
		return err
	}
	return nil
}

// Get returns the value for key if an entry exists and is unexpired.
// Expired entries are left in place (passive expiration).
func (s *Store) Get(_ context.Context, key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if !ok || entry.Expired(time.Now()) {
		return "", false
	}
	return entry.Value, true
}

// RemoveExpired evicts all expired entries and commits the shrunk
// mapping. It returns the number of entries removed. Used by the
// background reaper; lazy check-on-read stays in effect regardless.
func (s *Store) RemoveExpired() int {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, entry := range s.entries {
		if entry.Expired(now) {
			delete(s.entries, key)
			removed++
		}
	}
	if removed == 0 {
		return 0
	}

	s.updateKeyGaugeLocked()
	if s.metrics != nil {
		s.metrics.EntriesReaped.Add(float64(removed))
	}
	if err := s.commitLocked(); err != nil {
		s.logger.Warn("commit after reap failed", "error", err)
	}
	return removed
}

// Count returns the number of entries physically present, expired ones
// included.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// commitLocked serializes the complete mapping and saves it. The caller
// must hold s.mu.
func (s *Store) commitLocked() error {
	snap := persist.NewSnapshot()
	for key, entry := range s.entries {
		snap.Entries[key] = entry.Clone()
	}

	start := time.Now()
	if err := s.persister.Save(snap); err != nil {
		return fmt.Errorf("store: durable commit: %w", err)
	}
	if s.metrics != nil {
		s.metrics.SnapshotDuration.Observe(time.Since(start).Seconds())
	}
	return nil
}

func (s *Store) updateKeyGaugeLocked() {
	if s.metrics != nil {
		s.metrics.StoreKeys.Set(float64(len(s.entries)))
	}
}
