// Package persist provides durable snapshot persistence for stashkv.
//
// The entire key space is serialized as one JSON document and replaced
// wholesale on every save. Saves go through a temporary file followed by
// an atomic rename, so a crash mid-write never leaves a torn snapshot
// behind.
package persist

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/stashkv/stashkv/internal/core/domain"
)

var (
	// ErrCorrupt indicates the snapshot file exists but cannot be
	// decoded. It is never silently treated as an empty store.
	ErrCorrupt = errors.New("persist: corrupt snapshot")
)

// Snapshot is the full state of the store at one point in time.
type Snapshot struct {
	Entries map[string]*domain.Entry
}

// NewSnapshot returns an empty snapshot.
func NewSnapshot() *Snapshot {
	return &Snapshot{Entries: make(map[string]*domain.Entry)}
}

// snapshotFile is the on-disk document: {"data": {key: entry}}.
type snapshotFile struct {
	Data map[string]snapshotEntry `json:"data"`
}

// snapshotEntry is the serialized form of one entry. CreatedAt is an
// absolute Unix-millisecond timestamp; ExpiresFor is the optional TTL
// in milliseconds.
type snapshotEntry struct {
	Key        string `json:"key"`
	Value      string `json:"value"`
	CreatedAt  int64  `json:"created_at"`
	ExpiresFor *int64 `json:"expires_for,omitempty"`
}

func encodeEntry(e *domain.Entry) snapshotEntry {
	enc := snapshotEntry{
		Key:       e.Key,
		Value:     e.Value,
		CreatedAt: e.CreatedAt,
	}
	if e.ExpiresFor > 0 {
		millis := e.ExpiresFor.Milliseconds()
		enc.ExpiresFor = &millis
	}
	return enc
}

func (s snapshotEntry) decode() *domain.Entry {
	entry := &domain.Entry{
		Key:       s.Key,
		Value:     s.Value,
		CreatedAt: s.CreatedAt,
	}
	if s.ExpiresFor != nil {
		entry.ExpiresFor = time.Duration(*s.ExpiresFor) * time.Millisecond
	}
	return entry
}

// FileStore persists snapshots to a single file on local disk.
type FileStore struct {
	path string
}

// NewFileStore creates a FileStore writing to the given path. The parent
// directory is created if it does not exist.
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, fmt.Errorf("persist: snapshot path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, fmt.Errorf("persist: create dir: %w", err)
	}
	return &FileStore{path: path}, nil
}

// Path returns the snapshot file path.
func (f *FileStore) Path() string {
	return f.path
}

// Load reads and decodes the snapshot. A missing file yields an empty
// snapshot; an undecodable file yields ErrCorrupt.
func (f *FileStore) Load() (*Snapshot, error) {
	raw, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewSnapshot(), nil
		}
		return nil, fmt.Errorf("persist: read snapshot: %w", err)
	}

	var doc snapshotFile
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}

	snap := NewSnapshot()
	for key, enc := range doc.Data {
		entry := enc.decode()
		if entry.Key == "" {
			// The key field inside the entry is authoritative; a blank
			// one means the document was not written by us.
			return nil, fmt.Errorf("%w: entry %q has empty key field", ErrCorrupt, key)
		}
		snap.Entries[key] = entry
	}
	return snap, nil
}

// Save durably replaces the prior snapshot with the given one. The write
// lands in a temporary file in the same directory, is synced, and is then
// renamed over the target.
func (f *FileStore) Save(snap *Snapshot) error {
	doc := snapshotFile{Data: make(map[string]snapshotEntry, len(snap.Entries))}
	for key, entry := range snap.Entries {
		doc.Data[key] = encodeEntry(entry)
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("persist: marshal snapshot: %w", err)
	}

	dir := filepath.Dir(f.path)
	tmp, err := os.CreateTemp(dir, ".snapshot-*.tmp")
	if err != nil {
		return fmt.Errorf("persist: create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("persist: write snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("persist: sync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("persist: close: %w", err)
	}

	if err := os.Rename(tmpPath, f.path); err != nil {
		return fmt.Errorf("persist: rename: %w", err)
	}
	return nil
}
