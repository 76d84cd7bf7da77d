// Package domain defines the core domain models for stashkv.
//
// Domain models are pure value objects without any IO dependencies
// or framework coupling.
package domain

import (
	"errors"
	"time"
)

// ErrEmptyKey indicates an entry was created with an empty key.
var ErrEmptyKey = errors.New("entry: empty key")

// Entry represents a single stored value with its metadata.
//
// CreatedAt is assigned at write time from the wall clock. ExpiresFor,
// when non-zero, is relative to CreatedAt; an entry past its expiry is
// invisible to reads but stays in the map until overwritten or reaped.
type Entry struct {
	// Key is the unique, non-empty identifier for the entry.
	Key string `json:"key"`

	// Value is the stored payload.
	Value string `json:"value"`

	// CreatedAt is the write timestamp (Unix milliseconds).
	CreatedAt int64 `json:"created_at"`

	// ExpiresFor is the optional time-to-live, relative to CreatedAt.
	// Zero means the entry never expires.
	ExpiresFor time.Duration `json:"expires_for,omitempty"`
}

// NewEntry creates an Entry stamped with the current wall-clock time.
func NewEntry(key, value string, ttl time.Duration) (*Entry, error) {
	if key == "" {
		return nil, ErrEmptyKey
	}
	return &Entry{
		Key:        key,
		Value:      value,
		CreatedAt:  time.Now().UnixMilli(),
		ExpiresFor: ttl,
	}, nil
}

// Expired reports whether the entry is past its expiry at the given time.
// Entries without a TTL never expire.
func (e *Entry) Expired(now time.Time) bool {
	if e.ExpiresFor <= 0 {
		return false
	}
	return now.Sub(time.UnixMilli(e.CreatedAt)) >= e.ExpiresFor
}

// Clone returns a deep copy of the entry.
func (e *Entry) Clone() *Entry {
	clone := *e
	return &clone
}
