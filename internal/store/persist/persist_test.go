package persist

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stashkv/stashkv/internal/core/domain"
)

func newTestStore(t *testing.T) *FileStore {
	t.Helper()
	fs, err := NewFileStore(filepath.Join(t.TempDir(), "storage.json"))
	require.NoError(t, err)
	return fs
}

func TestFileStore_RoundTrip(t *testing.T) {
	fs := newTestStore(t)

	snap := NewSnapshot()
	snap.Entries["pear"] = &domain.Entry{
		Key:       "pear",
		Value:     "orange",
		CreatedAt: time.Now().UnixMilli(),
	}
	snap.Entries["banana"] = &domain.Entry{
		Key:        "banana",
		Value:      "yellow",
		CreatedAt:  time.Now().UnixMilli(),
		ExpiresFor: 1500 * time.Millisecond,
	}

	require.NoError(t, fs.Save(snap))

	loaded, err := fs.Load()
	require.NoError(t, err)
	require.Len(t, loaded.Entries, 2)
	assert.Equal(t, snap.Entries["pear"], loaded.Entries["pear"])
	assert.Equal(t, snap.Entries["banana"], loaded.Entries["banana"])
}

func TestFileStore_LoadMissingFile(t *testing.T) {
	fs := newTestStore(t)

	snap, err := fs.Load()
	require.NoError(t, err)
	assert.Empty(t, snap.Entries)
}

func TestFileStore_LoadCorrupt(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{
			name: "not json",
			raw:  "definitely not json",
		},
		{
			name: "truncated document",
			raw:  `{"data":{"k":{"key":"k","val`,
		},
		{
			name: "entry with blank key field",
			raw:  `{"data":{"k":{"key":"","value":"v","created_at":1}}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := newTestStore(t)
			require.NoError(t, os.WriteFile(fs.Path(), []byte(tt.raw), 0600))

			_, err := fs.Load()
			require.ErrorIs(t, err, ErrCorrupt)
		})
	}
}

func TestFileStore_Format(t *testing.T) {
	fs := newTestStore(t)

	snap := NewSnapshot()
	snap.Entries["pear"] = &domain.Entry{Key: "pear", Value: "orange", CreatedAt: 1700000000000}
	require.NoError(t, fs.Save(snap))

	raw, err := os.ReadFile(fs.Path())
	require.NoError(t, err)

	var doc map[string]map[string]map[string]any
	require.NoError(t, json.Unmarshal(raw, &doc))

	entry, ok := doc["data"]["pear"]
	require.True(t, ok, "document must nest entries under data")
	assert.Equal(t, "pear", entry["key"])
	assert.Equal(t, "orange", entry["value"])
	assert.Equal(t, float64(1700000000000), entry["created_at"])

	// Entries without a TTL must not serialize the field at all.
	_, hasTTL := entry["expires_for"]
	assert.False(t, hasTTL)
}

func TestFileStore_TTLInMilliseconds(t *testing.T) {
	fs := newTestStore(t)

	snap := NewSnapshot()
	snap.Entries["k"] = &domain.Entry{
		Key:        "k",
		Value:      "v",
		CreatedAt:  1,
		ExpiresFor: 2 * time.Second,
	}
	require.NoError(t, fs.Save(snap))

	raw, err := os.ReadFile(fs.Path())
	require.NoError(t, err)

	var doc map[string]map[string]map[string]any
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.Equal(t, float64(2000), doc["data"]["k"]["expires_for"])
}

func TestFileStore_SaveReplacesPrior(t *testing.T) {
	fs := newTestStore(t)

	first := NewSnapshot()
	first.Entries["a"] = &domain.Entry{Key: "a", Value: "1", CreatedAt: 1}
	first.Entries["b"] = &domain.Entry{Key: "b", Value: "2", CreatedAt: 1}
	require.NoError(t, fs.Save(first))

	second := NewSnapshot()
	second.Entries["a"] = &domain.Entry{Key: "a", Value: "updated", CreatedAt: 2}
	require.NoError(t, fs.Save(second))

	loaded, err := fs.Load()
	require.NoError(t, err)
	require.Len(t, loaded.Entries, 1)
	assert.Equal(t, "updated", loaded.Entries["a"].Value)
}

func TestFileStore_NoTempFileLeftBehind(t *testing.T) {
	fs := newTestStore(t)

	snap := NewSnapshot()
	snap.Entries["k"] = &domain.Entry{Key: "k", Value: "v", CreatedAt: 1}
	require.NoError(t, fs.Save(snap))

	matches, err := filepath.Glob(filepath.Join(filepath.Dir(fs.Path()), ".snapshot-*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestNewFileStore_EmptyPath(t *testing.T) {
	_, err := NewFileStore("")
	require.Error(t, err)
}

func TestNewFileStore_CreatesParentDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "deeper", "storage.json")
	fs, err := NewFileStore(path)
	require.NoError(t, err)

	require.NoError(t, fs.Save(NewSnapshot()))
	_, err = os.Stat(path)
	require.NoError(t, err)
}
