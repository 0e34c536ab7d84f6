// Package counter persists the death count.
package counter

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	apperrors "github.com/0xBAD5EED5/deathcounter/internal/errors"
	"github.com/0xBAD5EED5/deathcounter/internal/syncx"
)

// Store loads and saves the count.
type Store interface {
	Load() int
	Save(n int) error
}

type fileFormat struct {
	Counter int `json:"counter"`
}

// FileStore keeps the count in a small JSON file: {"counter": n}.
type FileStore struct {
	path string
}

// NewFileStore returns a store backed by path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the backing file.
func (s *FileStore) Path() string { return s.path }

// Load returns the stored count. Absent, unreadable or corrupt files count
// as 0; Load never fails.
func (s *FileStore) Load() int {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return 0
	}
	if err != nil {
		slog.Warn("counter file unreadable, starting at 0", "path", s.path, "error",
			apperrors.Wrap(err, apperrors.CodeStoreReadFailed, "read counter"))
		return 0
	}

	var f fileFormat
	if err := json.Unmarshal(data, &f); err != nil {
		slog.Warn("counter file corrupt, starting at 0", "path", s.path, "error",
			apperrors.Wrap(err, apperrors.CodeStoreReadFailed, "parse counter"))
		return 0
	}
	return max(f.Counter, 0)
}

// Save overwrites the file with n. The write goes to a temp file in the same
// directory and is renamed into place.
func (s *FileStore) Save(n int) error {
	data, err := json.Marshal(fileFormat{Counter: n})
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeStoreWriteFailed, "encode counter")
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".counter-*.tmp")
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeStoreWriteFailed, "create temp file").WithMetadata("path", s.path)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return apperrors.Wrap(err, apperrors.CodeStoreWriteFailed, "write counter").WithMetadata("path", s.path)
	}
	if err := tmp.Close(); err != nil {
		return apperrors.Wrap(err, apperrors.CodeStoreWriteFailed, "close counter").WithMetadata("path", s.path)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return apperrors.Wrap(err, apperrors.CodeStoreWriteFailed, "replace counter").WithMetadata("path", s.path)
	}
	return nil
}

// Reset writes 0 and returns it.
func (s *FileStore) Reset() (int, error) {
	return 0, s.Save(0)
}

// Counter is the in-memory count, written through to a Store on every change.
// The in-memory value stays authoritative when a save fails.
type Counter struct {
	value  *syncx.Guard[int]
	saveMu sync.Mutex // serializes store writes
	store  Store
}

// New loads the current count from store.
func New(store Store) *Counter {
	return &Counter{value: syncx.NewGuard(store.Load()), store: store}
}

// Value returns the current count.
func (c *Counter) Value() int { return c.value.Load() }

// Increment adds one and persists. The new value is returned even if the
// save failed.
func (c *Counter) Increment() (int, error) {
	return c.set(func(n int) int { return n + 1 })
}

// Reset sets the count to 0 and persists.
func (c *Counter) Reset() (int, error) {
	return c.set(func(int) int { return 0 })
}

// set updates the value, then persists outside the value lock so readers
// never wait on disk. Each save writes the latest value, so the last write
// to land is never older than the last update.
func (c *Counter) set(fn func(int) int) (int, error) {
	n := c.value.Update(fn)

	c.saveMu.Lock()
	saveErr := c.store.Save(c.value.Load())
	c.saveMu.Unlock()

	if saveErr != nil {
		slog.Error("failed to save counter", "count", n, "error", saveErr)
	}
	return n, saveErr
}
