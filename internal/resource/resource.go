package resource

import (
	"errors"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var (
	// ErrReleased is returned when a handle is used after release.
	ErrReleased = errors.New("resource handle already released")
)

// Handle is a revocable reference to a decoded page image. The bytes
// live in a scratch file owned by the Store; once Release is called the
// locator stops resolving and must not be handed out again.
type Handle struct {
	id   string
	path string
	size int64

	mu       sync.Mutex
	released bool
}

// Locator returns the path a frontend can resolve to the image bytes.
func (h *Handle) Locator() string {
	return h.path
}

// Size returns the stored byte size of the image.
func (h *Handle) Size() int64 {
	return h.size
}

// Released reports whether the handle has been revoked.
func (h *Handle) Released() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.released
}

// Open returns the image bytes behind the handle.
func (h *Handle) Open() ([]byte, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.released {
		return nil, ErrReleased
	}

	return os.ReadFile(h.path)
}

// Store owns the scratch directory for decoded page images. Every
// Acquire produces a distinct handle backed by its own file, and every
// Release deletes that file. Mirrors an object-URL lifecycle: create on
// decode, revoke deterministically on eviction or close.
type Store struct {
	dir string
}

// NewStore creates the scratch directory if needed. Files left over
// from a previous run are stale by definition and are removed.
func NewStore(dir string) (*Store, error) {
	if err := os.RemoveAll(dir); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return nil, err
	}

	return &Store{dir: dir}, nil
}

// Acquire writes the image bytes to a fresh scratch file and returns
// its handle. Two calls with identical bytes yield two independent
// handles with distinct locators.
func (s *Store) Acquire(data []byte, ext string) (*Handle, error) {
	name := uuid.New().String() + ext
	path := filepath.Join(s.dir, name)

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return nil, err
	}

	return &Handle{
		id:   name,
		path: path,
		size: int64(len(data)),
	}, nil
}

// Release revokes the handle and deletes its backing file. Releasing an
// already released handle is a no-op.
func (s *Store) Release(h *Handle) {
	if h == nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.released {
		return
	}
	h.released = true

	if err := os.Remove(h.path); err != nil && !os.IsNotExist(err) {
		logrus.Errorf("error removing page image %s: %v", h.id, err)
	}
}

// Close removes the scratch directory and everything in it.
func (s *Store) Close() error {
	return os.RemoveAll(s.dir)
}
