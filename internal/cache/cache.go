package cache

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned by Read on a cache miss.
	ErrNotFound = errors.New("cache entry not found")
)

// EntryInfo is a cached-source summary for the recent-files list.
type EntryInfo struct {
	FileID     string    `json:"fileId"`
	Name       string    `json:"name"`
	Size       int64     `json:"size"`
	LastAccess time.Time `json:"lastAccess"`
}

// ByteCache stores whole source documents keyed by stable file
// identity, bounded by a byte ceiling with least-recently-used
// eviction.
//
// Every operation is fallible: the backing store may be unavailable or
// full. Callers must treat any failure as a miss; pages can always be
// decoded from the original source, the cache is an optimization and
// never a dependency.
type ByteCache interface {
	// Has reports whether an entry exists without touching it.
	Has(ctx context.Context, fileID string) bool
	// Read returns the source bytes and refreshes the entry's
	// last-access timestamp. ErrNotFound on a miss.
	Read(ctx context.Context, fileID string) ([]byte, error)
	// Write stores the source bytes. Returns false without modifying
	// the cache when the payload alone exceeds the ceiling. A new entry
	// evicts oldest-accessed entries first until it fits.
	Write(ctx context.Context, fileID, name string, data []byte) (bool, error)
	// Usage returns the total stored bytes.
	Usage(ctx context.Context) (int64, error)
	// List returns entry summaries, oldest access first.
	List(ctx context.Context) ([]EntryInfo, error)
	// Clear deletes every payload and metadata record.
	Clear(ctx context.Context) error
}
