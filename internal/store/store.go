package store

import (
	"context"
	"time"

	"github.com/quire-reader/quire/internal/model"
)

type Store interface {
	CacheMetaStore
	BookmarkStore
	Transaction(ctx context.Context, f func(tx Store) error) error
	Migrate() error
}

type CacheMetaStore interface {
	// GetCacheEntry retrieves the metadata record for a cached source.
	GetCacheEntry(ctx context.Context, fileID string) (*model.CacheEntry, error)
	// ListCacheEntries retrieves all records, oldest access first.
	ListCacheEntries(ctx context.Context) ([]*model.CacheEntry, error)
	// SaveCacheEntry inserts or overwrites a record.
	SaveCacheEntry(ctx context.Context, entry *model.CacheEntry) error
	// TouchCacheEntry refreshes a record's last-access timestamp.
	TouchCacheEntry(ctx context.Context, fileID string, at time.Time) error
	// DeleteCacheEntry deletes a record by file identity.
	DeleteCacheEntry(ctx context.Context, fileID string) error
	// DeleteAllCacheEntries deletes every record.
	DeleteAllCacheEntries(ctx context.Context) error
	// CacheUsage sums the stored sizes of all records.
	CacheUsage(ctx context.Context) (int64, error)
}

type BookmarkStore interface {
	// GetBookmark retrieves the saved reading position for a key.
	GetBookmark(ctx context.Context, key string) (*model.Bookmark, error)
	// SaveBookmark inserts or overwrites a reading position.
	SaveBookmark(ctx context.Context, bookmark *model.Bookmark) error
	// DeleteAllBookmarks deletes every saved position.
	DeleteAllBookmarks(ctx context.Context) error
}
