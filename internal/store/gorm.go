package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/quire-reader/quire/internal/model"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("record not found")
)

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{
		db: db,
	}
}

var _ Store = (*GormStore)(nil)

type GormStore struct {
	db *gorm.DB
}

func (g *GormStore) GetCacheEntry(ctx context.Context, fileID string) (*model.CacheEntry, error) {
	entry, err := model.GetCacheEntry(g.db.WithContext(ctx), fileID)
	if err != nil {
		return nil, mapNotFound(err)
	}

	return entry, nil
}

func (g *GormStore) ListCacheEntries(ctx context.Context) ([]*model.CacheEntry, error) {
	return model.ListCacheEntries(g.db.WithContext(ctx))
}

func (g *GormStore) SaveCacheEntry(ctx context.Context, entry *model.CacheEntry) error {
	return model.SaveCacheEntry(g.db.WithContext(ctx), entry)
}

func (g *GormStore) TouchCacheEntry(ctx context.Context, fileID string, at time.Time) error {
	return model.TouchCacheEntry(g.db.WithContext(ctx), fileID, at)
}

func (g *GormStore) DeleteCacheEntry(ctx context.Context, fileID string) error {
	return model.DeleteCacheEntry(g.db.WithContext(ctx), fileID)
}

func (g *GormStore) DeleteAllCacheEntries(ctx context.Context) error {
	return model.DeleteAllCacheEntries(g.db.WithContext(ctx))
}

func (g *GormStore) CacheUsage(ctx context.Context) (int64, error) {
	return model.CacheUsage(g.db.WithContext(ctx))
}

func (g *GormStore) GetBookmark(ctx context.Context, key string) (*model.Bookmark, error) {
	bookmark, err := model.GetBookmark(g.db.WithContext(ctx), key)
	if err != nil {
		return nil, mapNotFound(err)
	}

	return bookmark, nil
}

func (g *GormStore) SaveBookmark(ctx context.Context, bookmark *model.Bookmark) error {
	return model.SaveBookmark(g.db.WithContext(ctx), bookmark)
}

func (g *GormStore) DeleteAllBookmarks(ctx context.Context) error {
	return model.DeleteAllBookmarks(g.db.WithContext(ctx))
}

func (g *GormStore) Transaction(ctx context.Context, f func(tx Store) error) error {
	return g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return f(NewGormStore(tx))
	})
}

func (g *GormStore) Migrate() error {
	return model.Migrate(g.db)
}

func mapNotFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
