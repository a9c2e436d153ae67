package cache

import (
	"context"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/zeebo/blake3"
	"golang.org/x/sys/unix"

	"github.com/quire-reader/quire/internal/compress"
	"github.com/quire-reader/quire/internal/model"
	"github.com/quire-reader/quire/internal/store"
)

const payloadExt = ".src"

// legacyPagePrefix marked per-page payloads in the old cache layout.
// Files with this prefix are purged, never read.
const legacyPagePrefix = "page:"

// DiskCacheConfig configures a DiskCache.
type DiskCacheConfig struct {
	// Dir holds one payload file per cached source.
	Dir string
	// Limit is the ceiling on total stored bytes.
	Limit int64
	// Codec names the compression codec for new payloads. Existing
	// payloads are read with whatever codec their entry records.
	Codec string
}

// DiskCache stores whole source documents as compressed files under a
// directory, with metadata records in the store. The metadata is the
// unit of consistency: every mutating operation reads and writes it
// under one lock, so the ceiling invariant holds after each operation.
type DiskCache struct {
	config DiskCacheConfig
	meta   store.CacheMetaStore
	codec  compress.Compress

	// mu serializes the read-modify-write of the metadata records.
	mu sync.Mutex
}

var _ ByteCache = (*DiskCache)(nil)

// NewDiskCache creates the payload directory if needed and purges any
// files left over from the legacy per-page layout.
func NewDiskCache(config DiskCacheConfig, meta store.CacheMetaStore) (*DiskCache, error) {
	if config.Dir == "" {
		return nil, errors.New("cache dir is required")
	}
	if config.Limit <= 0 {
		return nil, errors.New("cache limit must be positive")
	}

	codec, err := compress.ForCodec(config.Codec)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(config.Dir, os.ModePerm); err != nil {
		return nil, err
	}

	c := &DiskCache{
		config: config,
		meta:   meta,
		codec:  codec,
	}
	c.purgeLegacy()

	return c, nil
}

func (c *DiskCache) Has(ctx context.Context, fileID string) bool {
	_, err := c.meta.GetCacheEntry(ctx, fileID)
	return err == nil
}

func (c *DiskCache) Read(ctx context.Context, fileID string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, err := c.meta.GetCacheEntry(ctx, fileID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	data, err := os.ReadFile(c.payloadPath(fileID))
	if err != nil {
		// metadata without payload is a broken entry, drop it
		if removeErr := c.meta.DeleteCacheEntry(ctx, fileID); removeErr != nil {
			logrus.Errorf("error dropping broken cache entry %s: %v", fileID, removeErr)
		}
		return nil, ErrNotFound
	}

	codec, err := compress.ForCodec(entry.Codec)
	if err != nil {
		return nil, err
	}
	raw, err := codec.Decode(data)
	if err != nil {
		return nil, err
	}

	if err := c.meta.TouchCacheEntry(ctx, fileID, time.Now()); err != nil {
		logrus.Errorf("error touching cache entry %s: %v", fileID, err)
	}

	return raw, nil
}

func (c *DiskCache) Write(ctx context.Context, fileID, name string, data []byte) (bool, error) {
	encoded, err := c.codec.Encode(data)
	if err != nil {
		return false, err
	}
	size := int64(len(encoded))

	if size > c.config.Limit {
		logrus.Warnf("refusing to cache %q: %d bytes exceeds the %d byte ceiling", name, size, c.config.Limit)
		return false, nil
	}
	if free, err := diskFree(c.config.Dir); err == nil && free < uint64(size) {
		logrus.Warnf("refusing to cache %q: %d bytes free on volume", name, free)
		return false, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Size of the record being overwritten, zero for a new entry. The
	// incoming id itself is never an eviction candidate.
	var oldSize int64
	if existing, err := c.meta.GetCacheEntry(ctx, fileID); err == nil {
		oldSize = existing.Size
	}

	usage, err := c.meta.CacheUsage(ctx)
	if err != nil {
		return false, err
	}

	if usage-oldSize+size > c.config.Limit {
		if err := c.evict(ctx, fileID, usage-oldSize+size-c.config.Limit); err != nil {
			return false, err
		}
	}

	if err := os.WriteFile(c.payloadPath(fileID), encoded, 0o644); err != nil {
		return false, err
	}

	entry := &model.CacheEntry{
		FileID:     fileID,
		Name:       name,
		Size:       size,
		RawSize:    int64(len(data)),
		Codec:      c.config.Codec,
		LastAccess: time.Now(),
	}
	if err := c.meta.SaveCacheEntry(ctx, entry); err != nil {
		// roll the payload back so usage stays consistent with metadata
		_ = os.Remove(c.payloadPath(fileID))
		return false, err
	}

	return true, nil
}

// evict deletes entries oldest access first until at least need bytes
// have been freed or the candidates run out.
func (c *DiskCache) evict(ctx context.Context, keepFileID string, need int64) error {
	entries, err := c.meta.ListCacheEntries(ctx)
	if err != nil {
		return err
	}

	var freed int64
	for _, entry := range entries {
		if freed >= need {
			break
		}
		if entry.FileID == keepFileID {
			continue
		}

		if err := c.meta.DeleteCacheEntry(ctx, entry.FileID); err != nil {
			return err
		}
		if err := os.Remove(c.payloadPath(entry.FileID)); err != nil && !os.IsNotExist(err) {
			logrus.Errorf("error removing evicted payload %s: %v", entry.FileID, err)
		}

		freed += entry.Size
		logrus.Infof("evicted cached source %q (%d bytes)", entry.Name, entry.Size)
	}

	return nil
}

func (c *DiskCache) Usage(ctx context.Context) (int64, error) {
	return c.meta.CacheUsage(ctx)
}

func (c *DiskCache) List(ctx context.Context) ([]EntryInfo, error) {
	entries, err := c.meta.ListCacheEntries(ctx)
	if err != nil {
		return nil, err
	}

	infos := make([]EntryInfo, 0, len(entries))
	for _, entry := range entries {
		infos = append(infos, EntryInfo{
			FileID:     entry.FileID,
			Name:       entry.Name,
			Size:       entry.Size,
			LastAccess: entry.LastAccess,
		})
	}

	return infos, nil
}

func (c *DiskCache) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.meta.DeleteAllCacheEntries(ctx); err != nil {
		return err
	}

	files, err := os.ReadDir(c.config.Dir)
	if err != nil {
		return err
	}
	for _, f := range files {
		if f.IsDir() {
			continue
		}
		if err := os.Remove(filepath.Join(c.config.Dir, f.Name())); err != nil {
			logrus.Errorf("error removing payload %s: %v", f.Name(), err)
		}
	}

	return nil
}

// Trim re-asserts the ceiling over existing entries. Covers a limit
// lowered between runs; a no-op when everything already fits.
func (c *DiskCache) Trim(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	usage, err := c.meta.CacheUsage(ctx)
	if err != nil {
		return err
	}
	if usage <= c.config.Limit {
		return nil
	}

	return c.evict(ctx, "", usage-c.config.Limit)
}

// purgeLegacy removes per-page payload files from the old cache
// layout. Best effort: the files were keyed page:{fileId}:{pageIndex}
// and are never read by this layout.
func (c *DiskCache) purgeLegacy() {
	files, err := os.ReadDir(c.config.Dir)
	if err != nil {
		return
	}

	for _, f := range files {
		if f.IsDir() || !strings.HasPrefix(f.Name(), legacyPagePrefix) {
			continue
		}
		if err := os.Remove(filepath.Join(c.config.Dir, f.Name())); err != nil {
			logrus.Warnf("error purging legacy page payload %s: %v", f.Name(), err)
		} else {
			logrus.Infof("purged legacy page payload %s", f.Name())
		}
	}
}

func (c *DiskCache) payloadPath(fileID string) string {
	sum := blake3.Sum256([]byte(fileID))
	return filepath.Join(c.config.Dir, hex.EncodeToString(sum[:])+payloadExt)
}

func diskFree(dir string) (uint64, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(dir, &stat); err != nil {
		return 0, err
	}

	return stat.Bavail * uint64(stat.Bsize), nil
}
