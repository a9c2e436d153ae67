package cache

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/quire-reader/quire/internal/compress"
)

const (
	redisPayloadPrefix = "quire:source:"
	redisMetaHash      = "quire:source:meta"
)

func redisPayloadKey(fileID string) string {
	return redisPayloadPrefix + fileID
}

// redisEntry is the metadata record stored per field in the meta hash.
type redisEntry struct {
	FileID     string    `json:"fileId"`
	Name       string    `json:"name"`
	Size       int64     `json:"size"`
	Codec      string    `json:"codec"`
	LastAccess time.Time `json:"lastAccess"`
}

var _ ByteCache = (*RedisByteCache)(nil)

// RedisByteCache is the ByteCache for deployments where the engine
// runs server-side and the cache is shared across restarts. Same
// ceiling and eviction semantics as the disk cache, with the metadata
// hash as the unit of consistency.
type RedisByteCache struct {
	client *redis.Client
	codec  compress.Compress
	name   string
	limit  int64

	mu sync.Mutex
}

// NewRedisByteCache connects to the given redis address.
func NewRedisByteCache(addr, codecName string, limit int64) (*RedisByteCache, error) {
	codec, err := compress.ForCodec(codecName)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: "", // No password set
		DB:       0,  // Use default DB
		Protocol: 2,  // Connection protocol
	})

	return &RedisByteCache{
		client: client,
		codec:  codec,
		name:   codecName,
		limit:  limit,
	}, nil
}

func (r *RedisByteCache) Has(ctx context.Context, fileID string) bool {
	res := r.client.HExists(ctx, redisMetaHash, fileID)
	return res.Err() == nil && res.Val()
}

func (r *RedisByteCache) Read(ctx context.Context, fileID string) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, err := r.getEntry(ctx, fileID)
	if err != nil {
		return nil, err
	}

	data, err := r.client.Get(ctx, redisPayloadKey(fileID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			// metadata without payload is a broken entry, drop it
			_ = r.client.HDel(ctx, redisMetaHash, fileID).Err()
			return nil, ErrNotFound
		}
		return nil, err
	}

	codec, err := compress.ForCodec(entry.Codec)
	if err != nil {
		return nil, err
	}
	raw, err := codec.Decode(data)
	if err != nil {
		return nil, err
	}

	entry.LastAccess = time.Now()
	if err := r.setEntry(ctx, entry); err != nil {
		logrus.Errorf("error touching cache entry %s: %v", fileID, err)
	}

	return raw, nil
}

func (r *RedisByteCache) Write(ctx context.Context, fileID, name string, data []byte) (bool, error) {
	encoded, err := r.codec.Encode(data)
	if err != nil {
		return false, err
	}
	size := int64(len(encoded))

	if size > r.limit {
		logrus.Warnf("refusing to cache %q: %d bytes exceeds the %d byte ceiling", name, size, r.limit)
		return false, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	entries, err := r.listEntries(ctx)
	if err != nil {
		return false, err
	}

	var usage, oldSize int64
	for _, entry := range entries {
		usage += entry.Size
		if entry.FileID == fileID {
			oldSize = entry.Size
		}
	}

	if usage-oldSize+size > r.limit {
		need := usage - oldSize + size - r.limit
		var freed int64
		for _, entry := range entries {
			if freed >= need {
				break
			}
			if entry.FileID == fileID {
				continue
			}

			if err := r.client.HDel(ctx, redisMetaHash, entry.FileID).Err(); err != nil {
				return false, err
			}
			if err := r.client.Del(ctx, redisPayloadKey(entry.FileID)).Err(); err != nil {
				logrus.Errorf("error removing evicted payload %s: %v", entry.FileID, err)
			}

			freed += entry.Size
			logrus.Infof("evicted cached source %q (%d bytes)", entry.Name, entry.Size)
		}
	}

	if err := r.client.Set(ctx, redisPayloadKey(fileID), encoded, 0).Err(); err != nil {
		return false, err
	}

	err = r.setEntry(ctx, &redisEntry{
		FileID:     fileID,
		Name:       name,
		Size:       size,
		Codec:      r.name,
		LastAccess: time.Now(),
	})
	if err != nil {
		_ = r.client.Del(ctx, redisPayloadKey(fileID)).Err()
		return false, err
	}

	return true, nil
}

func (r *RedisByteCache) Usage(ctx context.Context) (int64, error) {
	entries, err := r.listEntries(ctx)
	if err != nil {
		return 0, err
	}

	var total int64
	for _, entry := range entries {
		total += entry.Size
	}

	return total, nil
}

func (r *RedisByteCache) List(ctx context.Context) ([]EntryInfo, error) {
	entries, err := r.listEntries(ctx)
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

func (r *RedisByteCache) Clear(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries, err := r.listEntries(ctx)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		if err := r.client.Del(ctx, redisPayloadKey(entry.FileID)).Err(); err != nil {
			logrus.Errorf("error removing payload %s: %v", entry.FileID, err)
		}
	}

	return r.client.Del(ctx, redisMetaHash).Err()
}

func (r *RedisByteCache) getEntry(ctx context.Context, fileID string) (*redisEntry, error) {
	res := r.client.HGet(ctx, redisMetaHash, fileID)
	if res.Err() != nil {
		if res.Err() == redis.Nil {
			return nil, ErrNotFound
		}
		return nil, res.Err()
	}

	entry := &redisEntry{}
	if err := json.Unmarshal([]byte(res.Val()), entry); err != nil {
		return nil, err
	}

	return entry, nil
}

func (r *RedisByteCache) setEntry(ctx context.Context, entry *redisEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	return r.client.HSet(ctx, redisMetaHash, entry.FileID, data).Err()
}

// listEntries returns all metadata records, oldest access first.
func (r *RedisByteCache) listEntries(ctx context.Context) ([]*redisEntry, error) {
	res := r.client.HGetAll(ctx, redisMetaHash)
	if res.Err() != nil {
		return nil, res.Err()
	}

	entries := make([]*redisEntry, 0, len(res.Val()))
	for fileID, raw := range res.Val() {
		entry := &redisEntry{}
		if err := json.Unmarshal([]byte(raw), entry); err != nil {
			logrus.Errorf("error decoding cache metadata for %s: %v", fileID, err)
			continue
		}
		entries = append(entries, entry)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].LastAccess.Before(entries[j].LastAccess)
	})

	return entries, nil
}
