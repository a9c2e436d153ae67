package jobs

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/quire-reader/quire/internal/cache"
)

// CacheTrimJob re-asserts the cache byte ceiling out of band. The
// write path already maintains it; the job covers a ceiling lowered
// between runs and payloads orphaned by crashes.
type CacheTrimJob struct {
	cache *cache.DiskCache
	cron  string
}

func NewCacheTrimJob(interval string, diskCache *cache.DiskCache) *CacheTrimJob {
	return &CacheTrimJob{
		cache: diskCache,
		cron:  interval,
	}
}

func (c *CacheTrimJob) Name() string {
	return "cache_trim"
}

func (c *CacheTrimJob) Schedule() string {
	return c.cron
}

func (c *CacheTrimJob) Run() {
	if err := c.cache.Trim(context.Background()); err != nil {
		logrus.Errorf("cache trim failed: %v", err)
	}
}
