package client

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"

	"github.com/kass/echo-trails/pkg/models"
)

const dropsKey = "drops"

// CachedSource wraps a DropSource with a TTL cache. Concurrent callers
// that miss the cache share a single upstream fetch.
//
// Returned slices are shared between callers and must not be modified.
type CachedSource struct {
	source DropSource
	ttl    time.Duration
	cache  *cache.Cache
	group  singleflight.Group
}

// NewCachedSource caches src results for ttl. A non-positive ttl disables
// caching but still collapses concurrent fetches.
func NewCachedSource(src DropSource, ttl time.Duration) *CachedSource {
	cleanup := 2 * ttl
	if ttl <= 0 {
		cleanup = 0
	}
	return &CachedSource{
		source: src,
		ttl:    ttl,
		cache:  cache.New(ttl, cleanup),
	}
}

// FetchDrops returns the cached collection or fetches a fresh one
func (c *CachedSource) FetchDrops(ctx context.Context) ([]models.RawDrop, error) {
	if c.ttl > 0 {
		if cached, found := c.cache.Get(dropsKey); found {
			return cached.([]models.RawDrop), nil
		}
	}

	v, err, _ := c.group.Do(dropsKey, func() (interface{}, error) {
		drops, err := c.source.FetchDrops(ctx)
		if err != nil {
			return nil, err
		}
		if c.ttl > 0 {
			c.cache.Set(dropsKey, drops, cache.DefaultExpiration)
		}
		return drops, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]models.RawDrop), nil
}

// Invalidate drops the cached collection so the next call refetches
func (c *CachedSource) Invalidate() {
	c.cache.Delete(dropsKey)
}
