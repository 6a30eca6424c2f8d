package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/swingdesk/swingrun/internal/indicators"
)

// DefaultCacheTTL keeps cached history fresh within one trading session.
const DefaultCacheTTL = 6 * time.Hour

// Cached wraps a Provider with a read-through bar cache. Keys include the
// requested depth so a shallow cached fetch never shortchanges a deeper one.
type Cached struct {
	source Provider
	cache  Cache
	ttl    time.Duration
	hits   atomic.Int64
	misses atomic.Int64
}

// NewCached decorates source with cache. A nil cache gets an in-memory one;
// a non-positive ttl gets DefaultCacheTTL.
func NewCached(source Provider, cache Cache, ttl time.Duration) *Cached {
	if cache == nil {
		cache = NewMemoryCache()
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Cached{source: source, cache: cache, ttl: ttl}
}

// Daily returns cached history when available, otherwise fetches from the
// underlying provider and stores the result.
func (c *Cached) Daily(ctx context.Context, symbol string, bars int) (indicators.PriceSeries, error) {
	key := cacheKey(symbol, bars)

	if raw, ok := c.cache.Get(ctx, key); ok {
		var series indicators.PriceSeries
		if err := json.Unmarshal(raw, &series); err == nil {
			c.hits.Add(1)
			return series, nil
		}
		// Corrupt entry, fall through to a fresh fetch.
	}

	c.misses.Add(1)
	series, err := c.source.Daily(ctx, symbol, bars)
	if err != nil {
		return indicators.PriceSeries{}, err
	}

	if raw, err := json.Marshal(series); err == nil {
		c.cache.Set(ctx, key, raw, c.ttl)
	}
	return series, nil
}

// Stats reports cache hits and misses since construction.
func (c *Cached) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func cacheKey(symbol string, bars int) string {
	return fmt.Sprintf("swingrun:daily:%s:%d", symbol, bars)
}
