package expander

import (
	"sync/atomic"

	"github.com/Adithya-Monish-Kumar-K/sequence-expander/internal/index"
	"github.com/Adithya-Monish-Kumar-K/sequence-expander/pkg/metrics"
)

// DefaultCacheThreshold is the result size a bigram must exceed on either
// side before it is memoized.
const DefaultCacheThreshold = 5

type cacheKey struct {
	prefix    Unit
	extension Unit
	side      index.Side
}

// CacheStats reports cache effectiveness.
type CacheStats struct {
	Hits    int64
	Misses  int64
	Stores  int64
	Entries int
}

// Cache memoizes the positions of first-step bigrams (prefix, extension) on
// each corpus side. Entries are never evicted: the indices they derive from
// do not change during a run. A Cache belongs to one Expander and is not
// safe for concurrent writers.
type Cache struct {
	entries   map[cacheKey]index.PositionSet
	threshold int
	enabled   bool
	metrics   *metrics.Metrics
	hits      atomic.Int64
	misses    atomic.Int64
	stores    atomic.Int64
}

// NewCache creates a cache. A disabled cache never stores and always misses.
func NewCache(threshold int, enabled bool, m *metrics.Metrics) *Cache {
	return &Cache{
		entries:   make(map[cacheKey]index.PositionSet),
		threshold: threshold,
		enabled:   enabled,
		metrics:   m,
	}
}

// Lookup returns the memoized positions of (prefix, extension) on side.
func (c *Cache) Lookup(prefix, extension Unit, side index.Side) (index.PositionSet, bool) {
	set, ok := c.entries[cacheKey{prefix: prefix, extension: extension, side: side}]
	return set, ok
}

// Store memoizes set for (prefix, extension) on side unconditionally.
func (c *Cache) Store(prefix, extension Unit, side index.Side, set index.PositionSet) {
	c.entries[cacheKey{prefix: prefix, extension: extension, side: side}] = set
}

// lookupPair is a hit only when both sides are cached.
func (c *Cache) lookupPair(prefix, extension Unit) (okSet, errSet index.PositionSet, hit bool) {
	if !c.enabled {
		return nil, nil, false
	}
	okSet, okHit := c.Lookup(prefix, extension, index.SideOK)
	errSet, errHit := c.Lookup(prefix, extension, index.SideErr)
	if okHit && errHit {
		c.hits.Add(1)
		if c.metrics != nil {
			c.metrics.CacheHitsTotal.Inc()
		}
		return okSet, errSet, true
	}
	c.misses.Add(1)
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.Inc()
	}
	return nil, nil, false
}

// storePair memoizes both sides when either exceeds the threshold.
func (c *Cache) storePair(prefix, extension Unit, okSet, errSet index.PositionSet) bool {
	if !c.enabled || (len(okSet) <= c.threshold && len(errSet) <= c.threshold) {
		return false
	}
	c.Store(prefix, extension, index.SideOK, okSet)
	c.Store(prefix, extension, index.SideErr, errSet)
	c.stores.Add(1)
	if c.metrics != nil {
		c.metrics.CacheStoresTotal.Inc()
	}
	return true
}

// Len returns the number of stored (key, side) entries.
func (c *Cache) Len() int {
	return len(c.entries)
}

func (c *Cache) Stats() CacheStats {
	return CacheStats{
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
		Stores:  c.stores.Load(),
		Entries: len(c.entries),
	}
}
