// Package geocache provides caching decorators for any domain.Geocoder.
package geocache

import (
	"container/list"
	"context"
	"strings"
	"sync"

	"github.com/couchcryptid/cad-navigation-service/internal/domain"
	"github.com/couchcryptid/cad-navigation-service/internal/observability"
)

// LRU wraps a Geocoder with an in-process least-recently-used cache.
type LRU struct {
	inner   domain.Geocoder
	cache   *lruCache
	metrics *observability.Metrics
}

// NewLRU creates an LRU cache decorator around a geocoder.
func NewLRU(inner domain.Geocoder, maxEntries int, metrics *observability.Metrics) *LRU {
	return &LRU{
		inner:   inner,
		cache:   newLRUCache(maxEntries),
		metrics: metrics,
	}
}

// Resolve serves repeated queries from memory.
func (c *LRU) Resolve(ctx context.Context, text string) ([]domain.Location, error) {
	key := cacheKey(text)
	if locs, ok := c.cache.get(key); ok {
		c.metrics.GeocodeCache.WithLabelValues("lru", "hit").Inc()
		return cloneLocations(locs), nil
	}
	c.metrics.GeocodeCache.WithLabelValues("lru", "miss").Inc()

	locs, err := c.inner.Resolve(ctx, text)
	if err != nil {
		return nil, err
	}
	// Only cache non-empty results so transient "not found" responses can be retried.
	if len(locs) > 0 {
		c.cache.put(key, cloneLocations(locs))
	}
	return locs, nil
}

// Len returns the number of cached queries.
func (c *LRU) Len() int { return c.cache.len() }

func cacheKey(text string) string {
	return "geo:" + strings.Join(strings.Fields(strings.ToLower(text)), " ")
}

func cloneLocations(locs []domain.Location) []domain.Location {
	return append([]domain.Location(nil), locs...)
}

// lruCache is a thread-safe LRU map from query key to locations.
type lruCache struct {
	maxEntries int
	mu         sync.Mutex
	order      *list.List // front is most recently used
	entries    map[string]*list.Element
}

type lruEntry struct {
	key   string
	value []domain.Location
}

func newLRUCache(maxEntries int) *lruCache {
	if maxEntries <= 0 {
		maxEntries = 1
	}
	return &lruCache{
		maxEntries: maxEntries,
		order:      list.New(),
		entries:    make(map[string]*list.Element),
	}
}

func (c *lruCache) get(key string) ([]domain.Location, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*lruEntry).value, true
}

func (c *lruCache) put(key string, value []domain.Location) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		el.Value.(*lruEntry).value = value
		c.order.MoveToFront(el)
		return
	}
	c.entries[key] = c.order.PushFront(&lruEntry{key: key, value: value})

	for c.order.Len() > c.maxEntries {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*lruEntry).key)
	}
}

func (c *lruCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
