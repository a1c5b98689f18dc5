package stac

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/couchcryptid/burn-area-service/internal/domain"
	"github.com/couchcryptid/burn-area-service/internal/observability"
)

// CachedCatalog wraps a ProductCatalog with an in-memory LRU cache of search
// results.
type CachedCatalog struct {
	inner   domain.ProductCatalog
	cache   *lruCache
	metrics *observability.Metrics
}

// NewCachedCatalog creates a cache decorator around a catalog.
func NewCachedCatalog(inner domain.ProductCatalog, maxEntries int, metrics *observability.Metrics) *CachedCatalog {
	return &CachedCatalog{
		inner:   inner,
		cache:   newLRUCache(maxEntries),
		metrics: metrics,
	}
}

func (c *CachedCatalog) Search(ctx context.Context, bbox domain.BoundingBox, window domain.DateRange, maxCloudCover float64) ([]domain.Product, error) {
	key := fmt.Sprintf("%.6f,%.6f,%.6f,%.6f|%s|%.2f",
		bbox.MinLon, bbox.MinLat, bbox.MaxLon, bbox.MaxLat, formatInterval(window), maxCloudCover)
	if products, ok := c.cache.get(key); ok {
		c.metrics.CatalogCache.WithLabelValues("hit").Inc()
		return slices.Clone(products), nil
	}
	c.metrics.CatalogCache.WithLabelValues("miss").Inc()

	products, err := c.inner.Search(ctx, bbox, window, maxCloudCover)
	if err != nil {
		return nil, err
	}
	// Empty results are not cached so a later search can see new acquisitions.
	if len(products) > 0 {
		c.cache.put(key, slices.Clone(products))
	}
	return products, nil
}

// lruCache is a simple thread-safe LRU cache of search results.
type lruCache struct {
	maxEntries int
	mu         sync.Mutex
	entries    map[string]*entry
	head       *entry // most recently used
	tail       *entry // least recently used
}

type entry struct {
	key   string
	value []domain.Product
	prev  *entry
	next  *entry
}

func newLRUCache(maxEntries int) *lruCache {
	return &lruCache{
		maxEntries: maxEntries,
		entries:    make(map[string]*entry),
	}
}

func (c *lruCache) get(key string) ([]domain.Product, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	c.moveToFront(e)
	return e.value, true
}

func (c *lruCache) put(key string, value []domain.Product) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.value = value
		c.moveToFront(e)
		return
	}

	e := &entry{key: key, value: value}
	c.entries[key] = e
	c.addToFront(e)

	if len(c.entries) > c.maxEntries {
		c.evictTail()
	}
}

func (c *lruCache) moveToFront(e *entry) {
	if e == c.head {
		return
	}
	c.remove(e)
	c.addToFront(e)
}

func (c *lruCache) addToFront(e *entry) {
	e.next = c.head
	e.prev = nil
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *lruCache) remove(e *entry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
}

func (c *lruCache) evictTail() {
	if c.tail == nil {
		return
	}
	delete(c.entries, c.tail.key)
	c.remove(c.tail)
}
