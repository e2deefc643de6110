// Package cache memoizes raw tables fetched from remote sources.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/hydro-lag-etl/internal/domain"
	"github.com/couchcryptid/hydro-lag-etl/internal/observability"
)

// Source produces a raw table.
type Source interface {
	Extract(ctx context.Context) (domain.RawTable, error)
}

// Cache is a thread-safe LRU of raw tables with optional expiry.
type Cache struct {
	lru     *lruCache
	ttl     time.Duration
	clock   clockwork.Clock
	metrics *observability.Metrics
}

// New creates a cache holding up to maxEntries tables. Entries that are not
// permanent expire ttl after being stored; a zero ttl disables expiry.
func New(maxEntries int, ttl time.Duration, clock clockwork.Clock, metrics *observability.Metrics) *Cache {
	return &Cache{
		lru:     newLRUCache(maxEntries),
		ttl:     ttl,
		clock:   clock,
		metrics: metrics,
	}
}

// Wrap returns a Source that consults the cache under key before calling src.
// Permanent entries never expire; use it for closed historical ranges.
func (c *Cache) Wrap(key string, src Source, permanent bool) *CachedSource {
	return &CachedSource{cache: c, key: key, inner: src, permanent: permanent}
}

// CachedSource is a cache decorator around a Source.
type CachedSource struct {
	cache     *Cache
	key       string
	inner     Source
	permanent bool
}

// Extract returns the cached table when fresh, otherwise fetches it. Only
// tables with data rows are stored so that transient empty answers are retried.
func (s *CachedSource) Extract(ctx context.Context) (domain.RawTable, error) {
	c := s.cache
	now := c.clock.Now()
	if table, ok := c.lru.get(s.key, now); ok {
		c.metrics.SourceCache.WithLabelValues("hit").Inc()
		return table, nil
	}
	c.metrics.SourceCache.WithLabelValues("miss").Inc()

	table, err := s.inner.Extract(ctx)
	if err != nil {
		return table, err
	}
	if len(table.Lines) > 1 {
		var expires time.Time
		if !s.permanent && c.ttl > 0 {
			expires = now.Add(c.ttl)
		}
		c.lru.put(s.key, table, expires)
	}
	return table, nil
}

func (s *CachedSource) String() string { return s.key }

// lruCache is a simple thread-safe LRU cache for raw tables.
type lruCache struct {
	maxEntries int
	mu         sync.Mutex
	entries    map[string]*entry
	head       *entry // most recently used
	tail       *entry // least recently used
}

type entry struct {
	key     string
	value   domain.RawTable
	expires time.Time // zero means never
	prev    *entry
	next    *entry
}

func newLRUCache(maxEntries int) *lruCache {
	return &lruCache{
		maxEntries: maxEntries,
		entries:    make(map[string]*entry),
	}
}

func (c *lruCache) get(key string, now time.Time) (domain.RawTable, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return domain.RawTable{}, false
	}
	if !e.expires.IsZero() && !now.Before(e.expires) {
		delete(c.entries, key)
		c.remove(e)
		return domain.RawTable{}, false
	}
	c.moveToFront(e)
	return e.value, true
}

func (c *lruCache) put(key string, value domain.RawTable, expires time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.value, e.expires = value, expires
		c.moveToFront(e)
		return
	}

	e := &entry{key: key, value: value, expires: expires}
	c.entries[key] = e
	c.addToFront(e)

	if len(c.entries) > c.maxEntries {
		c.evictTail()
	}
}

func (c *lruCache) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
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
