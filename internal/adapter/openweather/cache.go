package openweather

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/couchcryptid/erowatch-service/internal/domain"
	"github.com/couchcryptid/erowatch-service/internal/observability"
	"github.com/jonboulle/clockwork"
)

// Cache defaults.
const (
	DefaultCacheTTL     = time.Hour
	DefaultFetchTimeout = 15 * time.Second
	DefaultMaxEntries   = 5000
)

// CachedForecaster wraps a ForecastProvider with a per-sensor TTL cache.
// Misses for the same sensor are not coalesced; the last successful fetch wins.
type CachedForecaster struct {
	inner   domain.ForecastProvider
	ttl     time.Duration
	timeout time.Duration
	clock   clockwork.Clock
	logger  *slog.Logger
	metrics *observability.Metrics
	cache   *lruCache
}

// NewCachedForecaster creates a cache decorator around a forecast provider.
// Non-positive ttl or timeout fall back to the defaults.
func NewCachedForecaster(inner domain.ForecastProvider, ttl, timeout time.Duration, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *CachedForecaster {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	return &CachedForecaster{
		inner:   inner,
		ttl:     ttl,
		timeout: timeout,
		clock:   clock,
		logger:  logger,
		metrics: metrics,
		cache:   newLRUCache(DefaultMaxEntries),
	}
}

// GetForecast returns the cached snapshot for sensorID while it is younger
// than the TTL, otherwise fetches a new one. Fetch failures return nil and
// leave any previous entry in place.
func (c *CachedForecaster) GetForecast(ctx context.Context, sensorID string, lat, lon float64) *domain.ForecastSnapshot {
	if e, ok := c.cache.get(sensorID); ok && c.clock.Since(e.fetchedAt) < c.ttl {
		c.metrics.ForecastCache.WithLabelValues("hit").Inc()
		return e.snapshot
	}
	c.metrics.ForecastCache.WithLabelValues("miss").Inc()

	fetchCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	snap, err := c.inner.Forecast(fetchCtx, lat, lon)
	if err != nil {
		c.logger.Warn("forecast unavailable", "sensor_id", sensorID, "error", err)
		return nil
	}

	now := c.clock.Now()
	if snap.FetchedAt.IsZero() {
		snap.FetchedAt = now.UTC()
	}
	fresh := &snap
	c.cache.put(sensorID, cacheEntry{snapshot: fresh, fetchedAt: now})
	return fresh
}

type cacheEntry struct {
	snapshot  *domain.ForecastSnapshot
	fetchedAt time.Time
}

// lruCache is a thread-safe LRU cache bounding the number of sensors held.
type lruCache struct {
	maxEntries int
	mu         sync.Mutex
	entries    map[string]*entry
	head       *entry // most recently used
	tail       *entry // least recently used
}

type entry struct {
	key   string
	value cacheEntry
	prev  *entry
	next  *entry
}

func newLRUCache(maxEntries int) *lruCache {
	return &lruCache{
		maxEntries: maxEntries,
		entries:    make(map[string]*entry),
	}
}

func (c *lruCache) get(key string) (cacheEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return cacheEntry{}, false
	}
	c.moveToFront(e)
	return e.value, true
}

func (c *lruCache) put(key string, value cacheEntry) {
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
