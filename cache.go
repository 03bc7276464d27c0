package utilz

import (
	"context"
	"sync"
	"time"

	"github.com/zoobzio/clockz"
	"github.com/zoobzio/hookz"
	"github.com/zoobzio/metricz"
	"github.com/zoobzio/tracez"
)

// Metric keys for Cache observability.
const (
	CacheHitsTotal      = metricz.Key("cache.hits.total")
	CacheMissesTotal    = metricz.Key("cache.misses.total")
	CacheExpiredTotal   = metricz.Key("cache.expired.total")
	CacheEntriesCurrent = metricz.Key("cache.entries.current")
)

// Span names and tags for Cache.
const (
	CacheProcessSpan = tracez.Key("cache.process")

	CacheTagConnector = tracez.Tag("cache.connector")
	CacheTagHit       = tracez.Tag("cache.hit")
	CacheTagError     = tracez.Tag("cache.error")
)

// Hook event keys for Cache.
const (
	CacheEventHit     = hookz.Key("cache.hit")
	CacheEventMiss    = hookz.Key("cache.miss")
	CacheEventExpired = hookz.Key("cache.expired")
)

// CacheEvent is emitted through hookz on every cache lookup.
type CacheEvent struct {
	Timestamp time.Time
	Name      Name
	Entries   int
	Hit       bool
	Expired   bool
}

type cacheEntry[Out any] struct {
	expires time.Time
	value   Out
}

// Cache memoises the results of a wrapped function for a fixed expiration.
//
// Entries are keyed by the full input value, so In must be comparable.
// Successful results are stored; errors are never cached, so a failing call
// is retried on the next lookup. Once an entry is older than the expiration
// it is discarded and the function is called again.
//
// Example:
//
//	lookup := utilz.Apply("geo-lookup", geoip.Lookup)
//	cached, err := utilz.NewCache("geo-cache", lookup, 10*time.Minute)
//	if err != nil {
//	    return err
//	}
//	country, err := cached.Process(ctx, "203.0.113.7")
//
// Cache is safe for concurrent use. Two concurrent misses for the same key
// may both call the wrapped function; the later result wins.
type Cache[In comparable, Out any] struct {
	processor  Chainable[In, Out]
	clock      clockz.Clock
	entries    map[In]cacheEntry[Out]
	metrics    *metricz.Registry
	tracer     *tracez.Tracer
	hooks      *hookz.Hooks[CacheEvent]
	name       Name
	expiration time.Duration
	mu         sync.RWMutex
}

// NewCache creates a Cache that keeps results for expiration.
func NewCache[In comparable, Out any](name Name, processor Chainable[In, Out], expiration time.Duration) (*Cache[In, Out], error) {
	if expiration <= 0 {
		return nil, invalidArgument("expiration_time must be a positive integer")
	}

	registry := metricz.New()
	registry.Counter(CacheHitsTotal)
	registry.Counter(CacheMissesTotal)
	registry.Counter(CacheExpiredTotal)
	registry.Gauge(CacheEntriesCurrent)

	return &Cache[In, Out]{
		name:       name,
		processor:  processor,
		expiration: expiration,
		entries:    make(map[In]cacheEntry[Out]),
		metrics:    registry,
		tracer:     tracez.New(),
		hooks:      hookz.New[CacheEvent](),
	}, nil
}

// Process implements Chainable.
func (c *Cache[In, Out]) Process(ctx context.Context, in In) (result Out, err error) {
	defer recoverFromPanic(&result, &err, c.name, in)

	c.mu.RLock()
	processor := c.processor
	expiration := c.expiration
	clock := c.getClock()
	entry, found := c.entries[in]
	c.mu.RUnlock()

	ctx, span := c.tracer.StartSpan(ctx, CacheProcessSpan)
	defer span.Finish()
	span.SetTag(CacheTagConnector, c.name)

	now := clock.Now()
	if found && now.Before(entry.expires) {
		c.metrics.Counter(CacheHitsTotal).Inc()
		span.SetTag(CacheTagHit, "true")
		_ = c.hooks.Emit(ctx, CacheEventHit, CacheEvent{ //nolint:errcheck
			Name:      c.name,
			Hit:       true,
			Entries:   c.Len(),
			Timestamp: now,
		})
		return entry.value, nil
	}

	span.SetTag(CacheTagHit, "false")
	if found {
		c.metrics.Counter(CacheExpiredTotal).Inc()
		c.mu.Lock()
		delete(c.entries, in)
		c.mu.Unlock()
		_ = c.hooks.Emit(ctx, CacheEventExpired, CacheEvent{ //nolint:errcheck
			Name:      c.name,
			Expired:   true,
			Entries:   c.Len(),
			Timestamp: now,
		})
	}
	c.metrics.Counter(CacheMissesTotal).Inc()

	result, err = processor.Process(ctx, in)
	if err != nil {
		span.SetTag(CacheTagError, err.Error())
		return result, wrapError(err, c.name, in)
	}

	c.mu.Lock()
	c.entries[in] = cacheEntry[Out]{value: result, expires: clock.Now().Add(expiration)}
	size := len(c.entries)
	c.mu.Unlock()
	c.metrics.Gauge(CacheEntriesCurrent).Set(float64(size))

	_ = c.hooks.Emit(ctx, CacheEventMiss, CacheEvent{ //nolint:errcheck
		Name:      c.name,
		Entries:   size,
		Timestamp: now,
	})
	return result, nil
}

// Clear drops every cached entry.
func (c *Cache[In, Out]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[In]cacheEntry[Out])
	c.metrics.Gauge(CacheEntriesCurrent).Set(0)
}

// Len returns the number of cached entries, including expired ones not yet
// evicted.
func (c *Cache[In, Out]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// SetExpiration updates the expiration applied to new entries.
func (c *Cache[In, Out]) SetExpiration(d time.Duration) *Cache[In, Out] {
	if d <= 0 {
		return c
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.expiration = d
	return c
}

// GetExpiration returns the current expiration.
func (c *Cache[In, Out]) GetExpiration() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.expiration
}

// Name returns the name of this wrapper.
func (c *Cache[In, Out]) Name() Name {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.name
}

// Metrics returns the metrics registry for this wrapper.
func (c *Cache[In, Out]) Metrics() *metricz.Registry {
	return c.metrics
}

// Tracer returns the tracer for this wrapper.
func (c *Cache[In, Out]) Tracer() *tracez.Tracer {
	return c.tracer
}

// OnHit registers a handler called asynchronously on every cache hit.
func (c *Cache[In, Out]) OnHit(handler func(context.Context, CacheEvent) error) error {
	_, err := c.hooks.Hook(CacheEventHit, handler)
	return err
}

// OnMiss registers a handler called asynchronously after a miss is filled.
func (c *Cache[In, Out]) OnMiss(handler func(context.Context, CacheEvent) error) error {
	_, err := c.hooks.Hook(CacheEventMiss, handler)
	return err
}

// OnExpired registers a handler called asynchronously when an expired entry
// is evicted.
func (c *Cache[In, Out]) OnExpired(handler func(context.Context, CacheEvent) error) error {
	_, err := c.hooks.Hook(CacheEventExpired, handler)
	return err
}

// Close releases observability resources.
func (c *Cache[In, Out]) Close() error {
	if c.tracer != nil {
		c.tracer.Close()
	}
	c.hooks.Close()
	return nil
}

// WithClock sets a custom clock for testing.
func (c *Cache[In, Out]) WithClock(clock clockz.Clock) *Cache[In, Out] {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clock = clock
	return c
}

func (c *Cache[In, Out]) getClock() clockz.Clock {
	if c.clock == nil {
		return clockz.RealClock
	}
	return c.clock
}
