// Package ttlcache memoizes one expensive value for a fixed time-to-live.
package ttlcache

import (
	"math"
	"sync"
	"time"

	cache "github.com/patrickmn/go-cache"
)

const entryKey = "value"

// Result is the value returned by GetOrCreate.
type Result[T any] struct {
	Value    T     `json:"value"`
	CacheHit bool  `json:"cache_hit"`
	AgeMS    int64 `json:"age_ms"`
}

// Cache holds a single entry. The zero value is not usable; use New.
type Cache[T any] struct {
	// mu is held across a miss so concurrent callers share one factory call.
	mu    sync.Mutex
	ttl   time.Duration
	entry *cache.Cache
}

// New creates a cache. A negative ttl is treated as zero, which disables
// caching.
func New[T any](ttl time.Duration) *Cache[T] {
	ttl = max(ttl, 0)

	c := &Cache[T]{ttl: ttl}
	if ttl > 0 {
		c.entry = cache.New(ttl, 0)
	}
	return c
}

// NewFromMillis creates a cache from a ttl in milliseconds. Non-finite and
// negative values are treated as zero.
func NewFromMillis[T any](ms float64) *Cache[T] {
	if math.IsNaN(ms) || math.IsInf(ms, 0) || ms < 0 {
		ms = 0
	}
	return New[T](time.Duration(ms * float64(time.Millisecond)))
}

// TTL returns the effective time-to-live.
func (c *Cache[T]) TTL() time.Duration {
	return c.ttl
}

// GetOrCreate returns the cached value while it is fresh and otherwise runs
// factory and stores its result. A factory error is returned as is and
// nothing is stored.
func (c *Cache[T]) GetOrCreate(factory func() (T, error)) (Result[T], error) {
	if c.entry == nil {
		v, err := factory()
		return Result[T]{Value: v}, err
	}

	if res, ok := c.get(); ok {
		return res, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if res, ok := c.get(); ok {
		return res, nil
	}

	v, err := factory()
	if err != nil {
		var zero T
		return Result[T]{Value: zero}, err
	}

	c.entry.Set(entryKey, v, cache.DefaultExpiration)
	return Result[T]{Value: v}, nil
}

func (c *Cache[T]) get() (Result[T], bool) {
	raw, expires, ok := c.entry.GetWithExpiration(entryKey)
	if !ok {
		return Result[T]{}, false
	}

	v, ok := raw.(T)
	if !ok {
		return Result[T]{}, false
	}

	age := c.ttl - time.Until(expires)
	return Result[T]{Value: v, CacheHit: true, AgeMS: max(age, 0).Milliseconds()}, true
}

// Clear drops the cached entry.
func (c *Cache[T]) Clear() {
	if c.entry != nil {
		c.entry.Flush()
	}
}
