// Package cache memoizes deterministic astronomical searches.
//
// Entries never go stale: the same key always maps to the same result, so
// there is no expiry. Reset drops every entry and exists for memory
// reclamation and tests.
package cache

import (
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"
)

// coordScale rounds coordinates to 0.001 degree (about 110 m), which keeps
// the number of distinct keys bounded while staying far below the
// precision of the underlying ephemeris.
const coordScale = 1000

// Kind names the search a key belongs to.
type Kind string

// Key identifies a cached result. It is comparable and can be used as a map
// key directly.
type Key struct {
	Kind   Kind
	Bucket int64 // year for yearly searches, day start in ms for daily ones
	Lat    int32 // milli-degrees
	Lng    int32 // milli-degrees
}

// NewKey builds a key, rounding lat and lng to 0.001 degree.
func NewKey(kind Kind, bucket int64, lat, lng float64) Key {
	return Key{
		Kind:   kind,
		Bucket: bucket,
		Lat:    int32(math.Round(lat * coordScale)),
		Lng:    int32(math.Round(lng * coordScale)),
	}
}

// Latitude returns the rounded latitude in degrees.
func (k Key) Latitude() float64 {
	return float64(k.Lat) / coordScale
}

// Longitude returns the rounded longitude in degrees.
func (k Key) Longitude() float64 {
	return float64(k.Lng) / coordScale
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%d/%d/%d", k.Kind, k.Bucket, k.Lat, k.Lng)
}

// Stats reports cache usage since creation.
type Stats struct {
	Entries int    `json:"entries"`
	Hits    uint64 `json:"hits"`
	Misses  uint64 `json:"misses"`
	Resets  uint64 `json:"resets"`
}

// Cache is safe for concurrent use. Concurrent lookups of the same missing
// key share a single computation.
type Cache struct {
	mu      sync.RWMutex
	entries map[Key]any
	group   singleflight.Group

	hits   atomic.Uint64
	misses atomic.Uint64
	resets atomic.Uint64
}

// New returns an empty cache.
func New() *Cache {
	return &Cache{entries: make(map[Key]any)}
}

func (c *Cache) lookup(key Key) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.entries[key]
	return v, ok
}

func (c *Cache) store(key Key, v any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = v
}

// Reset drops all entries. Lookups racing a reset either see the old value
// or recompute it.
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[Key]any)
	c.resets.Add(1)
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Stats returns a snapshot of the cache counters.
func (c *Cache) Stats() Stats {
	return Stats{
		Entries: c.Len(),
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
		Resets:  c.resets.Load(),
	}
}

// GetOrCompute returns the value cached under key, or calls compute, caches
// its result and returns it. Errors are returned to every waiting caller and
// are not cached. A nil cache always computes.
func GetOrCompute[V any](c *Cache, key Key, compute func() (V, error)) (V, error) {
	if c == nil {
		return compute()
	}
	if v, ok := c.lookup(key); ok {
		if typed, ok := v.(V); ok {
			c.hits.Add(1)
			return typed, nil
		}
	}

	v, err, _ := c.group.Do(key.String(), func() (any, error) {
		// Another flight may have filled the entry between lookup and Do.
		if v, ok := c.lookup(key); ok {
			if typed, ok := v.(V); ok {
				c.hits.Add(1)
				return typed, nil
			}
		}
		c.misses.Add(1)
		v, err := compute()
		if err != nil {
			return nil, err
		}
		c.store(key, v)
		return v, nil
	})
	if err != nil {
		var zero V
		return zero, err
	}
	typed, ok := v.(V)
	if !ok {
		var zero V
		return zero, fmt.Errorf("cache: entry %s holds %T", key, v)
	}
	return typed, nil
}
