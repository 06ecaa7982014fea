// Package ttlcache implements a generic key/value store with per-entry
// expiry, hit/miss counters, lazy expiry on read and an optional periodic
// sweep. Expiry is strictly elapsed-time based: reading an entry updates its
// last-access timestamp for telemetry but never extends its lifetime.
package ttlcache

import (
	"sync"
	"time"
)

// DefaultTTL marks a Set call that should use the cache's configured default.
const DefaultTTL time.Duration = 0

type entry[V any] struct {
	payload        V
	createdAt      time.Time
	ttl            time.Duration
	lastAccessedAt time.Time
}

func (e *entry[V]) expired(now time.Time) bool {
	return now.Sub(e.createdAt) > e.ttl
}

// Metadata exposes an entry's value together with its age bookkeeping, for
// callers implementing their own staleness policy on top of the cache.
type Metadata[V any] struct {
	Value     V
	CreatedAt time.Time
	TTL       time.Duration
}

// EntryStat describes one live entry in a Stats snapshot.
type EntryStat struct {
	Key   string `json:"key"`
	AgeMs int64  `json:"ageMs"`
	TTLMs int64  `json:"ttlMs"`
}

// Stats is a point-in-time, read-only snapshot of a cache.
type Stats struct {
	Size    int         `json:"size"`
	Hits    uint64      `json:"hits"`
	Misses  uint64      `json:"misses"`
	Entries []EntryStat `json:"entries"`
}

// Cache is a TTL cache for values of type V. All operations are safe for
// concurrent use.
type Cache[V any] struct {
	mu         sync.Mutex
	entries    map[string]*entry[V]
	defaultTTL time.Duration
	hits       uint64
	misses     uint64
	now        func() time.Time

	sweepStop chan struct{}
	sweepDone chan struct{}
}

// Option configures a Cache.
type Option[V any] func(*Cache[V])

// WithClock replaces the time source, used by tests to control expiry.
func WithClock[V any](now func() time.Time) Option[V] {
	return func(c *Cache[V]) {
		c.now = now
	}
}

// New creates a cache whose entries default to defaultTTL when Set is called
// with DefaultTTL.
func New[V any](defaultTTL time.Duration, opts ...Option[V]) *Cache[V] {
	c := &Cache[V]{
		entries:    make(map[string]*entry[V]),
		defaultTTL: defaultTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Set stores value under key with expiry now+ttl, overwriting any existing
// entry unconditionally. Pass DefaultTTL to use the configured default.
func (c *Cache[V]) Set(key string, value V, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = &entry[V]{
		payload:        value,
		createdAt:      now,
		ttl:            ttl,
		lastAccessedAt: now,
	}
}

// Get returns the live value for key, recording a hit. An expired entry is
// deleted and counted as a miss.
func (c *Cache[V]) Get(key string) (V, bool) {
	var zero V
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		c.misses++
		return zero, false
	}
	if e.expired(now) {
		delete(c.entries, key)
		c.misses++
		return zero, false
	}
	e.lastAccessedAt = now
	c.hits++
	return e.payload, true
}

// GetWithMetadata is Get with the entry's creation time and TTL attached.
func (c *Cache[V]) GetWithMetadata(key string) (Metadata[V], bool) {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		c.misses++
		return Metadata[V]{}, false
	}
	if e.expired(now) {
		delete(c.entries, key)
		c.misses++
		return Metadata[V]{}, false
	}
	e.lastAccessedAt = now
	c.hits++
	return Metadata[V]{Value: e.payload, CreatedAt: e.createdAt, TTL: e.ttl}, true
}

// Delete removes key if present.
func (c *Cache[V]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Clear removes every entry and resets the hit/miss counters.
func (c *Cache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*entry[V])
	c.hits = 0
	c.misses = 0
}

// Sweep removes all currently expired entries and returns how many were
// removed. It bounds growth from keys that are written once and never read.
func (c *Cache[V]) Sweep() int {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for key, e := range c.entries {
		if e.expired(now) {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

// Stats snapshots the cache without mutating it; expired-but-unswept entries
// are still listed with their age.
func (c *Cache[V]) Stats() Stats {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	stats := Stats{
		Size:    len(c.entries),
		Hits:    c.hits,
		Misses:  c.misses,
		Entries: make([]EntryStat, 0, len(c.entries)),
	}
	for key, e := range c.entries {
		stats.Entries = append(stats.Entries, EntryStat{
			Key:   key,
			AgeMs: now.Sub(e.createdAt).Milliseconds(),
			TTLMs: e.ttl.Milliseconds(),
		})
	}
	return stats
}

// StartSweeping launches a background goroutine that calls Sweep on the given
// interval until StopSweeping is called. Calling it twice is a no-op.
func (c *Cache[V]) StartSweeping(interval time.Duration) {
	c.mu.Lock()
	if c.sweepStop != nil {
		c.mu.Unlock()
		return
	}
	stop := make(chan struct{})
	done := make(chan struct{})
	c.sweepStop = stop
	c.sweepDone = done
	c.mu.Unlock()

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.Sweep()
			case <-stop:
				return
			}
		}
	}()
}

// StopSweeping stops the periodic sweep goroutine, waiting until it exits so
// no timer outlives the cache.
func (c *Cache[V]) StopSweeping() {
	c.mu.Lock()
	stop := c.sweepStop
	done := c.sweepDone
	c.sweepStop = nil
	c.sweepDone = nil
	c.mu.Unlock()
	if stop == nil {
		return
	}
	close(stop)
	<-done
}
