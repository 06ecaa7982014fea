// Package ownercache partitions TTL caches by owner (a tracked wallet
// address), giving each owner an isolated cache lifetime that can be created
// and released independently. Owner keys are lower-cased: EVM addresses are
// case-insensitive and 0xABC and 0xabc must share one bucket.
package ownercache

import (
	"sort"
	"strings"
	"sync"
	"time"

	"portfolio_tracker/internal/cache/ttlcache"
)

// OwnerStats pairs an owner key with a snapshot of its cache.
type OwnerStats struct {
	Owner string         `json:"owner"`
	Stats ttlcache.Stats `json:"stats"`
}

// Registry is an arena-style mapping from owner key to cache instance.
// Releasing an owner frees both the map entry and the owner's periodic sweep
// goroutine, so timers never leak per address over a long-running process.
type Registry[V any] struct {
	mu            sync.Mutex
	owners        map[string]*ttlcache.Cache[V]
	defaultTTL    time.Duration
	sweepInterval time.Duration
	now           func() time.Time
}

// Option configures a Registry.
type Option[V any] func(*Registry[V])

// WithClock propagates a test clock into every per-owner cache.
func WithClock[V any](now func() time.Time) Option[V] {
	return func(r *Registry[V]) {
		r.now = now
	}
}

// New creates a registry. sweepInterval <= 0 disables per-owner background
// sweeps (tests use this; production passes the configured interval).
func New[V any](defaultTTL, sweepInterval time.Duration, opts ...Option[V]) *Registry[V] {
	r := &Registry[V]{
		owners:        make(map[string]*ttlcache.Cache[V]),
		defaultTTL:    defaultTTL,
		sweepInterval: sweepInterval,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func normalizeOwner(owner string) string {
	return strings.ToLower(strings.TrimSpace(owner))
}

func (r *Registry[V]) bucket(owner string) *ttlcache.Cache[V] {
	key := normalizeOwner(owner)
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.owners[key]; ok {
		return c
	}
	var c *ttlcache.Cache[V]
	if r.now != nil {
		c = ttlcache.New(r.defaultTTL, ttlcache.WithClock[V](r.now))
	} else {
		c = ttlcache.New[V](r.defaultTTL)
	}
	if r.sweepInterval > 0 {
		c.StartSweeping(r.sweepInterval)
	}
	r.owners[key] = c
	return c
}

// Set stores value in the owner's cache, lazily creating the bucket.
func (r *Registry[V]) Set(owner, key string, value V, ttl time.Duration) {
	r.bucket(owner).Set(key, value, ttl)
}

// Get reads from the owner's cache. A missing owner records no miss anywhere;
// the bucket simply does not exist yet.
func (r *Registry[V]) Get(owner, key string) (V, bool) {
	c, ok := r.lookup(owner)
	if !ok {
		var zero V
		return zero, false
	}
	return c.Get(key)
}

// GetWithMetadata reads from the owner's cache with entry age attached.
func (r *Registry[V]) GetWithMetadata(owner, key string) (ttlcache.Metadata[V], bool) {
	c, ok := r.lookup(owner)
	if !ok {
		return ttlcache.Metadata[V]{}, false
	}
	return c.GetWithMetadata(key)
}

// Delete removes one key from the owner's cache, if the bucket exists.
func (r *Registry[V]) Delete(owner, key string) {
	if c, ok := r.lookup(owner); ok {
		c.Delete(key)
	}
}

// ClearOwner fully releases the owner's cache instance and stops its sweep
// goroutine.
func (r *Registry[V]) ClearOwner(owner string) {
	key := normalizeOwner(owner)
	r.mu.Lock()
	c, ok := r.owners[key]
	delete(r.owners, key)
	r.mu.Unlock()
	if ok {
		c.StopSweeping()
	}
}

// ClearAll releases every owner's cache.
func (r *Registry[V]) ClearAll() {
	r.mu.Lock()
	owners := r.owners
	r.owners = make(map[string]*ttlcache.Cache[V])
	r.mu.Unlock()
	for _, c := range owners {
		c.StopSweeping()
	}
}

// StatsForOwner snapshots one owner's cache.
func (r *Registry[V]) StatsForOwner(owner string) (ttlcache.Stats, bool) {
	c, ok := r.lookup(owner)
	if !ok {
		return ttlcache.Stats{}, false
	}
	return c.Stats(), true
}

// StatsForAllOwners snapshots every owner's cache, sorted by owner key for
// deterministic output.
func (r *Registry[V]) StatsForAllOwners() []OwnerStats {
	r.mu.Lock()
	keys := make([]string, 0, len(r.owners))
	caches := make(map[string]*ttlcache.Cache[V], len(r.owners))
	for k, c := range r.owners {
		keys = append(keys, k)
		caches[k] = c
	}
	r.mu.Unlock()

	sort.Strings(keys)
	stats := make([]OwnerStats, 0, len(keys))
	for _, k := range keys {
		stats = append(stats, OwnerStats{Owner: k, Stats: caches[k].Stats()})
	}
	return stats
}

func (r *Registry[V]) lookup(owner string) (*ttlcache.Cache[V], bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.owners[normalizeOwner(owner)]
	return c, ok
}
