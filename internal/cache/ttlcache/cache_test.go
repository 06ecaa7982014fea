package ttlcache

import (
	"testing"
	"time"
)

type fakeClock struct {
	now time.Time
}

func (f *fakeClock) Now() time.Time { return f.now }

func (f *fakeClock) Advance(d time.Duration) { f.now = f.now.Add(d) }

func newTestCache(defaultTTL time.Duration) (*Cache[string], *fakeClock) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	return New[string](defaultTTL, WithClock[string](clock.Now)), clock
}

func TestGetReturnsValueBeforeExpiry(t *testing.T) {
	c, clock := newTestCache(10 * time.Minute)
	c.Set("k", "v", DefaultTTL)

	clock.Advance(10 * time.Minute) // exactly at the boundary, still live

	got, ok := c.Get("k")
	if !ok {
		t.Fatal("expected entry to be live at exactly createdAt+ttl")
	}
	if got != "v" {
		t.Errorf("expected value %q, got %q", "v", got)
	}
}

func TestGetExpiresAfterTTL(t *testing.T) {
	c, clock := newTestCache(10 * time.Minute)
	c.Set("k", "v", DefaultTTL)

	clock.Advance(10*time.Minute + time.Millisecond)

	if _, ok := c.Get("k"); ok {
		t.Fatal("expected entry to have expired")
	}
	// lazy expiry removed the entry
	if stats := c.Stats(); stats.Size != 0 {
		t.Errorf("expected expired entry to be deleted on read, size = %d", stats.Size)
	}
}

func TestSetOverwritesUnconditionally(t *testing.T) {
	c, clock := newTestCache(10 * time.Minute)
	c.Set("k", "old", DefaultTTL)
	clock.Advance(9 * time.Minute)
	c.Set("k", "new", time.Hour)

	clock.Advance(30 * time.Minute)
	got, ok := c.Get("k")
	if !ok || got != "new" {
		t.Fatalf("expected overwritten entry %q to be live, got %q ok=%v", "new", got, ok)
	}
}

func TestExplicitTTLOverridesDefault(t *testing.T) {
	c, clock := newTestCache(10 * time.Minute)
	c.Set("short", "v", time.Minute)

	clock.Advance(2 * time.Minute)
	if _, ok := c.Get("short"); ok {
		t.Error("expected entry with explicit 1m ttl to expire after 2m")
	}
}

func TestHitAndMissCounters(t *testing.T) {
	c, clock := newTestCache(time.Minute)
	c.Set("k", "v", DefaultTTL)

	c.Get("k")
	c.Get("k")
	c.Get("absent")
	clock.Advance(2 * time.Minute)
	c.Get("k") // expired, counts as miss

	stats := c.Stats()
	if stats.Hits != 2 {
		t.Errorf("expected 2 hits, got %d", stats.Hits)
	}
	if stats.Misses != 2 {
		t.Errorf("expected 2 misses, got %d", stats.Misses)
	}
}

func TestClearResetsCounters(t *testing.T) {
	c, _ := newTestCache(time.Minute)
	c.Set("k", "v", DefaultTTL)
	c.Get("k")
	c.Get("absent")

	c.Clear()

	stats := c.Stats()
	if stats.Size != 0 || stats.Hits != 0 || stats.Misses != 0 {
		t.Errorf("expected empty stats after clear, got %+v", stats)
	}
}

func TestGetWithMetadataExposesAge(t *testing.T) {
	c, clock := newTestCache(10 * time.Minute)
	created := clock.Now()
	c.Set("k", "v", DefaultTTL)

	clock.Advance(3 * time.Minute)
	meta, ok := c.GetWithMetadata("k")
	if !ok {
		t.Fatal("expected entry to be live")
	}
	if !meta.CreatedAt.Equal(created) {
		t.Errorf("expected createdAt %v, got %v", created, meta.CreatedAt)
	}
	if meta.TTL != 10*time.Minute {
		t.Errorf("expected ttl 10m, got %v", meta.TTL)
	}
}

func TestAccessDoesNotExtendTTL(t *testing.T) {
	c, clock := newTestCache(10 * time.Minute)
	c.Set("k", "v", DefaultTTL)

	// Repeated reads must not slide the expiry forward.
	for i := 0; i < 5; i++ {
		clock.Advance(2 * time.Minute)
		c.Get("k")
	}
	clock.Advance(time.Minute)
	if _, ok := c.Get("k"); ok {
		t.Error("expected entry to expire 10m after creation despite reads")
	}
}

func TestSweepRemovesOnlyExpired(t *testing.T) {
	c, clock := newTestCache(10 * time.Minute)
	c.Set("old", "v", time.Minute)
	c.Set("fresh", "v", time.Hour)

	clock.Advance(5 * time.Minute)
	removed := c.Sweep()
	if removed != 1 {
		t.Fatalf("expected sweep to remove 1 entry, removed %d", removed)
	}
	if _, ok := c.Get("fresh"); !ok {
		t.Error("expected unexpired entry to survive sweep")
	}
}

func TestStatsDoesNotMutate(t *testing.T) {
	c, clock := newTestCache(time.Minute)
	c.Set("k", "v", DefaultTTL)
	clock.Advance(30 * time.Second)

	before := c.Stats()
	after := c.Stats()
	if before.Hits != after.Hits || before.Misses != after.Misses || before.Size != after.Size {
		t.Errorf("stats mutated state: before %+v after %+v", before, after)
	}
	if len(before.Entries) != 1 {
		t.Fatalf("expected 1 entry in stats, got %d", len(before.Entries))
	}
	if before.Entries[0].AgeMs != (30 * time.Second).Milliseconds() {
		t.Errorf("expected age 30000ms, got %d", before.Entries[0].AgeMs)
	}
}

func TestStopSweepingTerminatesGoroutine(t *testing.T) {
	c, _ := newTestCache(time.Minute)
	c.StartSweeping(10 * time.Millisecond)
	c.StartSweeping(10 * time.Millisecond) // second start is a no-op
	time.Sleep(25 * time.Millisecond)
	c.StopSweeping()
	c.StopSweeping() // idempotent
}
