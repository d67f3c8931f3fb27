package cache_test

import (
	"bytes"
	"fmt"
	"testing"
	"time"

	"tasklens/internal/cache"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestCache(max int) (*cache.Cache, *fakeClock) {
	clock := &fakeClock{now: time.Date(2025, 6, 18, 12, 0, 0, 0, time.UTC)}
	c := cache.New(max)
	c.Now = clock.Now
	return c, clock
}

func TestGetReturnsStoredBytes(t *testing.T) {
	c, _ := newTestCache(8)
	payload := []byte(`{"total_tasks":6}`)
	c.Put("k", payload, time.Minute)
	got, ok := c.Get("k")
	if !ok {
		t.Fatal("expected hit")
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("payload = %q, want %q", got, payload)
	}
	// A second read within the TTL returns the identical bytes.
	again, ok := c.Get("k")
	if !ok || !bytes.Equal(again, payload) {
		t.Fatalf("second read = %q, ok=%v", again, ok)
	}
}

func TestEntryExpires(t *testing.T) {
	c, clock := newTestCache(8)
	c.Put("k", []byte("v"), time.Minute)
	clock.Advance(59 * time.Second)
	if _, ok := c.Get("k"); !ok {
		t.Fatal("entry expired early")
	}
	clock.Advance(time.Second)
	if _, ok := c.Get("k"); ok {
		t.Fatal("entry served past its TTL")
	}
	// Expired entry is removed on read.
	if c.Len() != 0 {
		t.Fatalf("len = %d after expiry, want 0", c.Len())
	}
}

func TestZeroTTLStoresNothing(t *testing.T) {
	c, _ := newTestCache(8)
	c.Put("k", []byte("v"), 0)
	c.Put("k2", []byte("v"), -time.Second)
	if c.Len() != 0 {
		t.Fatalf("len = %d, want 0", c.Len())
	}
}

func TestBoundEvictsOldest(t *testing.T) {
	c, clock := newTestCache(3)
	for i := 0; i < 3; i++ {
		c.Put(fmt.Sprintf("k%d", i), []byte("v"), time.Hour)
		clock.Advance(time.Second)
	}
	c.Put("k3", []byte("v"), time.Hour)
	if c.Len() != 3 {
		t.Fatalf("len = %d, want 3", c.Len())
	}
	if _, ok := c.Get("k0"); ok {
		t.Fatal("oldest entry survived eviction")
	}
	if _, ok := c.Get("k3"); !ok {
		t.Fatal("newest entry missing")
	}
}

func TestBoundPrefersExpiredEviction(t *testing.T) {
	c, clock := newTestCache(2)
	c.Put("short", []byte("v"), time.Second)
	clock.Advance(time.Minute)
	c.Put("live", []byte("v"), time.Hour)
	c.Put("live2", []byte("v"), time.Hour)
	if _, ok := c.Get("live"); !ok {
		t.Fatal("live entry was evicted while an expired one existed")
	}
	if _, ok := c.Get("live2"); !ok {
		t.Fatal("second live entry missing")
	}
}

func TestStatsCounters(t *testing.T) {
	c, clock := newTestCache(8)
	c.Put("k", []byte("v"), time.Minute)
	c.Get("k")
	c.Get("absent")
	clock.Advance(2 * time.Minute)
	c.Get("k") // expired: eviction plus miss
	s := c.Stats()
	if s.Hits != 1 || s.Misses != 2 || s.Evictions != 1 {
		t.Fatalf("stats = %+v", s)
	}
	if s.Entries != 0 {
		t.Fatalf("entries = %d, want 0", s.Entries)
	}
}

func TestDeleteAndClear(t *testing.T) {
	c, _ := newTestCache(8)
	c.Put("a", []byte("1"), time.Minute)
	c.Put("b", []byte("2"), time.Minute)
	c.Delete("a")
	if _, ok := c.Get("a"); ok {
		t.Fatal("deleted entry still served")
	}
	if _, ok := c.Get("b"); !ok {
		t.Fatal("unrelated entry dropped by delete")
	}
	c.Clear()
	if c.Len() != 0 {
		t.Fatalf("len = %d after clear, want 0", c.Len())
	}
	if _, ok := c.Get("b"); ok {
		t.Fatal("entry survived clear")
	}
}

func TestKeyComposition(t *testing.T) {
	if got := cache.Key("dashboard", "admin"); got != "dashboard|admin" {
		t.Fatalf("key = %q", got)
	}
	if got := cache.Key("task-completion-trend", "member:u1", "30"); got != "task-completion-trend|member:u1|30" {
		t.Fatalf("key = %q", got)
	}
	// Distinct scopes never collide.
	if cache.Key("dashboard", "admin") == cache.Key("dashboard", "member:u1") {
		t.Fatal("admin and member keys collide")
	}
}
