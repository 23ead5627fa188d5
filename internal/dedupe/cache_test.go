package dedupe

import (
	"testing"
	"time"
)

func newTestCache(opts Options, start time.Time) (*Cache, *time.Time) {
	clock := start
	opts.clockForTest = func() time.Time { return clock }
	return New(opts), &clock
}

func TestIsRecentInboundFirstThenSecond(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c, _ := newTestCache(Options{}, start)

	if c.IsRecentInbound("msg1") {
		t.Fatal("expected first sighting to return false")
	}
	if !c.IsRecentInbound("msg1") {
		t.Fatal("expected second sighting within TTL to return true")
	}
}

// S6: a message seen again after the TTL window elapses is treated as new.
func TestIsRecentInboundExpiresAfterTTL(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c, clock := newTestCache(Options{TTL: time.Minute}, start)

	if c.IsRecentInbound("msg1") {
		t.Fatal("expected first sighting to return false")
	}
	*clock = clock.Add(2 * time.Minute)
	if c.IsRecentInbound("msg1") {
		t.Fatal("expected sighting after TTL expiry to be treated as new")
	}
}

func TestCacheMaxEntriesEvictsOldest(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c, _ := newTestCache(Options{MaxEntries: 2}, start)

	c.IsRecentInbound("a")
	c.IsRecentInbound("b")
	c.IsRecentInbound("c")

	if c.Contains("a") {
		t.Fatal("expected oldest entry to be evicted once max entries exceeded")
	}
	if !c.Contains("b") || !c.Contains("c") {
		t.Fatal("expected the two most recent entries to remain")
	}
	if c.Size() != 2 {
		t.Fatalf("expected size 2, got %d", c.Size())
	}
}

func TestCacheRemoveAndKeys(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c, _ := newTestCache(Options{}, start)

	c.IsRecentInbound("a")
	c.IsRecentInbound("b")
	c.Remove("a")

	if c.Contains("a") {
		t.Fatal("expected a to be removed")
	}
	keys := c.Keys()
	if len(keys) != 1 || keys[0] != "b" {
		t.Fatalf("expected remaining keys [b], got %v", keys)
	}
}
