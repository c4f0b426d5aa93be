package cache

import (
	"testing"
	"time"
)

type fakeClock struct{ t int64 }

func (f *fakeClock) NowUnixNano() int64  { return f.t }
func (f *fakeClock) add(d time.Duration) { f.t += int64(d) }

// Uses a fake clock to avoid timing flakiness.
// An entry is visible strictly before its deadline and invisible at/after it,
// regardless of whether a sweep has run.
func TestCache_TTL_FakeClock(t *testing.T) {
	t.Parallel()

	clk := &fakeClock{t: 1}
	c, err := New(Options{Shards: 4, Clock: clk})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = c.Close() })

	c.Set("x", "v", 100*time.Millisecond)
	if v, ok := c.Get("x"); !ok || v != "v" {
		t.Fatalf("fresh get: want v, got %q ok=%v", v, ok)
	}

	clk.add(99 * time.Millisecond)
	if _, ok := c.Get("x"); !ok {
		t.Fatal("entry must be visible before its deadline")
	}

	// The deadline instant itself counts as expired.
	clk.add(1 * time.Millisecond)
	if _, ok := c.Get("x"); ok {
		t.Fatal("entry must be invisible at its deadline")
	}
}

// Keys set without a TTL survive arbitrary clock advances and real sweep
// intervals.
func TestCache_NoTTLPersists(t *testing.T) {
	t.Parallel()

	clk := &fakeClock{t: 1}
	c, err := New(Options{Shards: 2, Clock: clk, SweepInterval: 5 * time.Millisecond})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = c.Close() })

	c.Set("forever", "v", 0)
	clk.add(1000 * time.Hour)
	time.Sleep(50 * time.Millisecond) // let several sweep passes run

	if v, ok := c.Get("forever"); !ok || v != "v" {
		t.Fatalf("no-TTL entry must persist, got %q ok=%v", v, ok)
	}
	if c.Len() != 1 {
		t.Fatalf("Len: want 1, got %d", c.Len())
	}
}

// Construction must fail synchronously on an invalid shard count.
func TestCache_New_InvalidShards(t *testing.T) {
	t.Parallel()

	for _, n := range []int{0, -1} {
		if _, err := New(Options{Shards: n}); err != ErrNoShards {
			t.Fatalf("Shards=%d: want ErrNoShards, got %v", n, err)
		}
	}
}

// A later Set replaces the entry wholesale; the last write wins.
func TestCache_SetOverwrite(t *testing.T) {
	t.Parallel()

	c, err := New(Options{Shards: 1})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = c.Close() })

	c.Set("a", "1", 0)
	c.Set("a", "2", 0)
	if v, ok := c.Get("a"); !ok || v != "2" {
		t.Fatalf("want 2, got %q ok=%v", v, ok)
	}
	if c.Len() != 1 {
		t.Fatalf("overwrite must not grow Len, got %d", c.Len())
	}
}

// Close is idempotent; operations after Close are ignored.
func TestCache_Close(t *testing.T) {
	t.Parallel()

	c, err := New(Options{Shards: 2})
	if err != nil {
		t.Fatal(err)
	}

	c.Set("a", "1", 0)
	if err := c.Close(); err != nil {
		t.Fatal(err)
	}
	if err := c.Close(); err != nil {
		t.Fatal("second Close must be a no-op")
	}

	c.Set("b", "2", 0)
	if _, ok := c.Get("a"); ok {
		t.Fatal("Get after Close must miss")
	}
}

// Stats counters move with hits and misses.
func TestCache_Stats(t *testing.T) {
	t.Parallel()

	c, err := New(Options{Shards: 4})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = c.Close() })

	c.Set("a", "1", 0)
	c.Get("a") // hit
	c.Get("b") // miss
	c.Get("c") // miss

	st := c.Stats()
	if st.Hits != 1 || st.Misses != 2 {
		t.Fatalf("want hits=1 misses=2, got %+v", st)
	}
}

// End-to-end TTL scenario with real time and a fast sweep interval:
// a (no TTL) and c (long TTL) outlive b (short TTL); eventually the sweeper
// reclaims both expired keys and only a remains resident.
func TestCache_EndToEnd(t *testing.T) {
	t.Parallel()

	c, err := New(Options{Shards: 3, SweepInterval: 10 * time.Millisecond})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = c.Close() })

	c.Set("a", "1", 0)
	c.Set("b", "2", 150*time.Millisecond)
	c.Set("c", "3", 600*time.Millisecond)

	for _, tc := range []struct{ k, v string }{{"a", "1"}, {"b", "2"}, {"c", "3"}} {
		if v, ok := c.Get(tc.k); !ok || v != tc.v {
			t.Fatalf("fresh get %s: want %s, got %q ok=%v", tc.k, tc.v, v, ok)
		}
	}

	time.Sleep(300 * time.Millisecond)
	if _, ok := c.Get("a"); !ok {
		t.Fatal("a must survive")
	}
	if _, ok := c.Get("b"); ok {
		t.Fatal("b must be expired")
	}
	if _, ok := c.Get("c"); !ok {
		t.Fatal("c must still be visible")
	}

	time.Sleep(500 * time.Millisecond)
	if _, ok := c.Get("c"); ok {
		t.Fatal("c must be expired")
	}

	// Sweeping reclaims memory, not just visibility: wait for the resident
	// count to shrink to the single no-TTL key.
	deadline := time.Now().Add(2 * time.Second)
	for c.Len() != 1 {
		if time.Now().After(deadline) {
			t.Fatalf("sweeper did not reclaim expired entries, Len=%d", c.Len())
		}
		time.Sleep(10 * time.Millisecond)
	}

	st := c.Stats()
	if st.Evictions != 2 {
		t.Fatalf("want 2 evictions, got %d", st.Evictions)
	}
}

// A sweeper that panics (here via the OnEvict callback) terminates and marks
// its shard degraded; the shard keeps serving reads and writes.
func TestCache_SweeperPanicDegradesShard(t *testing.T) {
	t.Parallel()

	c, err := New(Options{
		Shards:        1,
		SweepInterval: 5 * time.Millisecond,
		OnEvict:       func(k, v string) { panic("callback boom") },
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = c.Close() })

	c.Set("doomed", "v", time.Millisecond)

	deadline := time.Now().Add(2 * time.Second)
	for len(c.DegradedShards()) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("shard was never marked degraded")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if got := c.DegradedShards(); len(got) != 1 || got[0] != 0 {
		t.Fatalf("want degraded shard [0], got %v", got)
	}

	// Degraded means "no reclamation", not "no service".
	c.Set("alive", "v", 0)
	if _, ok := c.Get("alive"); !ok {
		t.Fatal("degraded shard must still serve reads and writes")
	}
}
