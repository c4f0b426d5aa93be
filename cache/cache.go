package cache

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/sweepkv/sweepkv/internal/util"
)

// ErrNoShards is returned by New when Options.Shards is not at least 1.
var ErrNoShards = errors.New("cache: shard count must be at least 1")

// cache owns the shards and their sweepers. All routing state is immutable
// after construction; shards carry their own locks.
type cache struct {
	shards []*shard

	done   chan struct{} // closed by Close; observed by every sweeper
	wg     sync.WaitGroup
	closed atomic.Bool

	opt Options
}

// New constructs a cache with the provided Options and starts one sweeper
// goroutine per shard. It fails only on an invalid shard count; that is the
// cache's single construction-time failure class, surfaced synchronously.
func New(opt Options) (Cache, error) {
	if opt.Shards <= 0 {
		return nil, ErrNoShards
	}
	if opt.SweepInterval <= 0 {
		opt.SweepInterval = DefaultSweepInterval
	}
	if opt.Metrics == nil {
		opt.Metrics = NoopMetrics{}
	}
	if opt.Logger == nil {
		opt.Logger = zap.NewNop()
	}

	c := &cache{
		shards: make([]*shard, opt.Shards),
		done:   make(chan struct{}),
		opt:    opt,
	}
	for i := range c.shards {
		c.shards[i] = newShard(i, opt)
	}

	c.wg.Add(len(c.shards))
	for _, s := range c.shards {
		go c.sweepLoop(s)
	}
	return c, nil
}

// Set inserts or replaces key with value. ttl <= 0 means never expires.
func (c *cache) Set(key, value string, ttl time.Duration) {
	if c.closed.Load() {
		return
	}
	c.shardFor(key).set(key, value, c.deadline(ttl))
}

// Get returns the value for key and a presence flag. Expired entries are
// invisible regardless of whether a sweep has reclaimed them yet.
func (c *cache) Get(key string) (string, bool) {
	if c.closed.Load() {
		return "", false
	}
	return c.shardFor(key).get(key, c.now())
}

// Len returns the total number of resident entries across all shards.
func (c *cache) Len() int {
	total := 0
	for _, s := range c.shards {
		total += s.len()
	}
	return total
}

// Stats aggregates per-shard counters into one snapshot.
func (c *cache) Stats() Stats {
	var st Stats
	for _, s := range c.shards {
		st.Hits += s.hits.Load()
		st.Misses += s.misses.Load()
		st.Evictions += s.evicts.Load()
	}
	return st
}

// DegradedShards lists shards whose sweeper terminated after a panic.
func (c *cache) DegradedShards() []int {
	var out []int
	for _, s := range c.shards {
		if s.degraded.Load() {
			out = append(out, s.id)
		}
	}
	return out
}

// Close stops the sweepers and marks the cache closed. Subsequent operations
// are ignored. Safe to call multiple times.
func (c *cache) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(c.done)
	c.wg.Wait()
	return nil
}

// ---- helpers ----

// shardFor routes a key to its shard. The hash is a pure function of the key
// bytes, so routing is deterministic for the life of the cache.
func (c *cache) shardFor(key string) *shard {
	return c.shards[util.ShardIndex(util.Fnv64a(key), len(c.shards))]
}

func (c *cache) now() int64 {
	if c.opt.Clock != nil {
		return c.opt.Clock.NowUnixNano()
	}
	return time.Now().UnixNano()
}

// deadline converts a relative TTL into an absolute UnixNano deadline.
// A non-positive ttl returns 0 (never expires).
func (c *cache) deadline(ttl time.Duration) int64 {
	if ttl <= 0 {
		return 0
	}
	return c.now() + int64(ttl)
}
