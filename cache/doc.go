// Package cache provides a concurrent, TTL-aware, sharded in-memory
// key/value store designed to back a network-facing key-value server.
//
// Design
//
//   - Concurrency: the keyspace is split into shards, each protected by its
//     own RWMutex. Keys are routed with a fast FNV-1a hash, so unrelated keys
//     rarely contend. Shards are fully independent; no lock or entry is ever
//     shared across shards.
//
//   - Storage: each shard keeps a map[string]*entry for lookups and a
//     deadline-ordered min-heap of entry references. The map is the single
//     source of truth for visibility; the heap is only a schedule of entries
//     the sweeper should re-examine. The heap may hold records superseded by
//     a later Set; that staleness is expected and reconciled lazily at
//     sweep time, never on the Get/Set hot path.
//
//   - TTL: entries carry an absolute UnixNano deadline (0 = never expires).
//     Get treats a past deadline as a miss but does not remove the entry;
//     reclamation is the sweeper's exclusive job.
//
//   - Sweeping: one background goroutine per shard wakes on a fixed interval,
//     pops due heap records, and revalidates each against the map before
//     evicting. A record whose key was refreshed in the meantime is replaced
//     by the fresher entry instead of being evicted. A sweeper that panics is
//     terminated and the shard is marked degraded: reads and writes keep
//     working, but expired entries in that shard are no longer reclaimed.
//
//   - Metrics: Options.Metrics receives Hit/Miss/Evict/Requeue/SweepPass
//     signals. By default NoopMetrics is used; plug the Prometheus adapter
//     from metrics/prom to export them.
//
//   - Callbacks: Options.OnEvict(k, v) is called for every entry the sweeper
//     reclaims, under the shard lock; keep callbacks lightweight.
//
// Basic usage
//
//	c, err := cache.New(cache.Options{Shards: 16})
//	if err != nil {
//	    // only fails on an invalid shard count
//	}
//	defer c.Close()
//
//	c.Set("a", "1", 0)                  // never expires
//	c.Set("b", "2", 2*time.Second)      // expires in 2s
//	if v, ok := c.Get("a"); ok {
//	    _ = v
//	}
//
// Thread-safety & complexity
//
// All methods on Cache are safe for concurrent use. Get and Set hold a shard
// lock for O(1) map work. A sweep pass holds the lock for the duration of its
// drain, proportional to the number of due-or-stale records that tick.
package cache
