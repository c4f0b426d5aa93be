package cache

import "time"

// Cache is a sharded, TTL-aware in-memory key/value store.
// All methods are safe for concurrent use by multiple goroutines.
type Cache interface {
	// Set inserts or replaces the value for key. A positive ttl makes the
	// entry invisible to Get once the deadline passes; ttl <= 0 means the
	// entry never expires. Set cannot fail.
	Set(key, value string, ttl time.Duration)

	// Get returns the value for key and a presence flag. An entry whose
	// deadline has passed is reported as absent even if the sweeper has not
	// reclaimed it yet. Get never mutates cache state.
	Get(key string) (string, bool)

	// Len returns the number of resident entries across all shards,
	// including expired entries the sweeper has not reclaimed yet.
	Len() int

	// Stats returns cumulative hit/miss/eviction counters.
	Stats() Stats

	// DegradedShards returns the indices of shards whose sweeper terminated
	// after a panic. Such shards still serve reads and writes but no longer
	// reclaim expired entries.
	DegradedShards() []int

	// Close stops the sweepers and marks the cache closed; subsequent
	// operations are ignored. Close is idempotent.
	Close() error
}

// Stats is a point-in-time snapshot of the cache's cumulative counters.
type Stats struct {
	Hits      int64
	Misses    int64
	Evictions uint64
}
