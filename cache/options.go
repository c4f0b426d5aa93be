package cache

import (
	"time"

	"go.uber.org/zap"
)

// DefaultSweepInterval is used when Options.SweepInterval is not positive.
const DefaultSweepInterval = time.Minute

// Metrics exposes cache-level observability hooks.
// A NoopMetrics implementation is provided and used by default.
type Metrics interface {
	Hit()
	Miss()
	// Evict is called once per expired entry the sweeper reclaims.
	Evict()
	// Requeue is called when a stale heap record is replaced by the fresher
	// entry a later Set produced.
	Requeue()
	// SweepPass observes the duration of one completed sweep pass.
	SweepPass(d time.Duration)
	// SweeperCrash is called when a shard's sweeper terminates after a panic.
	SweeperCrash()
}

// Clock provides time in UnixNano; useful for deterministic tests.
type Clock interface{ NowUnixNano() int64 }

// Options configures the cache.
//
// Shards must be >= 1; every other field has a safe zero value:
//   - SweepInterval <= 0 => DefaultSweepInterval
//   - nil Metrics        => NoopMetrics
//   - nil Logger         => zap.NewNop()
//   - nil Clock          => time.Now()
type Options struct {
	// Shards is the number of independent cache partitions. It is fixed at
	// construction; New fails if it is not at least 1. Powers of two get a
	// slightly cheaper routing path but any count works.
	Shards int

	// SweepInterval is how often each shard's sweeper wakes to reclaim
	// expired entries.
	SweepInterval time.Duration

	// Clock overrides the time source (tests). Nil => time.Now().
	Clock Clock

	// Metrics receives observability signals. Nil => NoopMetrics.
	Metrics Metrics

	// Logger is used by the sweepers. Nil => no-op logger.
	Logger *zap.Logger

	// OnEvict is called for every entry the sweeper reclaims, under the
	// shard lock; keep callbacks lightweight.
	OnEvict func(key, value string)
}
