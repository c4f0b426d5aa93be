package cache

import (
	"time"

	"go.uber.org/zap"
)

// sweepLoop runs one shard's sweeper: wake on the interval tick, drain due
// records, go back to sleep. Shutdown is cooperative: the done channel is
// observed at the wait point, and a pass in flight finishes on its own since
// passes are bounded.
//
// Panic policy: a sweeper that panics is terminated and its shard is marked
// degraded. The shard's lock is released by the deferred unlock in sweep, so
// reads and writes keep working; expired entries in that shard simply stop
// being reclaimed. The condition is logged and counted, never silent.
func (c *cache) sweepLoop(s *shard) {
	defer c.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			s.degraded.Store(true)
			c.opt.Metrics.SweeperCrash()
			c.opt.Logger.Error("sweeper terminated by panic; shard keeps serving but no longer reclaims expired entries",
				zap.Int("shard", s.id),
				zap.Any("panic", r),
			)
		}
	}()

	ticker := time.NewTicker(c.opt.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			start := time.Now()
			evicted, requeued := s.sweep(c.now())
			c.opt.Metrics.SweepPass(time.Since(start))
			if evicted > 0 || requeued > 0 {
				c.opt.Logger.Debug("sweep pass",
					zap.Int("shard", s.id),
					zap.Int("evicted", evicted),
					zap.Int("requeued", requeued),
				)
			}
		}
	}
}
