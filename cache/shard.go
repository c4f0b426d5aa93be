package cache

import (
	"sync"
	"sync/atomic"

	"github.com/sweepkv/sweepkv/internal/util"
)

// shard is an independent partition of the keyspace with its own lock, map,
// and expiry heap. The map always reflects the most recent Set for a key;
// the heap may lag behind and is reconciled lazily by sweep.
type shard struct {
	id int

	// ---- guarded by mu ----
	mu    sync.RWMutex
	items map[string]*entry
	pq    expiryHeap

	opt Options

	// degraded is set when this shard's sweeper terminated after a panic.
	degraded atomic.Bool

	// ---- hot counters (separate cache lines to avoid false sharing) ----
	_      util.CacheLinePad
	hits   util.PaddedAtomicInt64
	misses util.PaddedAtomicInt64
	evicts util.PaddedAtomicUint64
}

func newShard(id int, opt Options) *shard {
	return &shard{
		id:    id,
		items: make(map[string]*entry),
		opt:   opt,
	}
}

// set inserts or replaces the entry for key. deadline is an absolute
// UnixNano instant (0 = never expires).
//
// The heap receives a record only when the key is not currently mapped:
// a key that is already tracked does not need a duplicate record, and a
// later Set of the same key is resolved at sweep time against the map
// rather than by mutating the heap in place.
func (s *shard) set(key, value string, deadline int64) {
	e := &entry{key: key, val: value, exp: deadline}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, tracked := s.items[key]; !tracked {
		s.pq.push(e)
	}
	s.items[key] = e
}

// get returns the mapped value if present and not past its deadline.
// Expired-but-unswept entries are invisible but stay resident; removal is
// the sweeper's exclusive job, so get never takes the write lock.
func (s *shard) get(key string, now int64) (string, bool) {
	s.mu.RLock()
	e, ok := s.items[key]
	s.mu.RUnlock()

	// Entries are immutable, so e can be read after the lock is dropped.
	if !ok || e.expiredAt(now) {
		s.misses.Add(1)
		s.opt.Metrics.Miss()
		return "", false
	}
	s.hits.Add(1)
	s.opt.Metrics.Hit()
	return e.val, true
}

// sweep drains due records from the expiry heap, revalidating each against
// the map before evicting. Returns the number of entries evicted and the
// number of stale records replaced by fresher ones.
func (s *shard) sweep(now int64) (evicted, requeued int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for s.pq.Len() > 0 {
		top := s.pq.peek()
		if top.exp == 0 {
			// Only never-expiring records remain; they order after every
			// real deadline, so nothing behind this one can be due.
			break
		}
		if top.exp > now {
			break // earliest deadline not due yet; neither is anything after it
		}

		rec := s.pq.popMin()
		cur, ok := s.items[rec.key]
		if !ok {
			// A prior pass already reclaimed this key; stale record.
			continue
		}
		if cur.expiredAt(now) {
			delete(s.items, rec.key)
			evicted++
			s.evicts.Add(1)
			s.opt.Metrics.Evict()
			if cb := s.opt.OnEvict; cb != nil {
				cb(cur.key, cur.val)
			}
			continue
		}
		// The key was Set again after rec was queued: the mapped entry is
		// fresher and not yet due. Track it so a future pass re-examines it;
		// the map stays untouched.
		s.pq.push(cur)
		requeued++
		s.opt.Metrics.Requeue()
	}
	return evicted, requeued
}

// len returns the number of resident entries, expired-but-unswept included.
func (s *shard) len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// heapLen reports how many records the expiry heap currently tracks.
func (s *shard) heapLen() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pq.Len()
}
