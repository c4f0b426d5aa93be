package cache

import "container/heap"

// expiryHeap is a min-heap of entry references ordered by deadline. It is a
// schedule of entries the sweeper should re-examine, not an authoritative
// structure: records may be superseded by a later Set and are reconciled
// against the shard map at sweep time.
//
// Never-expiring entries (exp == 0) order after every real deadline, so they
// are never popped. The sweep loop relies on that: the moment it peeks a
// never-expiring record it can stop the pass, because nothing behind it in
// the heap can be due either. The comparator and that stop condition are a
// coupled pair; changing one without the other silently breaks sweeping.
type expiryHeap []*entry

func (h expiryHeap) Len() int { return len(h) }

func (h expiryHeap) Less(i, j int) bool {
	a, b := h[i], h[j]
	if a.exp == 0 {
		return false // never-due sinks behind any real deadline
	}
	if b.exp == 0 {
		return true
	}
	return a.exp < b.exp
}

func (h expiryHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *expiryHeap) Push(x any) { *h = append(*h, x.(*entry)) }

func (h *expiryHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil // release the reference for GC
	*h = old[:n-1]
	return e
}

// peek returns the earliest-deadline record without removing it.
// Caller must have checked Len() > 0.
func (h expiryHeap) peek() *entry { return h[0] }

// push and popMin wrap container/heap so callers don't mix up the
// heap-maintaining operations with the raw slice methods above.
func (h *expiryHeap) push(e *entry) { heap.Push(h, e) }
func (h *expiryHeap) popMin() *entry { return heap.Pop(h).(*entry) }
