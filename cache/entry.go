package cache

// entry is an immutable key/value snapshot owned by a shard.
//
// A Set on an existing key replaces the mapped *entry wholesale rather than
// mutating fields in place, so references parked in the expiry heap remain
// valid snapshots of old data. That immutability is what lets Get publish
// e.val after dropping the shard lock and lets the sweeper compare a popped
// record against the current mapping without copying.
type entry struct {
	key string
	val string

	// Absolute expiration deadline in UnixNano.
	// Zero means "never expires".
	exp int64
}

// expiredAt reports whether the entry's deadline has passed at the given
// instant. The deadline itself counts as expired ("now >= t").
func (e *entry) expiredAt(now int64) bool {
	return e.exp != 0 && now >= e.exp
}
