// Package util contains internal helpers (hashing, sharding, padding).
//revive:disable:var-naming  // allow 'util' as an internal helpers package name
package util

const (
	fnvOffset64 = 1469598103934665603
	fnvPrime64  = 1099511628211
)

// Fnv64a hashes a key string using 64-bit FNV-1a.
// The hash is order-sensitive over the whole key and fast enough for routing;
// it makes no collision-resistance promises and needs none (shard selection
// only, no cross-process compatibility).
func Fnv64a(key string) uint64 {
	h := uint64(fnvOffset64)
	for i := 0; i < len(key); i++ {
		h ^= uint64(key[i])
		h *= fnvPrime64
	}
	return h
}
