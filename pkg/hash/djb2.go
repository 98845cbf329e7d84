// Package hash provides the string hashing used by the Hashline store.
//
// The store uses djb2, Dan Bernstein's multiplicative string hash. It is
// deterministic, cheap, and good enough for bucket selection in a chained
// hash table; it makes no uniqueness guarantees, and collisions are always
// resolved by chaining in the table itself.
//
// Example usage:
//
//	h := hash.Sum64("user:123")
//	bucket := h % uint64(capacity)
//
// The hash of a key never changes, so callers may cache it alongside the
// key and reuse it across table resizes.
package hash

// djb2 seed and multiplier.
const (
	seed       uint64 = 5381
	multiplier uint64 = 33
)

// Sum64 computes the djb2 hash of key: starting from 5381, each byte b
// updates the hash as h = h*33 + b. The raw key bytes are hashed; no
// normalization is applied.
//
// Example:
//
//	if hash.Sum64("a") == hash.Sum64("a") {
//		// always true: the hash is deterministic
//	}
//
// Parameters:
//   - key: The key to hash
//
// Returns:
//   - The 64-bit djb2 hash of the key bytes
func Sum64(key string) uint64 {
	h := seed
	for i := 0; i < len(key); i++ {
		h = h*multiplier + uint64(key[i])
	}
	return h
}
