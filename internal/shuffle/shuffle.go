// Package shuffle produces repeatable permutations from a text seed.
//
// The seed is hashed with SHA-256 and the 32 digest bytes drive a
// Fisher-Yates pass from the last index down to 1. For lists longer than 32
// the byte sequence repeats, so the permutation is not uniform. The index
// formula must stay as it is: stored history records carry only the seed, and
// replaying them depends on it.
package shuffle

import "crypto/sha256"

// DigestSize is the number of bytes in a seed digest.
const DigestSize = sha256.Size

// Digest returns the SHA-256 digest of the UTF-8 bytes of seed.
func Digest(seed string) [DigestSize]byte {
	return sha256.Sum256([]byte(seed))
}

// Shuffle returns a permuted copy of items. The input is not modified.
func Shuffle[T any](items []T, seed string) []T {
	return Permute(items, Digest(seed))
}

// Permute applies the digest-driven Fisher-Yates pass to a copy of items.
func Permute[T any](items []T, h [DigestSize]byte) []T {
	result := make([]T, len(items))
	copy(result, items)
	for i := len(result) - 1; i > 0; i-- {
		j := int(h[i%DigestSize]) % (i + 1)
		result[i], result[j] = result[j], result[i]
	}
	return result
}

// Winners returns the first n elements of the seeded permutation.
// n is clamped to [0, len(items)].
func Winners[T any](items []T, seed string, n int) []T {
	shuffled := Shuffle(items, seed)
	if n < 0 {
		n = 0
	}
	if n > len(shuffled) {
		n = len(shuffled)
	}
	return shuffled[:n]
}
