package hash

const (
	fnvOffset64 = 14695981039346656037
	fnvPrime64  = 1099511628211
)

// FNV1a64 folds the given words into a 64-bit FNV-1a hash.
// Each word is consumed byte-wise, little-endian, without allocating.
// Deterministic across runs and platforms.
func FNV1a64(words ...uint64) uint64 {
	h := uint64(fnvOffset64)
	for _, w := range words {
		for i := 0; i < 8; i++ {
			h ^= w & 0xFF
			h *= fnvPrime64
			w >>= 8
		}
	}
	return h
}
