package kernel

import "github.com/klauspost/cpuid/v2"

// Conservative cache-size defaults for platforms where detection fails.
const (
	defaultL2Bytes  = 256 << 10
	defaultLLCBytes = 8 << 20
)

// CacheGeometry returns the detected per-core L2 size and last-level cache
// size in bytes. Falls back to conservative defaults when the platform does
// not expose cache topology. Admission uses these to bound working sets.
func CacheGeometry() (l2, llc int64) {
	l2 = int64(cpuid.CPU.Cache.L2)
	llc = int64(cpuid.CPU.Cache.L3)
	if l2 <= 0 {
		l2 = defaultL2Bytes
	}
	if llc <= 0 {
		llc = defaultLLCBytes
	}
	if llc < l2 {
		llc = l2
	}
	return l2, llc
}
