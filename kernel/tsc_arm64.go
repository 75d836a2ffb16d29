//go:build arm64

package kernel

// cycles reads the virtual counter-timer. Implemented in tsc_arm64.s.
func cycles() uint64
