//go:build amd64

package kernel

// cycles reads the time-stamp counter. Implemented in tsc_amd64.s.
func cycles() uint64
