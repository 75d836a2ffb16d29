package kernel

// Cycles returns a raw reading of the hardware cycle counter: RDTSC on
// amd64, CNTVCT_EL0 on arm64. On other platforms it returns 0.
//
// Readings are observability-only. They are not serializing, may differ
// in frequency across platforms, and must never gate correctness.
func Cycles() uint64 {
	return cycles()
}
