// Package mem provides memory allocation utilities.
package mem

import (
	"unsafe"
)

// Alignment is the byte alignment required for AVX-512 (64 bytes).
const Alignment = 64

// AllocAligned allocates a byte slice of the given size with 64-byte alignment.
// The returned slice is guaranteed to start at a memory address divisible by 64.
//
// Note: This function allocates slightly more memory than requested to ensure alignment.
// The underlying array is kept alive by the returned slice.
func AllocAligned(size int) []byte {
	if size <= 0 {
		return nil
	}

	// Allocate size + alignment to ensure we can find an aligned offset
	// We need enough space to shift the start pointer up to Alignment-1 bytes
	totalSize := size + Alignment
	buf := make([]byte, totalSize)

	// Calculate the offset to the first aligned byte
	ptr := unsafe.Pointer(&buf[0]) //nolint:gosec // unsafe is required for memory alignment
	addr := uintptr(ptr)
	offset := (Alignment - (addr & (Alignment - 1))) & (Alignment - 1)

	// Return the slice starting at the aligned offset
	return buf[offset : offset+uintptr(size)]
}

// AllocAlignedUint64 allocates a uint64 slice of the given size with 64-byte alignment.
// The returned slice is guaranteed to start at a memory address divisible by 64,
// which keeps an 8-lane window inside a single cache line.
func AllocAlignedUint64(size int) []uint64 {
	if size <= 0 {
		return nil
	}

	byteSize := size * 8
	byteSlice := AllocAligned(byteSize)

	// Convert []byte to []uint64
	// This is safe because AllocAligned guarantees 64-byte alignment,
	// which is also 8-byte aligned (required for uint64).
	ptr := unsafe.Pointer(&byteSlice[0])      //nolint:gosec // unsafe is required for memory alignment
	return unsafe.Slice((*uint64)(ptr), size) //nolint:gosec // unsafe is required for memory alignment
}

// IsAligned reports whether the base address of the uint64 slice is 64-byte aligned.
// Empty slices are considered aligned.
func IsAligned(s []uint64) bool {
	if len(s) == 0 {
		return true
	}
	ptr := unsafe.Pointer(&s[0]) //nolint:gosec // unsafe is required for alignment checks
	return uintptr(ptr)&(Alignment-1) == 0
}
