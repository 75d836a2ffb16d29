// Package mem provides memory allocation utilities.
//
// # Aligned Allocation
//
// Provides 64-byte aligned allocation for SIMD operations (AVX-512 friendly).
package mem
