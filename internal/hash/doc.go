// Package hash provides fast hashing utilities for receipts and archive segments.
//
// # CRC32-Castagnoli (CRC32C)
//
// Archive segment trailers use CRC32-Castagnoli (CRC32C):
//
//   - Hardware acceleration on x86 (SSE4.2) and ARM (CRC extension)
//   - 10-20 GB/s throughput on modern CPUs
//   - Industry standard (iSCSI, Btrfs, RocksDB, LevelDB)
//
// # FNV-1a over words
//
// Span identifiers are derived with a zero-allocation FNV-1a fold over
// uint64 words, so the same operands always produce the same span id.
package hash
