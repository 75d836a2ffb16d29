// Package archive persists pulse receipts and column snapshots to a
// blob store, with a versioned commit ledger on top.
//
// Receipt segments are fixed-layout little-endian records with a CRC32C
// trailer, compressed with zstd. Column snapshots are lz4 frames. Each
// archived pulse is recorded in a Ledger whose conditional commit keeps
// concurrent archivers from clobbering one another.
package archive
