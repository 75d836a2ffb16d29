// Package ring implements the dual ring transport: a delta ring carrying
// incoming triples toward the fibers and an assertion ring carrying
// receipts (and constructed triples) away from them.
//
// Both rings are structure-of-arrays over 64-byte aligned uint64 columns,
// split into eight segments, one per tick. Each segment has its own
// cache-line padded write and read cursors, so producers and consumers on
// different ticks never share a cache line. Within a segment, enqueue
// reserves slots by compare-and-swap against free space and fails with
// ErrFull rather than overwrite unread data; dequeue is single-consumer.
package ring
