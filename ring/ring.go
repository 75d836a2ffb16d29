package ring

import (
	"errors"
	"sync/atomic"
)

// Slot flags. A slot is VALID once its payload is fully written and
// PARKED when its work was deferred to the warm tier.
const (
	FlagParked uint32 = 1 << 0
	FlagValid  uint32 = 1 << 1
)

const (
	segments    = 8
	minCapacity = 64
)

var (
	// ErrFull is returned when a tick segment has no free slots.
	// Unread data is never overwritten.
	ErrFull = errors.New("ring segment full")

	// ErrCapacity is returned for capacities that are not a power of
	// two of at least 64.
	ErrCapacity = errors.New("ring capacity must be a power of two >= 64")

	// ErrBadTick is returned for ticks outside [0, 8).
	ErrBadTick = errors.New("tick out of range")
)

// cursors holds one segment's write and read positions, each alone on a
// cache line.
type cursors struct {
	write atomic.Uint64
	_     [7]uint64
	read  atomic.Uint64
	_     [7]uint64
}

// geometry is the segment math shared by both rings.
type geometry struct {
	capacity uint64
	segSize  uint64
	segMask  uint64
	segs     [segments]cursors
}

func (g *geometry) init(capacity int) error {
	c := uint64(capacity)
	if c < minCapacity || c&(c-1) != 0 {
		return ErrCapacity
	}
	g.capacity = c
	g.segSize = c >> 3
	g.segMask = g.segSize - 1
	return nil
}

// slot maps a segment-relative sequence number to an absolute array index.
func (g *geometry) slot(tick, seq uint64) uint64 {
	return tick*g.segSize + (seq & g.segMask)
}

// reserve claims n slots in the tick's segment. Returns the starting
// sequence number, or ErrFull when fewer than n slots are free.
func (g *geometry) reserve(tick, n uint64) (uint64, error) {
	seg := &g.segs[tick]
	for {
		w := seg.write.Load()
		r := seg.read.Load()
		if w-r+n > g.segSize {
			return 0, ErrFull
		}
		if seg.write.CompareAndSwap(w, w+n) {
			return w, nil
		}
	}
}

// SegmentSize returns the per-tick slot count.
func (g *geometry) SegmentSize() int {
	return int(g.segSize)
}

// Pending returns the number of unread slots in the tick's segment.
func (g *geometry) Pending(tick uint64) int {
	if tick >= segments {
		return 0
	}
	seg := &g.segs[tick]
	return int(seg.write.Load() - seg.read.Load())
}
