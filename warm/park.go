package warm

import (
	"sync"

	"github.com/bits-and-blooms/bitset"
)

// Tracker mirrors the PARKED marks of the delta ring as per-segment
// bitsets, giving the warm tier an O(1) answer to "is anything parked"
// without touching the ring's cache lines.
type Tracker struct {
	mu      sync.Mutex
	segSize uint
	segs    [8]*bitset.BitSet
}

// NewTracker sizes the tracker for rings with the given per-tick segment
// slot count.
func NewTracker(segSize uint) *Tracker {
	t := &Tracker{segSize: segSize}
	for i := range t.segs {
		t.segs[i] = bitset.New(segSize)
	}
	return t
}

// Mark records a parked slot.
func (t *Tracker) Mark(tick, seq uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.segs[tick&7].Set(uint(seq) % t.segSize)
}

// Clear removes a parked slot after the warm tier finished its work.
func (t *Tracker) Clear(tick, seq uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.segs[tick&7].Clear(uint(seq) % t.segSize)
}

// Pending returns the number of parked slots in the tick's segment.
func (t *Tracker) Pending(tick uint64) uint {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.segs[tick&7].Count()
}

// Any reports whether any segment has parked slots.
func (t *Tracker) Any() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, s := range t.segs {
		if s.Any() {
			return true
		}
	}
	return false
}
