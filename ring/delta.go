package ring

import (
	"sync/atomic"

	"github.com/hupe1980/reflex8/internal/mem"
)

// Delta is one incoming triple stamped with the cycle that admitted it.
type Delta struct {
	S, P, O uint64
	Cycle   uint64
}

// DeltaRing is the inbound ring. Structure-of-arrays: one aligned column
// per field plus a flag word per slot.
type DeltaRing struct {
	geometry

	s, p, o []uint64
	cycle   []uint64
	flags   []atomic.Uint32
}

// NewDeltaRing allocates a delta ring. Capacity must be a power of two
// of at least 64; each of the eight tick segments gets capacity/8 slots.
func NewDeltaRing(capacity int) (*DeltaRing, error) {
	r := &DeltaRing{}
	if err := r.geometry.init(capacity); err != nil {
		return nil, err
	}
	r.s = mem.AllocAlignedUint64(capacity)
	r.p = mem.AllocAlignedUint64(capacity)
	r.o = mem.AllocAlignedUint64(capacity)
	r.cycle = mem.AllocAlignedUint64(capacity)
	r.flags = make([]atomic.Uint32, capacity)
	return r, nil
}

// Enqueue appends deltas to the tick's segment. All-or-nothing: when the
// segment cannot hold len(ds) more slots, nothing is written and ErrFull
// is returned for the caller to apply backpressure.
func (r *DeltaRing) Enqueue(tick uint64, ds []Delta) error {
	if tick >= segments {
		return ErrBadTick
	}
	if len(ds) == 0 {
		return nil
	}
	start, err := r.reserve(tick, uint64(len(ds)))
	if err != nil {
		return err
	}
	for i, d := range ds {
		idx := r.slot(tick, start+uint64(i))
		r.s[idx] = d.S
		r.p[idx] = d.P
		r.o[idx] = d.O
		r.cycle[idx] = d.Cycle
		// Publish last: consumers stop at the first slot without VALID.
		r.flags[idx].Store(FlagValid)
	}
	return nil
}

// Dequeue copies up to len(dst) deltas out of the tick's segment, clearing
// VALID as it goes. Stops early at a reserved slot whose payload is not
// published yet. Returns the count and the sequence number of the first
// slot read (for parking). Single consumer per segment.
func (r *DeltaRing) Dequeue(tick uint64, dst []Delta) (int, uint64, error) {
	if tick >= segments {
		return 0, 0, ErrBadTick
	}
	seg := &r.segs[tick]
	rd := seg.read.Load()
	avail := seg.write.Load() - rd
	n := uint64(len(dst))
	if avail < n {
		n = avail
	}

	var taken uint64
	for ; taken < n; taken++ {
		idx := r.slot(tick, rd+taken)
		f := r.flags[idx].Load()
		if f&FlagValid == 0 {
			break
		}
		dst[taken] = Delta{S: r.s[idx], P: r.p[idx], O: r.o[idx], Cycle: r.cycle[idx]}
		r.flags[idx].And(^FlagValid)
	}
	seg.read.Store(rd + taken)
	return int(taken), rd, nil
}

// Park marks the slot holding sequence number seq as deferred. One atomic
// OR; the payload is untouched. The mark is bookkeeping for the warm tier
// and stays meaningful until the producer laps the segment.
func (r *DeltaRing) Park(tick, seq uint64) error {
	if tick >= segments {
		return ErrBadTick
	}
	r.flags[r.slot(tick, seq)].Or(FlagParked)
	return nil
}

// Parked reports whether the slot holding seq carries the PARKED mark.
func (r *DeltaRing) Parked(tick, seq uint64) bool {
	if tick >= segments {
		return false
	}
	return r.flags[r.slot(tick, seq)].Load()&FlagParked != 0
}

// Unpark clears the PARKED mark after the warm tier finished the work.
func (r *DeltaRing) Unpark(tick, seq uint64) {
	if tick >= segments {
		return
	}
	r.flags[r.slot(tick, seq)].And(^FlagParked)
}
