package ring

import (
	"sync/atomic"

	"github.com/hupe1980/reflex8/internal/mem"
	"github.com/hupe1980/reflex8/receipt"
)

// Assertion is one outbound record: the receipt of an execution plus, for
// constructions, the emitted triple. Pure receipts leave S, P, O zero.
type Assertion struct {
	S, P, O uint64
	Receipt receipt.Receipt
}

// AssertionRing is the outbound ring. Structure-of-arrays like the delta
// ring, with one aligned column per receipt field.
type AssertionRing struct {
	geometry

	s, p, o []uint64
	cycle   []uint64
	ident   []uint64 // shard<<32 | hook
	ticks   []uint64 // nominal tick cost
	actual  []uint64
	lanes   []uint64
	span    []uint64
	ahash   []uint64
	flags   []atomic.Uint32
}

// NewAssertionRing allocates an assertion ring. Capacity rules match the
// delta ring.
func NewAssertionRing(capacity int) (*AssertionRing, error) {
	r := &AssertionRing{}
	if err := r.geometry.init(capacity); err != nil {
		return nil, err
	}
	r.s = mem.AllocAlignedUint64(capacity)
	r.p = mem.AllocAlignedUint64(capacity)
	r.o = mem.AllocAlignedUint64(capacity)
	r.cycle = mem.AllocAlignedUint64(capacity)
	r.ident = mem.AllocAlignedUint64(capacity)
	r.ticks = mem.AllocAlignedUint64(capacity)
	r.actual = mem.AllocAlignedUint64(capacity)
	r.lanes = mem.AllocAlignedUint64(capacity)
	r.span = mem.AllocAlignedUint64(capacity)
	r.ahash = mem.AllocAlignedUint64(capacity)
	r.flags = make([]atomic.Uint32, capacity)
	return r, nil
}

// Enqueue appends assertions to the tick's segment. All-or-nothing, like
// the delta ring: ErrFull leaves the segment untouched.
func (r *AssertionRing) Enqueue(tick uint64, as []Assertion) error {
	if tick >= segments {
		return ErrBadTick
	}
	if len(as) == 0 {
		return nil
	}
	start, err := r.reserve(tick, uint64(len(as)))
	if err != nil {
		return err
	}
	for i, a := range as {
		idx := r.slot(tick, start+uint64(i))
		r.s[idx] = a.S
		r.p[idx] = a.P
		r.o[idx] = a.O
		r.cycle[idx] = a.Receipt.CycleID
		r.ident[idx] = uint64(a.Receipt.ShardID)<<32 | uint64(a.Receipt.HookID)
		r.ticks[idx] = uint64(a.Receipt.Ticks)
		r.actual[idx] = a.Receipt.ActualTicks
		r.lanes[idx] = uint64(a.Receipt.Lanes)
		r.span[idx] = a.Receipt.SpanID
		r.ahash[idx] = a.Receipt.AHash
		r.flags[idx].Store(FlagValid)
	}
	return nil
}

// Dequeue copies up to len(dst) assertions out of the tick's segment,
// clearing VALID. Single consumer per segment.
func (r *AssertionRing) Dequeue(tick uint64, dst []Assertion) (int, error) {
	if tick >= segments {
		return 0, ErrBadTick
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
		if r.flags[idx].Load()&FlagValid == 0 {
			break
		}
		dst[taken] = Assertion{
			S: r.s[idx],
			P: r.p[idx],
			O: r.o[idx],
			Receipt: receipt.Receipt{
				CycleID:     r.cycle[idx],
				ShardID:     uint32(r.ident[idx] >> 32),
				HookID:      uint32(r.ident[idx]),
				Ticks:       uint8(r.ticks[idx]),
				ActualTicks: r.actual[idx],
				Lanes:       uint32(r.lanes[idx]),
				SpanID:      r.span[idx],
				AHash:       r.ahash[idx],
			},
		}
		r.flags[idx].And(^FlagValid)
	}
	seg.read.Store(rd + taken)
	return int(taken), nil
}
