// Package epoch implements the 8-beat cycle scheduler.
//
// Every unit of work is stamped with a cycle drawn from a single atomic
// counter. The low three bits of the cycle select one of eight ticks; a
// cycle whose tick is zero is a pulse, the commit boundary at which
// receipts are folded and published.
package epoch

import "sync/atomic"

// Beats is the number of ticks per pulse.
const Beats = 8

// tickMask selects the tick from a cycle.
const tickMask = Beats - 1

// Scheduler issues a strictly increasing, gap-free sequence of cycles.
// The zero value is ready to use; the first cycle issued is 0.
// Safe for concurrent use by any number of goroutines.
type Scheduler struct {
	cycle atomic.Uint64
}

// Next claims the next cycle. Each call returns a unique value; across all
// callers the returned cycles form the total order of the engine.
func (s *Scheduler) Next() uint64 {
	return s.cycle.Add(1) - 1
}

// Current returns the next cycle that Next would claim, without claiming it.
func (s *Scheduler) Current() uint64 {
	return s.cycle.Load()
}

// Tick returns the beat of a cycle in [0, 8).
func Tick(cycle uint64) uint64 {
	return cycle & tickMask
}

// Pulse reports whether the cycle sits on a commit boundary (tick zero).
// Branchless: tick-1 underflows only for tick 0, driving the sign bit.
func Pulse(cycle uint64) bool {
	tick := cycle & tickMask
	return ((tick-1)>>63)&1 == 1
}
