// Package receipt defines the proof-of-execution record emitted for every
// admitted operation and the monoid used to fold records together.
//
// A receipt is produced whether the operation's logical answer is true or
// false; absence of a receipt means the operation was never admitted.
package receipt

import "github.com/hupe1980/reflex8/internal/hash"

// Receipt records the execution of a single operation.
type Receipt struct {
	// CycleID is the cycle that stamped the execution.
	CycleID uint64
	// ShardID identifies the fiber that ran the operation.
	ShardID uint32
	// HookID identifies the registered hook (or ad-hoc query).
	HookID uint32
	// Ticks is the nominal cost charged by the admission model.
	Ticks uint8
	// ActualTicks is the measured cycle-counter delta. Zero when no
	// hardware counter is available. Observability only.
	ActualTicks uint64
	// Lanes is the SIMD width the kernel ran at. Hot kernels always
	// report the full width of 8, independent of how many lanes matched.
	Lanes uint32
	// SpanID is a deterministic trace identifier.
	SpanID uint64
	// AHash is the assertion hash binding operands to the result.
	AHash uint64
}

// Merge combines two receipts: identifiers come from a, tick counts take
// the maximum, lanes add, and span/hash fold by XOR. Merge is associative,
// so receipts may be folded in any grouping.
func Merge(a, b Receipt) Receipt {
	return Receipt{
		CycleID:     a.CycleID,
		ShardID:     a.ShardID,
		HookID:      a.HookID,
		Ticks:       maxU8(a.Ticks, b.Ticks),
		ActualTicks: maxU64(a.ActualTicks, b.ActualTicks),
		Lanes:       a.Lanes + b.Lanes,
		SpanID:      a.SpanID ^ b.SpanID,
		AHash:       a.AHash ^ b.AHash,
	}
}

// Fold merges receipts left to right. Folding nothing yields the zero
// receipt, which is the identity of Merge up to identifiers.
func Fold(rs ...Receipt) Receipt {
	var out Receipt
	if len(rs) == 0 {
		return out
	}
	out = rs[0]
	for _, r := range rs[1:] {
		out = Merge(out, r)
	}
	return out
}

// SpanID derives a deterministic span identifier for an execution.
// The same (cycle, shard, hook, op, operands) always maps to the same id.
func SpanID(cycle uint64, shard, hook uint32, op uint64, s, p, o, k uint64) uint64 {
	return hash.FNV1a64(cycle, uint64(shard)<<32|uint64(hook), op, s, p, o, k)
}

func maxU8(a, b uint8) uint8 {
	if a > b {
		return a
	}
	return b
}

func maxU64(a, b uint64) uint64 {
	if a > b {
		return a
	}
	return b
}
