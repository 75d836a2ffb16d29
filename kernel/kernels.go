package kernel

import "math/bits"

// Args carries the operands of a single dispatch.
type Args struct {
	S, P, O uint64 // query operands
	K       uint64 // count threshold or expected datatype id
	Pred    uint64 // predicate of the run under evaluation
	Len     uint64 // rows in the window, at most 8
}

// Result is the outcome of one kernel invocation.
type Result struct {
	Value uint64 // boolean outcome, 0 or 1
	Count uint64 // number of matching lanes
	Mask  uint64 // matching-lane bitmask, bit i = lane i
}

// Func evaluates one 8-lane window. The column views must hold at least
// 8 elements each; lanes beyond Args.Len are cancelled by the length mask.
type Func func(s, p, o []uint64, a *Args) Result

// b2u converts a bool to 0 or 1 without branching.
// The compiler typically lowers this to a conditional move.
func b2u(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}

// lenMask cancels lanes beyond n. n must be at most 8.
func lenMask(n uint64) uint64 {
	return ((1 << n) - 1) & 0xFF
}

// gate returns all-ones when p matches pred, zero otherwise.
// A run whose predicate does not match is cancelled wholesale.
func gate(p, pred uint64) uint64 {
	return -b2u(p == pred)
}

// maskSPImpl is the implementation function pointer, bound by
// initCapabilities once the active ISA is known.
var maskSPImpl = maskSPUnrolled

// selectMaskSP maps an ISA to its window-mask implementation. The
// unrolled body is the auto-vectorization target for every SIMD ISA;
// Generic keeps the scalar loop.
func selectMaskSP(isa ISA) func(s, p []uint64, qs, qp uint64) uint64 {
	if isa == Generic {
		return maskSPGeneric
	}
	return maskSPUnrolled
}

// maskSP returns the bitmask of lanes where S[i] == qs and P[i] == qp.
func maskSP(s, p []uint64, qs, qp uint64) uint64 {
	return maskSPImpl(s, p, qs, qp)
}

// maskSPUnrolled is auto-vectorizable straight-line code over 8 lanes.
func maskSPUnrolled(s, p []uint64, qs, qp uint64) uint64 {
	s = s[:8]
	p = p[:8]
	return b2u(s[0] == qs && p[0] == qp) |
		b2u(s[1] == qs && p[1] == qp)<<1 |
		b2u(s[2] == qs && p[2] == qp)<<2 |
		b2u(s[3] == qs && p[3] == qp)<<3 |
		b2u(s[4] == qs && p[4] == qp)<<4 |
		b2u(s[5] == qs && p[5] == qp)<<5 |
		b2u(s[6] == qs && p[6] == qp)<<6 |
		b2u(s[7] == qs && p[7] == qp)<<7
}

// maskSPGeneric is the scalar fallback used when the active ISA is
// Generic; it also anchors differential tests of the unrolled path.
func maskSPGeneric(s, p []uint64, qs, qp uint64) uint64 {
	var m uint64
	for i := 0; i < 8; i++ {
		m |= b2u(s[i] == qs && p[i] == qp) << i
	}
	return m
}

// maskSPO returns the bitmask of lanes matching the full triple.
func maskSPO(s, p, o []uint64, qs, qp, qo uint64) uint64 {
	s = s[:8]
	p = p[:8]
	o = o[:8]
	return b2u(s[0] == qs && p[0] == qp && o[0] == qo) |
		b2u(s[1] == qs && p[1] == qp && o[1] == qo)<<1 |
		b2u(s[2] == qs && p[2] == qp && o[2] == qo)<<2 |
		b2u(s[3] == qs && p[3] == qp && o[3] == qo)<<3 |
		b2u(s[4] == qs && p[4] == qp && o[4] == qo)<<4 |
		b2u(s[5] == qs && p[5] == qp && o[5] == qo)<<5 |
		b2u(s[6] == qs && p[6] == qp && o[6] == qo)<<6 |
		b2u(s[7] == qs && p[7] == qp && o[7] == qo)<<7
}

// maskOP returns the bitmask of lanes where O[i] == qo and P[i] == qp.
func maskOP(p, o []uint64, qo, qp uint64) uint64 {
	p = p[:8]
	o = o[:8]
	return b2u(o[0] == qo && p[0] == qp) |
		b2u(o[1] == qo && p[1] == qp)<<1 |
		b2u(o[2] == qo && p[2] == qp)<<2 |
		b2u(o[3] == qo && p[3] == qp)<<3 |
		b2u(o[4] == qo && p[4] == qp)<<4 |
		b2u(o[5] == qo && p[5] == qp)<<5 |
		b2u(o[6] == qo && p[6] == qp)<<6 |
		b2u(o[7] == qo && p[7] == qp)<<7
}

func askSP(s, p, o []uint64, a *Args) Result {
	m := maskSP(s, p, a.S, a.P) & lenMask(a.Len) & gate(a.P, a.Pred)
	return Result{Value: b2u(m != 0), Count: uint64(bits.OnesCount64(m)), Mask: m}
}

func askSPO(s, p, o []uint64, a *Args) Result {
	m := maskSPO(s, p, o, a.S, a.P, a.O) & lenMask(a.Len) & gate(a.P, a.Pred)
	return Result{Value: b2u(m != 0), Count: uint64(bits.OnesCount64(m)), Mask: m}
}

func askOP(s, p, o []uint64, a *Args) Result {
	m := maskOP(p, o, a.O, a.P) & lenMask(a.Len) & gate(a.P, a.Pred)
	return Result{Value: b2u(m != 0), Count: uint64(bits.OnesCount64(m)), Mask: m}
}

func countSPGE(s, p, o []uint64, a *Args) Result {
	m := maskSP(s, p, a.S, a.P) & lenMask(a.Len) & gate(a.P, a.Pred)
	cnt := uint64(bits.OnesCount64(m))
	return Result{Value: b2u(cnt >= a.K), Count: cnt, Mask: m}
}

func countSPLE(s, p, o []uint64, a *Args) Result {
	m := maskSP(s, p, a.S, a.P) & lenMask(a.Len) & gate(a.P, a.Pred)
	cnt := uint64(bits.OnesCount64(m))
	return Result{Value: b2u(cnt <= a.K), Count: cnt, Mask: m}
}

func countSPEQ(s, p, o []uint64, a *Args) Result {
	m := maskSP(s, p, a.S, a.P) & lenMask(a.Len) & gate(a.P, a.Pred)
	cnt := uint64(bits.OnesCount64(m))
	return Result{Value: b2u(cnt == a.K), Count: cnt, Mask: m}
}

// uniqueSP is COUNT_SP_EQ pinned to k=1: exactly one matching row.
func uniqueSP(s, p, o []uint64, a *Args) Result {
	m := maskSP(s, p, a.S, a.P) & lenMask(a.Len) & gate(a.P, a.Pred)
	cnt := uint64(bits.OnesCount64(m))
	return Result{Value: b2u(cnt == 1), Count: cnt, Mask: m}
}

func countOPGE(s, p, o []uint64, a *Args) Result {
	m := maskOP(p, o, a.O, a.P) & lenMask(a.Len) & gate(a.P, a.Pred)
	cnt := uint64(bits.OnesCount64(m))
	return Result{Value: b2u(cnt >= a.K), Count: cnt, Mask: m}
}

func countOPLE(s, p, o []uint64, a *Args) Result {
	m := maskOP(p, o, a.O, a.P) & lenMask(a.Len) & gate(a.P, a.Pred)
	cnt := uint64(bits.OnesCount64(m))
	return Result{Value: b2u(cnt <= a.K), Count: cnt, Mask: m}
}

func countOPEQ(s, p, o []uint64, a *Args) Result {
	m := maskOP(p, o, a.O, a.P) & lenMask(a.Len) & gate(a.P, a.Pred)
	cnt := uint64(bits.OnesCount64(m))
	return Result{Value: b2u(cnt == a.K), Count: cnt, Mask: m}
}

// Comparison relation selectors, derived from the op code.
const (
	relEQ = iota
	relGT
	relLT
	relGE
	relLE
)

// compareO evaluates one comparison relation over the objects of lanes
// matching (S, P). All five relation masks are computed unconditionally
// and the requested one is selected by mask, so the kernel's timing does
// not depend on the relation.
func compareO(s, p, o []uint64, a *Args, rel uint64) Result {
	s = s[:8]
	p = p[:8]
	o = o[:8]

	base := maskSP(s, p, a.S, a.P)

	eqm := b2u(o[0] == a.O) | b2u(o[1] == a.O)<<1 | b2u(o[2] == a.O)<<2 | b2u(o[3] == a.O)<<3 |
		b2u(o[4] == a.O)<<4 | b2u(o[5] == a.O)<<5 | b2u(o[6] == a.O)<<6 | b2u(o[7] == a.O)<<7
	gtm := b2u(o[0] > a.O) | b2u(o[1] > a.O)<<1 | b2u(o[2] > a.O)<<2 | b2u(o[3] > a.O)<<3 |
		b2u(o[4] > a.O)<<4 | b2u(o[5] > a.O)<<5 | b2u(o[6] > a.O)<<6 | b2u(o[7] > a.O)<<7
	ltm := b2u(o[0] < a.O) | b2u(o[1] < a.O)<<1 | b2u(o[2] < a.O)<<2 | b2u(o[3] < a.O)<<3 |
		b2u(o[4] < a.O)<<4 | b2u(o[5] < a.O)<<5 | b2u(o[6] < a.O)<<6 | b2u(o[7] < a.O)<<7
	gem := eqm | gtm
	lem := eqm | ltm

	m := (eqm & -b2u(rel == relEQ)) |
		(gtm & -b2u(rel == relGT)) |
		(ltm & -b2u(rel == relLT)) |
		(gem & -b2u(rel == relGE)) |
		(lem & -b2u(rel == relLE))

	m &= base & lenMask(a.Len) & gate(a.P, a.Pred)
	return Result{Value: b2u(m != 0), Count: uint64(bits.OnesCount64(m)), Mask: m}
}

func compareOEQ(s, p, o []uint64, a *Args) Result { return compareO(s, p, o, a, relEQ) }
func compareOGT(s, p, o []uint64, a *Args) Result { return compareO(s, p, o, a, relGT) }
func compareOLT(s, p, o []uint64, a *Args) Result { return compareO(s, p, o, a, relLT) }
func compareOGE(s, p, o []uint64, a *Args) Result { return compareO(s, p, o, a, relGE) }
func compareOLE(s, p, o []uint64, a *Args) Result { return compareO(s, p, o, a, relLE) }

// validateDatatypeSP checks that every lane matching (S, P) carries the
// expected datatype id K in its object slot. Vacuously true when no lane
// matches.
func validateDatatypeSP(s, p, o []uint64, a *Args) Result {
	win := lenMask(a.Len) & gate(a.P, a.Pred)
	match := maskSP(s, p, a.S, a.P) & win
	conform := maskSPO(s, p, o, a.S, a.P, a.K) & win
	viol := match &^ conform
	return Result{Value: b2u(viol == 0), Count: uint64(bits.OnesCount64(conform)), Mask: conform}
}

// validateDatatypeSPO is the strict variant: conformance as above, plus at
// least one matching lane must exist.
func validateDatatypeSPO(s, p, o []uint64, a *Args) Result {
	win := lenMask(a.Len) & gate(a.P, a.Pred)
	match := maskSP(s, p, a.S, a.P) & win
	conform := maskSPO(s, p, o, a.S, a.P, a.K) & win
	viol := match &^ conform
	return Result{Value: b2u(viol == 0) & b2u(match != 0), Count: uint64(bits.OnesCount64(conform)), Mask: conform}
}

// inertKernel fills unassigned dispatch slots. It reports nothing matched.
func inertKernel(s, p, o []uint64, a *Args) Result {
	return Result{}
}

// table is the dense hot dispatch table. Every slot is populated so the
// lookup never needs a nil check.
var table = func() [opMax]Func {
	var t [opMax]Func
	for i := range t {
		t[i] = inertKernel
	}
	t[OpAskSP] = askSP
	t[OpCountSPGE] = countSPGE
	t[OpAskSPO] = askSPO
	t[OpCountSPLE] = countSPLE
	t[OpCountSPEQ] = countSPEQ
	t[OpAskOP] = askOP
	t[OpUniqueSP] = uniqueSP
	t[OpCountOPGE] = countOPGE
	t[OpCountOPLE] = countOPLE
	t[OpCountOPEQ] = countOPEQ
	t[OpCompareOEQ] = compareOEQ
	t[OpCompareOGT] = compareOGT
	t[OpCompareOLT] = compareOLT
	t[OpCompareOGE] = compareOGE
	t[OpCompareOLE] = compareOLE
	t[OpValidateDatatypeSP] = validateDatatypeSP
	t[OpValidateDatatypeSPO] = validateDatatypeSPO
	return t
}()

// Dispatch evaluates op over one 8-lane window. The lookup is bounds-masked:
// a code outside the hot range resolves through the mask to some table slot,
// but its result is cancelled and ok is false.
func Dispatch(op Op, s, p, o []uint64, a *Args) (Result, bool) {
	idx := uint64(op) & opMask
	in := -b2u(uint64(op) < opMax)
	r := table[idx](s, p, o, a)
	r.Value &= in
	r.Count &= in
	r.Mask &= in
	return r, op.Hot()
}

// Construct8 emits one assertion triple per live lane: a lane is live when
// its subject is non-zero and it sits inside the run length. Dead lanes are
// zeroed in the outputs, so re-running the kernel over the same window
// rewrites identical results. Returns the live-lane bitmask.
//
// The input subject view and all three output views must hold at least 8
// elements each.
func Construct8(s []uint64, length uint64, constP, constO uint64, outS, outP, outO []uint64) uint64 {
	s = s[:8]
	outS = outS[:8]
	outP = outP[:8]
	outO = outO[:8]

	lm := lenMask(length)
	var mask uint64
	for i := 0; i < 8; i++ {
		live := b2u(s[i] != 0) & ((lm >> i) & 1)
		keep := -live
		outS[i] = s[i] & keep
		outP[i] = constP & keep
		outO[i] = constO & keep
		mask |= live << i
	}
	return mask
}
