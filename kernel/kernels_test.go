package kernel

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	predType  = uint64(100)
	subjAlice = uint64(1)
	subjBob   = uint64(2)
	objPerson = uint64(42)
	objRobot  = uint64(43)
)

// window returns an 8-lane test window: three rows for predType, the
// remainder zero-padded.
func window() (s, p, o []uint64) {
	s = []uint64{subjAlice, subjBob, subjAlice, 0, 0, 0, 0, 0}
	p = []uint64{predType, predType, predType, 0, 0, 0, 0, 0}
	o = []uint64{objPerson, objPerson, objRobot, 0, 0, 0, 0, 0}
	return s, p, o
}

func TestAskSP(t *testing.T) {
	s, p, o := window()

	tests := []struct {
		name string
		args Args
		want uint64
	}{
		{"present", Args{S: subjAlice, P: predType, Pred: predType, Len: 3}, 1},
		{"absent subject", Args{S: 99, P: predType, Pred: predType, Len: 3}, 0},
		{"predicate gate cancels run", Args{S: subjAlice, P: predType, Pred: 999, Len: 3}, 0},
		{"length mask cancels lanes", Args{S: subjAlice, P: predType, Pred: predType, Len: 0}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := askSP(s, p, o, &tt.args)
			assert.Equal(t, tt.want, r.Value)
		})
	}
}

func TestAskSPOAndOP(t *testing.T) {
	s, p, o := window()

	r := askSPO(s, p, o, &Args{S: subjAlice, P: predType, O: objPerson, Pred: predType, Len: 3})
	assert.Equal(t, uint64(1), r.Value)
	assert.Equal(t, uint64(0b001), r.Mask)

	r = askSPO(s, p, o, &Args{S: subjBob, P: predType, O: objRobot, Pred: predType, Len: 3})
	assert.Equal(t, uint64(0), r.Value)

	r = askOP(s, p, o, &Args{P: predType, O: objPerson, Pred: predType, Len: 3})
	assert.Equal(t, uint64(1), r.Value)
	assert.Equal(t, uint64(2), r.Count)
}

func TestCountKernels(t *testing.T) {
	s, p, o := window()

	tests := []struct {
		name  string
		fn    Func
		args  Args
		value uint64
		count uint64
	}{
		{"sp ge met", countSPGE, Args{S: subjAlice, P: predType, K: 2, Pred: predType, Len: 3}, 1, 2},
		{"sp ge unmet", countSPGE, Args{S: subjAlice, P: predType, K: 3, Pred: predType, Len: 3}, 0, 2},
		{"sp le met", countSPLE, Args{S: subjAlice, P: predType, K: 2, Pred: predType, Len: 3}, 1, 2},
		{"sp eq met", countSPEQ, Args{S: subjBob, P: predType, K: 1, Pred: predType, Len: 3}, 1, 1},
		{"sp eq unmet", countSPEQ, Args{S: subjBob, P: predType, K: 2, Pred: predType, Len: 3}, 0, 1},
		{"op eq", countOPEQ, Args{O: objPerson, P: predType, K: 2, Pred: predType, Len: 3}, 1, 2},
		{"op ge", countOPGE, Args{O: objRobot, P: predType, K: 1, Pred: predType, Len: 3}, 1, 1},
		{"op le", countOPLE, Args{O: objRobot, P: predType, K: 0, Pred: predType, Len: 3}, 0, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := tt.fn(s, p, o, &tt.args)
			assert.Equal(t, tt.value, r.Value, "value")
			assert.Equal(t, tt.count, r.Count, "count")
		})
	}
}

func TestUniqueSP(t *testing.T) {
	s, p, o := window()

	// Bob appears once: unique.
	r := uniqueSP(s, p, o, &Args{S: subjBob, P: predType, Pred: predType, Len: 3})
	assert.Equal(t, uint64(1), r.Value)

	// Alice appears twice: not unique.
	r = uniqueSP(s, p, o, &Args{S: subjAlice, P: predType, Pred: predType, Len: 3})
	assert.Equal(t, uint64(0), r.Value)

	// UNIQUE_SP must agree with COUNT_SP_EQ at k=1.
	for _, subj := range []uint64{subjAlice, subjBob, 99} {
		u := uniqueSP(s, p, o, &Args{S: subj, P: predType, Pred: predType, Len: 3})
		c := countSPEQ(s, p, o, &Args{S: subj, P: predType, K: 1, Pred: predType, Len: 3})
		assert.Equal(t, c.Value, u.Value, "subject %d", subj)
	}
}

func TestCompareO(t *testing.T) {
	s := []uint64{subjAlice, subjAlice, subjAlice, subjAlice, 0, 0, 0, 0}
	p := []uint64{predType, predType, predType, predType, 0, 0, 0, 0}
	o := []uint64{10, 20, 30, 40, 0, 0, 0, 0}

	tests := []struct {
		op    Op
		pivot uint64
		mask  uint64
	}{
		{OpCompareOEQ, 20, 0b0010},
		{OpCompareOGT, 20, 0b1100},
		{OpCompareOLT, 20, 0b0001},
		{OpCompareOGE, 20, 0b1110},
		{OpCompareOLE, 20, 0b0011},
	}
	for _, tt := range tests {
		t.Run(tt.op.String(), func(t *testing.T) {
			a := Args{S: subjAlice, P: predType, O: tt.pivot, Pred: predType, Len: 4}
			r, ok := Dispatch(tt.op, s, p, o, &a)
			require.True(t, ok)
			assert.Equal(t, tt.mask, r.Mask)
			assert.Equal(t, uint64(1), r.Value)
		})
	}

	// No lane compares: boolean false, zero mask.
	a := Args{S: subjAlice, P: predType, O: 5, Pred: predType, Len: 4}
	r, ok := Dispatch(OpCompareOLT, s, p, o, &a)
	require.True(t, ok)
	assert.Equal(t, uint64(0), r.Value)
	assert.Equal(t, uint64(0), r.Mask)
}

func TestValidateDatatype(t *testing.T) {
	dtString := uint64(7)
	s := []uint64{subjAlice, subjAlice, subjBob, 0, 0, 0, 0, 0}
	p := []uint64{predType, predType, predType, 0, 0, 0, 0, 0}
	o := []uint64{dtString, dtString, dtString, 0, 0, 0, 0, 0}

	// All matching lanes conform.
	r := validateDatatypeSP(s, p, o, &Args{S: subjAlice, P: predType, K: dtString, Pred: predType, Len: 3})
	assert.Equal(t, uint64(1), r.Value)
	assert.Equal(t, uint64(2), r.Count)

	// One lane violates.
	o[1] = 8
	r = validateDatatypeSP(s, p, o, &Args{S: subjAlice, P: predType, K: dtString, Pred: predType, Len: 3})
	assert.Equal(t, uint64(0), r.Value)

	// Vacuous truth: no matching lanes at all.
	r = validateDatatypeSP(s, p, o, &Args{S: 99, P: predType, K: dtString, Pred: predType, Len: 3})
	assert.Equal(t, uint64(1), r.Value)

	// Strict variant rejects the vacuous case.
	r = validateDatatypeSPO(s, p, o, &Args{S: 99, P: predType, K: dtString, Pred: predType, Len: 3})
	assert.Equal(t, uint64(0), r.Value)

	o[1] = dtString
	r = validateDatatypeSPO(s, p, o, &Args{S: subjAlice, P: predType, K: dtString, Pred: predType, Len: 3})
	assert.Equal(t, uint64(1), r.Value)
}

func TestDispatchBounds(t *testing.T) {
	s, p, o := window()
	a := Args{S: subjAlice, P: predType, Pred: predType, Len: 3}

	// Construct8 is outside the hot range: result cancelled, not dispatched.
	r, ok := Dispatch(OpConstruct8, s, p, o, &a)
	assert.False(t, ok)
	assert.Equal(t, Result{}, r)

	// An unassigned slot inside the range is inert.
	r, ok = Dispatch(Op(20), s, p, o, &a)
	assert.False(t, ok)
	assert.Equal(t, Result{}, r)
}

func TestConstruct8LaneMask(t *testing.T) {
	s := []uint64{11, 0, 22, 33, 0, 0, 0, 0}
	outS := make([]uint64, 8)
	outP := make([]uint64, 8)
	outO := make([]uint64, 8)

	mask := Construct8(s, 8, predType, objPerson, outS, outP, outO)

	// Lanes 0, 2 and 3 are live.
	assert.Equal(t, uint64(0b1101), mask)
	assert.Equal(t, []uint64{11, 0, 22, 33, 0, 0, 0, 0}, outS)
	assert.Equal(t, []uint64{predType, 0, predType, predType, 0, 0, 0, 0}, outP)
	assert.Equal(t, []uint64{objPerson, 0, objPerson, objPerson, 0, 0, 0, 0}, outO)
}

func TestConstruct8Idempotent(t *testing.T) {
	s := []uint64{11, 0, 22, 33, 0, 0, 0, 0}
	outS := make([]uint64, 8)
	outP := make([]uint64, 8)
	outO := make([]uint64, 8)

	m1 := Construct8(s, 8, predType, objPerson, outS, outP, outO)
	snapS := append([]uint64(nil), outS...)
	snapP := append([]uint64(nil), outP...)
	snapO := append([]uint64(nil), outO...)

	m2 := Construct8(s, 8, predType, objPerson, outS, outP, outO)
	assert.Equal(t, m1, m2)
	assert.Equal(t, snapS, outS)
	assert.Equal(t, snapP, outP)
	assert.Equal(t, snapO, outO)
}

func TestConstruct8LengthMask(t *testing.T) {
	s := []uint64{11, 22, 33, 44, 55, 66, 77, 88}
	outS := make([]uint64, 8)
	outP := make([]uint64, 8)
	outO := make([]uint64, 8)

	mask := Construct8(s, 2, predType, objPerson, outS, outP, outO)
	assert.Equal(t, uint64(0b11), mask)
	assert.Equal(t, uint64(0), outS[2])
}

func TestMaskSPUnrolledMatchesGeneric(t *testing.T) {
	s := []uint64{1, 2, 1, 3, 1, 0, 2, 1}
	p := []uint64{5, 5, 6, 5, 5, 5, 5, 5}
	for qs := uint64(0); qs < 4; qs++ {
		for _, qp := range []uint64{5, 6, 7} {
			assert.Equal(t, maskSPGeneric(s, p, qs, qp), maskSPUnrolled(s, p, qs, qp),
				"qs=%d qp=%d", qs, qp)
		}
	}
}

func TestSelectMaskSPFollowsISA(t *testing.T) {
	generic := reflect.ValueOf(maskSPGeneric).Pointer()
	unrolled := reflect.ValueOf(maskSPUnrolled).Pointer()

	assert.Equal(t, generic, reflect.ValueOf(selectMaskSP(Generic)).Pointer())
	for _, isa := range []ISA{NEON, SVE2, AVX2, AVX512} {
		assert.Equal(t, unrolled, reflect.ValueOf(selectMaskSP(isa)).Pointer(), isa.String())
	}

	// Package init bound the dispatch pointer for the detected ISA.
	assert.Equal(t,
		reflect.ValueOf(selectMaskSP(ActiveISA())).Pointer(),
		reflect.ValueOf(maskSPImpl).Pointer())
}

func TestOpMetadata(t *testing.T) {
	assert.True(t, OpAskSP.Hot())
	assert.False(t, OpConstruct8.Hot())
	assert.True(t, OpConstruct8.Known())
	assert.False(t, Op(20).Known())

	assert.True(t, OpCountSPEQ.Counted())
	assert.True(t, OpUniqueSP.Counted())
	assert.False(t, OpAskSP.Counted())

	assert.LessOrEqual(t, OpAskSP.Cost(), uint8(8))
	assert.Equal(t, uint8(ConstructMaxTicks), OpConstruct8.Cost())
	assert.Equal(t, "ASK_SP", OpAskSP.String())
}

func TestCycles(t *testing.T) {
	// Monotone on platforms with a counter; always zero elsewhere.
	a := Cycles()
	b := Cycles()
	if a == 0 && b == 0 {
		t.Skip("no hardware cycle counter on this platform")
	}
	assert.GreaterOrEqual(t, b, a)
}
