package kernel

// Op identifies an evaluation operation.
type Op uint8

// Operation codes. The hot codes are dense so the dispatch table stays
// a direct array lookup. Construct8 sits outside the hot range: it is
// admitted to the warm tier only.
const (
	OpAskSP      Op = 0
	OpCountSPGE  Op = 1
	OpAskSPO     Op = 2
	OpCountSPLE  Op = 3
	OpCountSPEQ  Op = 4
	OpAskOP      Op = 5
	OpUniqueSP   Op = 6
	OpCountOPGE  Op = 7
	OpCountOPLE  Op = 8
	OpCountOPEQ  Op = 9
	OpCompareOEQ Op = 10
	OpCompareOGT Op = 11
	OpCompareOLT Op = 12
	OpCompareOGE Op = 13
	OpCompareOLE Op = 14

	OpValidateDatatypeSP  Op = 15
	OpValidateDatatypeSPO Op = 16

	// OpConstruct8 emits up to 8 assertion triples. Warm tier only.
	OpConstruct8 Op = 32
)

// opMax bounds the dense hot dispatch table.
const opMax = 32

// opMask is the bounds mask applied to table lookups.
const opMask = opMax - 1

// Lanes is the fixed SIMD width of every kernel.
const Lanes = 8

// Construct8 tick cost bounds. The worst case is charged by admission.
const (
	ConstructMinTicks = 41
	ConstructMaxTicks = 83
)

// costTicks is the nominal tick cost per hot operation.
// All hot kernels fit the per-tick budget of 8.
var costTicks = [opMax]uint8{
	OpAskSP:      2,
	OpCountSPGE:  3,
	OpAskSPO:     2,
	OpCountSPLE:  3,
	OpCountSPEQ:  3,
	OpAskOP:      2,
	OpUniqueSP:   3,
	OpCountOPGE:  3,
	OpCountOPLE:  3,
	OpCountOPEQ:  3,
	OpCompareOEQ: 4,
	OpCompareOGT: 4,
	OpCompareOLT: 4,
	OpCompareOGE: 4,
	OpCompareOLE: 4,

	OpValidateDatatypeSP:  4,
	OpValidateDatatypeSPO: 4,
}

// Cost returns the nominal tick cost of op. Construct8 is charged its
// worst case; unknown operations cost 0 and are rejected by admission.
func (op Op) Cost() uint8 {
	if op == OpConstruct8 {
		return ConstructMaxTicks
	}
	if op >= opMax {
		return 0
	}
	return costTicks[op]
}

// Hot reports whether op is eligible for the hot tier at all.
func (op Op) Hot() bool {
	return op < opMax && costTicks[op] != 0
}

// Known reports whether op names any implemented operation.
func (op Op) Known() bool {
	return op.Hot() || op == OpConstruct8
}

// Counted reports whether the operation's assertion hash folds in the
// matching-lane count. Count-family operations (including UniqueSP) do;
// ask, compare and validate operations bind only the boolean result.
func (op Op) Counted() bool {
	switch op {
	case OpCountSPGE, OpCountSPLE, OpCountSPEQ,
		OpCountOPGE, OpCountOPLE, OpCountOPEQ,
		OpUniqueSP:
		return true
	default:
		return false
	}
}

// String returns the operation mnemonic.
func (op Op) String() string {
	switch op {
	case OpAskSP:
		return "ASK_SP"
	case OpCountSPGE:
		return "COUNT_SP_GE"
	case OpAskSPO:
		return "ASK_SPO"
	case OpCountSPLE:
		return "COUNT_SP_LE"
	case OpCountSPEQ:
		return "COUNT_SP_EQ"
	case OpAskOP:
		return "ASK_OP"
	case OpUniqueSP:
		return "UNIQUE_SP"
	case OpCountOPGE:
		return "COUNT_OP_GE"
	case OpCountOPLE:
		return "COUNT_OP_LE"
	case OpCountOPEQ:
		return "COUNT_OP_EQ"
	case OpCompareOEQ:
		return "COMPARE_O_EQ"
	case OpCompareOGT:
		return "COMPARE_O_GT"
	case OpCompareOLT:
		return "COMPARE_O_LT"
	case OpCompareOGE:
		return "COMPARE_O_GE"
	case OpCompareOLE:
		return "COMPARE_O_LE"
	case OpValidateDatatypeSP:
		return "VALIDATE_DATATYPE_SP"
	case OpValidateDatatypeSPO:
		return "VALIDATE_DATATYPE_SPO"
	case OpConstruct8:
		return "CONSTRUCT8"
	default:
		return "UNKNOWN"
	}
}
