package admission

import (
	"testing"

	"github.com/hupe1980/reflex8/internal/mem"
	"github.com/hupe1980/reflex8/kernel"
	"github.com/hupe1980/reflex8/triple"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func alignedColumns(t *testing.T, rows int) *triple.Columns {
	t.Helper()
	c, err := triple.NewColumns(rows)
	require.NoError(t, err)
	return c
}

// misalignedColumns builds columns whose bases miss 64-byte alignment but
// whose construction-time checks are bypassed, standing in for foreign
// memory handed over without validation.
func misalignedColumns() *triple.Columns {
	s := mem.AllocAlignedUint64(24)
	return &triple.Columns{S: s[1:17], P: s[1:17], O: s[1:17]}
}

func TestClassifyHot(t *testing.T) {
	ctrl := NewController(Config{})
	cols := alignedColumns(t, 8)
	run := triple.Run{Pred: 1, Off: 0, Len: 8}

	hotOps := []kernel.Op{
		kernel.OpAskSP, kernel.OpAskSPO, kernel.OpAskOP,
		kernel.OpCountSPGE, kernel.OpCountSPLE, kernel.OpCountSPEQ,
		kernel.OpUniqueSP,
		kernel.OpCountOPGE, kernel.OpCountOPLE, kernel.OpCountOPEQ,
		kernel.OpCompareOEQ, kernel.OpCompareOGT, kernel.OpCompareOLT,
		kernel.OpCompareOGE, kernel.OpCompareOLE,
		kernel.OpValidateDatatypeSP, kernel.OpValidateDatatypeSPO,
	}
	for _, op := range hotOps {
		v := ctrl.Classify(cols, run, op)
		assert.Equal(t, Hot, v.Tier, op.String())
		assert.LessOrEqual(t, v.EstimatedTicks, uint8(8), op.String())
	}
}

func TestClassifyNeverHot(t *testing.T) {
	ctrl := NewController(Config{})

	// Misaligned columns never reach the hot tier.
	v := ctrl.Classify(misalignedColumns(), triple.Run{Len: 8}, kernel.OpAskSP)
	assert.NotEqual(t, Hot, v.Tier)
	assert.Equal(t, ReasonMisaligned, v.Reason)

	// Long runs never reach the hot tier.
	cols := alignedColumns(t, 64)
	v = ctrl.Classify(cols, triple.Run{Len: 9}, kernel.OpAskSP)
	assert.NotEqual(t, Hot, v.Tier)
	assert.Equal(t, ReasonRunTooLong, v.Reason)
}

func TestClassifyConstructIsWarm(t *testing.T) {
	ctrl := NewController(Config{})
	cols := alignedColumns(t, 8)

	v := ctrl.Classify(cols, triple.Run{Len: 8}, kernel.OpConstruct8)
	assert.Equal(t, Warm, v.Tier)
	assert.Equal(t, ReasonWarmOp, v.Reason)
	assert.Equal(t, uint8(kernel.ConstructMaxTicks), v.EstimatedTicks)
}

func TestClassifyUnknownOpRefused(t *testing.T) {
	ctrl := NewController(Config{})
	cols := alignedColumns(t, 8)

	v := ctrl.Classify(cols, triple.Run{Len: 8}, kernel.Op(20))
	assert.Equal(t, Refuse, v.Tier)
	assert.Equal(t, ReasonUnknownOp, v.Reason)
}

func TestClassifyLocalityDegrade(t *testing.T) {
	// Tiny explicit cache model: 1 KiB L2, 4 KiB LLC.
	ctrl := NewController(Config{L2Bytes: 1 << 10, LLCBytes: 4 << 10})

	small := alignedColumns(t, 8)     // 3*16*8 = 384 B footprint
	medium := alignedColumns(t, 100)  // ~2.6 KiB
	large := alignedColumns(t, 10000) // ~235 KiB

	long := triple.Run{Len: 16}

	assert.Equal(t, Warm, ctrl.Classify(small, long, kernel.OpAskSP).Tier)
	assert.Equal(t, Cold, ctrl.Classify(medium, long, kernel.OpAskSP).Tier)

	v := ctrl.Classify(large, long, kernel.OpAskSP)
	assert.Equal(t, Refuse, v.Tier)
	assert.Equal(t, ReasonFootprint, v.Reason)
}

func TestConfigDefaults(t *testing.T) {
	ctrl := NewController(Config{})
	cfg := ctrl.Config()
	assert.Equal(t, uint8(8), cfg.TickBudget)
	assert.Positive(t, cfg.L2Bytes)
	assert.GreaterOrEqual(t, cfg.LLCBytes, cfg.L2Bytes)
}
