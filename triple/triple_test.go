package triple

import (
	"context"
	"testing"

	"github.com/hupe1980/reflex8/internal/mem"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewColumns(t *testing.T) {
	c, err := NewColumns(3)
	require.NoError(t, err)

	assert.Equal(t, 3, c.Rows())
	assert.Equal(t, 16, c.Capacity()) // rounded to 8 plus spare block
	assert.True(t, mem.IsAligned(c.S))
	assert.True(t, mem.IsAligned(c.P))
	assert.True(t, mem.IsAligned(c.O))

	_, err = NewColumns(-1)
	assert.Error(t, err)
}

func TestFromSlices(t *testing.T) {
	s := mem.AllocAlignedUint64(16)
	p := mem.AllocAlignedUint64(16)
	o := mem.AllocAlignedUint64(16)

	c, err := FromSlices(s, p, o, 10)
	require.NoError(t, err)
	assert.Equal(t, 10, c.Rows())

	// Misaligned base is rejected at construction.
	_, err = FromSlices(s[1:9], p[:8], o[:8], 8)
	assert.ErrorIs(t, err, ErrMisaligned)

	// Length mismatch.
	_, err = FromSlices(s, p[:8], o, 8)
	assert.ErrorIs(t, err, ErrLengthMismatch)

	// Capacity not a multiple of 8.
	_, err = FromSlices(s[:12], p[:12], o[:12], 12)
	assert.ErrorIs(t, err, ErrMisaligned)
}

func TestSetRowBounds(t *testing.T) {
	c, err := NewColumns(2)
	require.NoError(t, err)

	require.NoError(t, c.Set(0, 1, 2, 3))
	assert.ErrorIs(t, c.Set(2, 1, 2, 3), ErrOutOfRange)

	s, p, o, err := c.Row(0)
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, 2, 3}, []uint64{s, p, o})

	_, _, _, err = c.Row(5)
	assert.ErrorIs(t, err, ErrOutOfRange)
}

func TestRunHotWindow(t *testing.T) {
	c, err := NewColumns(10)
	require.NoError(t, err)

	r, err := NewRun(c, 7, 0, 8)
	require.NoError(t, err)
	assert.True(t, r.HotEligible())

	s, p, o, err := r.HotWindow(c)
	require.NoError(t, err)
	assert.Len(t, s, 8)
	assert.Len(t, p, 8)
	assert.Len(t, o, 8)

	// A window exists even at the last logical row.
	tail, err := NewRun(c, 7, 9, 1)
	require.NoError(t, err)
	_, _, _, err = tail.HotWindow(c)
	assert.NoError(t, err)

	long := Run{Pred: 7, Off: 0, Len: 9}
	_, _, _, err = long.HotWindow(c)
	assert.ErrorIs(t, err, ErrRunTooLong)
}

func TestRunChunks(t *testing.T) {
	r := Run{Pred: 5, Off: 4, Len: 20}
	chunks := r.Chunks()
	require.Len(t, chunks, 3)
	assert.Equal(t, Run{Pred: 5, Off: 4, Len: 8}, chunks[0])
	assert.Equal(t, Run{Pred: 5, Off: 12, Len: 8}, chunks[1])
	assert.Equal(t, Run{Pred: 5, Off: 20, Len: 4}, chunks[2])

	short := Run{Pred: 5, Off: 0, Len: 3}
	assert.Equal(t, []Run{short}, short.Chunks())
}

func TestPredicateIndexRuns(t *testing.T) {
	c, err := NewColumns(12)
	require.NoError(t, err)

	// Rows 0-9 carry predicate 1, rows 10-11 predicate 2.
	for i := 0; i < 10; i++ {
		require.NoError(t, c.Set(i, uint64(i+1), 1, 100))
	}
	require.NoError(t, c.Set(10, 99, 2, 200))
	require.NoError(t, c.Set(11, 98, 2, 200))

	ix := NewPredicateIndex(c)
	assert.Equal(t, []uint64{1, 2}, ix.Predicates())
	assert.Equal(t, uint64(10), ix.Cardinality(1))
	assert.Equal(t, uint64(0), ix.Cardinality(42))

	runs := ix.Runs(1)
	require.Len(t, runs, 2) // 10 contiguous rows chop into 8 + 2
	assert.Equal(t, Run{Pred: 1, Off: 0, Len: 8}, runs[0])
	assert.Equal(t, Run{Pred: 1, Off: 8, Len: 2}, runs[1])

	runs = ix.Runs(2)
	require.Len(t, runs, 1)
	assert.Equal(t, Run{Pred: 2, Off: 10, Len: 2}, runs[0])

	assert.Nil(t, ix.Runs(42))
}

func TestMaterialize(t *testing.T) {
	loader := SliceLoader{
		{1, 9, 100},
		{2, 3, 200},
		{3, 3, 300},
		{4, 9, 400},
	}

	cols, ix, err := Materialize(context.Background(), loader)
	require.NoError(t, err)
	assert.Equal(t, 4, cols.Rows())

	// Sorted by predicate: predicate 3 rows first, then predicate 9.
	assert.Equal(t, []uint64{3, 9}, ix.Predicates())

	runs := ix.Runs(3)
	require.Len(t, runs, 1)
	assert.Equal(t, uint32(0), runs[0].Off)
	assert.Equal(t, uint32(2), runs[0].Len)

	runs = ix.Runs(9)
	require.Len(t, runs, 1)
	assert.Equal(t, uint32(2), runs[0].Off)
}
