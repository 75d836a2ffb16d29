package ring

import (
	"sync"
	"testing"

	"github.com/hupe1980/reflex8/receipt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDeltaRingCapacity(t *testing.T) {
	for _, bad := range []int{0, 1, 32, 63, 100, 65} {
		_, err := NewDeltaRing(bad)
		assert.ErrorIs(t, err, ErrCapacity, "capacity %d", bad)
	}

	r, err := NewDeltaRing(64)
	require.NoError(t, err)
	assert.Equal(t, 8, r.SegmentSize())
}

func TestDeltaRingFIFO(t *testing.T) {
	r, err := NewDeltaRing(128)
	require.NoError(t, err)

	in := []Delta{
		{S: 1, P: 10, O: 100, Cycle: 0},
		{S: 2, P: 20, O: 200, Cycle: 1},
		{S: 3, P: 30, O: 300, Cycle: 2},
	}
	require.NoError(t, r.Enqueue(3, in))
	assert.Equal(t, 3, r.Pending(3))

	out := make([]Delta, 8)
	n, _, err := r.Dequeue(3, out)
	require.NoError(t, err)
	require.Equal(t, 3, n)
	assert.Equal(t, in, out[:3])
	assert.Equal(t, 0, r.Pending(3))
}

func TestDeltaRingNoOverwrite(t *testing.T) {
	r, err := NewDeltaRing(64) // 8 slots per segment
	require.NoError(t, err)

	fill := make([]Delta, 8)
	for i := range fill {
		fill[i] = Delta{S: uint64(i + 1)}
	}
	require.NoError(t, r.Enqueue(0, fill))

	// Segment is full: one more must fail, not overwrite.
	err = r.Enqueue(0, []Delta{{S: 99}})
	assert.ErrorIs(t, err, ErrFull)

	// Partial space is not enough for an all-or-nothing batch.
	out := make([]Delta, 4)
	n, _, err := r.Dequeue(0, out)
	require.NoError(t, err)
	require.Equal(t, 4, n)
	assert.ErrorIs(t, r.Enqueue(0, make([]Delta, 5)), ErrFull)
	assert.NoError(t, r.Enqueue(0, make([]Delta, 4)))

	// The unread half survived intact.
	n, _, err = r.Dequeue(0, out)
	require.NoError(t, err)
	require.Equal(t, 4, n)
	assert.Equal(t, uint64(5), out[0].S)
}

func TestDeltaRingTickIsolation(t *testing.T) {
	r, err := NewDeltaRing(64)
	require.NoError(t, err)

	require.NoError(t, r.Enqueue(1, []Delta{{S: 11}}))
	require.NoError(t, r.Enqueue(2, []Delta{{S: 22}}))

	out := make([]Delta, 8)
	n, _, err := r.Dequeue(2, out)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	assert.Equal(t, uint64(22), out[0].S)

	assert.Equal(t, 1, r.Pending(1))
}

func TestDeltaRingBadTick(t *testing.T) {
	r, err := NewDeltaRing(64)
	require.NoError(t, err)

	assert.ErrorIs(t, r.Enqueue(8, []Delta{{}}), ErrBadTick)
	_, _, err = r.Dequeue(9, make([]Delta, 1))
	assert.ErrorIs(t, err, ErrBadTick)
	assert.ErrorIs(t, r.Park(8, 0), ErrBadTick)
}

func TestDeltaRingPark(t *testing.T) {
	r, err := NewDeltaRing(64)
	require.NoError(t, err)

	require.NoError(t, r.Enqueue(0, []Delta{{S: 1}, {S: 2}}))

	out := make([]Delta, 8)
	n, base, err := r.Dequeue(0, out)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	require.NoError(t, r.Park(0, base+1))
	assert.False(t, r.Parked(0, base))
	assert.True(t, r.Parked(0, base+1))

	r.Unpark(0, base+1)
	assert.False(t, r.Parked(0, base+1))
}

func TestDeltaRingWraparound(t *testing.T) {
	r, err := NewDeltaRing(64)
	require.NoError(t, err)

	out := make([]Delta, 8)
	for round := 0; round < 5; round++ {
		in := make([]Delta, 8)
		for i := range in {
			in[i] = Delta{S: uint64(round*8 + i)}
		}
		require.NoError(t, r.Enqueue(0, in))
		n, _, err := r.Dequeue(0, out)
		require.NoError(t, err)
		require.Equal(t, 8, n)
		assert.Equal(t, in, out[:8])
	}
}

func TestDeltaRingConcurrentTicks(t *testing.T) {
	r, err := NewDeltaRing(1024) // 128 slots per segment
	require.NoError(t, err)

	var wg sync.WaitGroup
	for tick := uint64(0); tick < 8; tick++ {
		wg.Add(1)
		go func(tick uint64) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				assert.NoError(t, r.Enqueue(tick, []Delta{{S: tick, Cycle: uint64(i)}}))
			}
		}(tick)
	}
	wg.Wait()

	out := make([]Delta, 128)
	for tick := uint64(0); tick < 8; tick++ {
		n, _, err := r.Dequeue(tick, out)
		require.NoError(t, err)
		require.Equal(t, 100, n)
		for i := 0; i < n; i++ {
			assert.Equal(t, tick, out[i].S)
			assert.Equal(t, uint64(i), out[i].Cycle)
		}
	}
}

func TestAssertionRingRoundTrip(t *testing.T) {
	r, err := NewAssertionRing(64)
	require.NoError(t, err)

	in := Assertion{
		S: 5, P: 6, O: 7,
		Receipt: receipt.Receipt{
			CycleID:     42,
			ShardID:     3,
			HookID:      9,
			Ticks:       2,
			ActualTicks: 1234,
			Lanes:       8,
			SpanID:      0xDEAD,
			AHash:       0xBEEF,
		},
	}
	require.NoError(t, r.Enqueue(2, []Assertion{in}))

	out := make([]Assertion, 8)
	n, err := r.Dequeue(2, out)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	assert.Equal(t, in, out[0])
}

func TestAssertionRingFull(t *testing.T) {
	r, err := NewAssertionRing(64)
	require.NoError(t, err)

	batch := make([]Assertion, 8)
	require.NoError(t, r.Enqueue(0, batch))
	assert.ErrorIs(t, r.Enqueue(0, batch[:1]), ErrFull)
}
