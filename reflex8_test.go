package reflex8

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/reflex8/admission"
	"github.com/hupe1980/reflex8/archive"
	"github.com/hupe1980/reflex8/blobstore"
	"github.com/hupe1980/reflex8/fiber"
	"github.com/hupe1980/reflex8/kernel"
	"github.com/hupe1980/reflex8/receipt"
	"github.com/hupe1980/reflex8/ring"
)

func testTriples() [][3]uint64 {
	return [][3]uint64{
		{5, 7, 11},
		{6, 7, 12},
		{5, 9, 13},
		{8, 9, 13},
	}
}

func TestEngineLifecycle(t *testing.T) {
	eng, err := New()
	require.NoError(t, err)
	assert.Equal(t, 1, eng.Shards())

	require.NoError(t, eng.Close())
	assert.NoError(t, eng.Close(), "close is idempotent")

	assert.ErrorIs(t, eng.RegisterHook(fiber.Hook{Op: kernel.OpAskSP}), ErrClosed)
	assert.ErrorIs(t, eng.EnqueueDelta(ring.Delta{}), ErrClosed)
	_, err = eng.AdvanceBeat(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
}

func TestEvalBool(t *testing.T) {
	ctx := context.Background()
	eng, err := New()
	require.NoError(t, err)
	defer eng.Close()

	_, _, err = eng.EvalBool(ctx, Query{Op: kernel.OpAskSP, S: 5, P: 7})
	assert.ErrorIs(t, err, ErrNoColumns)

	require.NoError(t, eng.PinTriples(ctx, testTriples()))

	ok, rcpt, err := eng.EvalBool(ctx, Query{Op: kernel.OpAskSP, S: 5, P: 7})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NotZero(t, rcpt.SpanID)
	assert.Equal(t, uint32(8), rcpt.Lanes)

	ok, _, err = eng.EvalBool(ctx, Query{Op: kernel.OpAskSP, S: 99, P: 7})
	require.NoError(t, err)
	assert.False(t, ok, "absent subject answers false with a receipt")

	// COUNT over the O=13 pair via the P=9 runs.
	ok, _, err = eng.EvalBool(ctx, Query{Op: kernel.OpCountOPEQ, O: 13, P: 9, K: 2})
	require.NoError(t, err)
	assert.True(t, ok)

	// Unknown predicate has no runs: false, empty receipt.
	ok, rcpt, err = eng.EvalBool(ctx, Query{Op: kernel.OpAskSP, S: 5, P: 77})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Zero(t, rcpt.SpanID)

	// Unknown operation refuses with a typed error.
	_, _, err = eng.EvalBool(ctx, Query{Op: kernel.Op(20), P: 7})
	var refused *ErrRefusedQuery
	require.ErrorAs(t, err, &refused)
	assert.Equal(t, admission.ReasonUnknownOp, refused.Reason)
	assert.ErrorIs(t, err, admission.ErrRefused)
}

func TestEvalBatch(t *testing.T) {
	ctx := context.Background()
	eng, err := New()
	require.NoError(t, err)
	defer eng.Close()
	require.NoError(t, eng.PinTriples(ctx, testTriples()))

	_, _, err = eng.EvalBatch(ctx, make([]Query, 9))
	assert.ErrorIs(t, err, ErrBatchTooLarge)

	oks, rcpts, err := eng.EvalBatch(ctx, []Query{
		{Op: kernel.OpAskSP, S: 5, P: 7},
		{Op: kernel.OpAskSP, S: 99, P: 7},
		{Op: kernel.OpUniqueSP, S: 6, P: 7},
	})
	require.NoError(t, err)
	require.Len(t, oks, 3)
	require.Len(t, rcpts, 3)
	assert.Equal(t, []bool{true, false, true}, oks)
}

func TestBeatAndPulse(t *testing.T) {
	ctx := context.Background()

	store := blobstore.NewMemoryStore()
	ledger := archive.NewMemoryLedger()
	arch, err := archive.NewArchiver(store, ledger)
	require.NoError(t, err)

	metrics := &BasicMetricsCollector{}
	eng, err := New(
		WithArchiver(arch),
		WithMetricsCollector(metrics),
		WithRingCapacity(64),
	)
	require.NoError(t, err)
	defer eng.Close()

	require.NoError(t, eng.RegisterHook(fiber.Hook{ID: 1, Op: kernel.OpAskSP, S: 5, P: 7}))

	// Cycle 0 is the first beat; stamp deltas for cycles 1 and 2 so
	// their tick segments drain on those beats.
	require.NoError(t, eng.EnqueueDelta(ring.Delta{S: 5, P: 7, O: 11, Cycle: 1}))
	require.NoError(t, eng.EnqueueDelta(ring.Delta{S: 6, P: 7, O: 12, Cycle: 2}))

	var pulses int
	var pulseReceipts int
	for i := 0; i < 8; i++ {
		beat, err := eng.AdvanceBeat(ctx)
		require.NoError(t, err)
		assert.Equal(t, uint64(i), beat.Cycle)
		assert.Equal(t, uint64(i%8), beat.Tick)
		if beat.Pulse {
			pulses++
			pulseReceipts += len(beat.Receipts)
			assert.Equal(t, uint64(1), beat.Commit.Version)
		}
	}

	assert.Equal(t, 1, pulses, "cycle 0 is the only pulse in the first eight beats")

	// Two hot executions happened on beats 1 and 2; their receipts fold
	// into the next pulse (cycle 8).
	beat, err := eng.AdvanceBeat(ctx)
	require.NoError(t, err)
	require.True(t, beat.Pulse)
	assert.Len(t, beat.Receipts, 2)
	assert.Equal(t, uint64(2), beat.Commit.Version)

	stats := metrics.GetStats()
	assert.Equal(t, int64(2), stats.HotCount)
	assert.Equal(t, int64(2), stats.PulseCount)
	assert.Equal(t, int64(2), stats.ArchiveCount)
	assert.Zero(t, stats.ArchiveErrors)

	names, err := store.List(ctx, "receipts/")
	require.NoError(t, err)
	assert.Len(t, names, 2)
}

func TestEnqueueBacklog(t *testing.T) {
	metrics := &BasicMetricsCollector{}
	eng, err := New(WithRingCapacity(64), WithMetricsCollector(metrics))
	require.NoError(t, err)
	defer eng.Close()

	// Segment for tick 0 holds 8 slots.
	for i := 0; i < 8; i++ {
		require.NoError(t, eng.EnqueueDelta(ring.Delta{S: uint64(i), Cycle: 0}))
	}
	err = eng.EnqueueDelta(ring.Delta{S: 99, Cycle: 0})
	assert.ErrorIs(t, err, ErrBacklog)
	assert.ErrorIs(t, err, ring.ErrFull)
	assert.Equal(t, int64(1), metrics.GetStats().BacklogCount)

	// EnqueueDeltaWait gives up when the context does.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = eng.EnqueueDeltaWait(ctx, ring.Delta{S: 99, Cycle: 0})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestConstruct(t *testing.T) {
	ctx := context.Background()
	eng, err := New()
	require.NoError(t, err)
	defer eng.Close()
	require.NoError(t, eng.PinTriples(ctx, testTriples()))

	res, err := eng.Construct(ctx, fiber.Hook{
		ID:     4,
		Op:     kernel.OpConstruct8,
		P:      7,
		ConstP: 70,
		ConstO: 700,
	})
	require.NoError(t, err)
	assert.True(t, res.OK)
	assert.Equal(t, 2, res.Emitted, "one triple per live subject in the P=7 run")
	assert.Equal(t, uint64(2), res.Count)
}

func TestShardRouting(t *testing.T) {
	eng, err := New(WithShards(4))
	require.NoError(t, err)
	defer eng.Close()

	assert.Equal(t, 4, eng.Shards())
	for id := uint32(0); id < 8; id++ {
		require.NoError(t, eng.RegisterHook(fiber.Hook{ID: id, Op: kernel.OpAskSP, P: 7}))
	}
}

func TestHookDeliveryAcrossShards(t *testing.T) {
	ctx := context.Background()
	eng, err := New(WithShards(2), WithRingCapacity(64))
	require.NoError(t, err)
	defer eng.Close()

	// Deltas route to shards by subject, hooks are registered everywhere;
	// matching must not depend on how either maps to a shard.
	require.NoError(t, eng.RegisterHook(fiber.Hook{ID: 1, Op: kernel.OpAskSP, S: 6, P: 9}))
	require.NoError(t, eng.EnqueueDelta(ring.Delta{S: 6, P: 9, O: 1, Cycle: 1}))

	var rcpts []receipt.Receipt
	consumed := 0
	for i := 0; i < 16; i++ {
		beat, err := eng.AdvanceBeat(ctx)
		require.NoError(t, err)
		consumed += beat.Consumed
		rcpts = append(rcpts, beat.Receipts...)
	}

	assert.Equal(t, 1, consumed)
	require.NotEmpty(t, rcpts, "a drained delta that matches a hook yields a receipt")
	assert.Equal(t, uint32(1), rcpts[0].HookID)
}

func TestConcurrentEnqueueAndBeat(t *testing.T) {
	ctx := context.Background()
	eng, err := New(WithShards(2))
	require.NoError(t, err)
	defer eng.Close()

	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 64; i++ {
				d := ring.Delta{S: uint64(g*64 + i), P: 9, Cycle: uint64(i)}
				if err := eng.EnqueueDelta(d); err != nil {
					assert.ErrorIs(t, err, ErrBacklog)
				}
			}
		}(g)
	}

	for i := 0; i < 32; i++ {
		_, err := eng.AdvanceBeat(ctx)
		require.NoError(t, err)
	}
	wg.Wait()
}

func TestRunsAndEvalRun(t *testing.T) {
	ctx := context.Background()
	eng, err := New()
	require.NoError(t, err)
	defer eng.Close()

	assert.Nil(t, eng.Runs(7), "no runs before columns pin")

	require.NoError(t, eng.PinTriples(ctx, testTriples()))

	runs := eng.Runs(7)
	require.Len(t, runs, 1)
	assert.Equal(t, uint32(2), runs[0].Len)

	res, rcpt, err := eng.EvalRun(ctx, Query{Op: kernel.OpAskSP, S: 5, P: 7}, runs[0])
	require.NoError(t, err)
	assert.Equal(t, uint64(1), res.Value)
	assert.NotZero(t, rcpt.SpanID)
}

func TestShardCap(t *testing.T) {
	eng, err := New(WithShards(16))
	require.NoError(t, err)
	defer eng.Close()
	assert.Equal(t, 8, eng.Shards())
}
