package warm

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/hupe1980/reflex8/fiber"
	"github.com/hupe1980/reflex8/kernel"
	"github.com/hupe1980/reflex8/receipt"
	"github.com/hupe1980/reflex8/ring"
	"github.com/hupe1980/reflex8/triple"
)

// ErrQueueFull is returned when the parked-work queue cannot accept more.
var ErrQueueFull = errors.New("warm queue full")

// Result reports one warm execution.
type Result struct {
	// OK is the boolean outcome for query operations; for Construct8
	// it is true when at least one triple was emitted.
	OK bool
	// Count is the aggregate matching-lane count across chunks.
	Count uint64
	// Emitted is the number of constructed triples.
	Emitted int
	// Lanes is the summed SIMD width across chunks.
	Lanes uint32
	// Latency is the wall time of the execution.
	Latency time.Duration
	// SLOBreached is set when Latency exceeded the objective. Reported,
	// never an error.
	SLOBreached bool
	// SpanID traces the execution; folded across chunks.
	SpanID uint64
}

// Config tunes the executor.
type Config struct {
	// Concurrency bounds simultaneous warm executions. Defaults to 4.
	Concurrency int64
	// SLO is the soft latency objective. Defaults to 1ms.
	SLO time.Duration
	// QueueDepth bounds the parked-work queue. Defaults to 256.
	QueueDepth int
}

// Observer receives warm-tier events.
type Observer interface {
	WarmExecuted(op kernel.Op, latency time.Duration, sloBreached bool)
}

// NoopObserver discards all events.
type NoopObserver struct{}

func (NoopObserver) WarmExecuted(kernel.Op, time.Duration, bool) {}

// Executor runs warm work under a concurrency bound.
type Executor struct {
	cfg     Config
	sem     *semaphore.Weighted
	queue   chan fiber.ParkedWork
	tracker *Tracker
	obs     Observer

	// delta is used to clear PARKED marks; out receives warm receipts.
	delta *ring.DeltaRing
	out   *ring.AssertionRing
}

// NewExecutor builds a warm executor bound to the engine's rings.
func NewExecutor(cfg Config, delta *ring.DeltaRing, out *ring.AssertionRing, obs Observer) *Executor {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.SLO <= 0 {
		cfg.SLO = time.Millisecond
	}
	if cfg.QueueDepth <= 0 {
		cfg.QueueDepth = 256
	}
	if obs == nil {
		obs = NoopObserver{}
	}
	segSize := uint(8)
	if delta != nil {
		segSize = uint(delta.SegmentSize())
	}
	return &Executor{
		cfg:     cfg,
		sem:     semaphore.NewWeighted(cfg.Concurrency),
		queue:   make(chan fiber.ParkedWork, cfg.QueueDepth),
		tracker: NewTracker(segSize),
		obs:     obs,
		delta:   delta,
		out:     out,
	}
}

// Tracker exposes the parked-slot bookkeeping.
func (e *Executor) Tracker() *Tracker {
	return e.tracker
}

// Submit hands parked work to the executor. Non-blocking; a full queue
// surfaces as ErrQueueFull so the caller can count the loss.
func (e *Executor) Submit(w fiber.ParkedWork) error {
	select {
	case e.queue <- w:
		for _, seq := range w.Seqs {
			e.tracker.Mark(w.Tick, seq)
		}
		return nil
	default:
		return ErrQueueFull
	}
}

// Drain processes queued parked work until the queue is empty, using up
// to Concurrency workers. Called at pulse boundaries and on close.
func (e *Executor) Drain(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for i := int64(0); i < e.cfg.Concurrency; i++ {
		g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case w, ok := <-e.queue:
					if !ok {
						return nil
					}
					if err := e.process(ctx, w); err != nil {
						return err
					}
				default:
					return nil
				}
			}
		})
	}
	return g.Wait()
}

// process executes one unit of parked work and publishes its receipt.
func (e *Executor) process(ctx context.Context, w fiber.ParkedWork) error {
	if err := e.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer e.sem.Release(1)

	cols, err := columnsFromDeltas(w.Deltas)
	if err != nil {
		return err
	}
	run := triple.Run{Pred: w.Hook.P, Off: 0, Len: uint32(len(w.Deltas))}

	var rcpt receipt.Receipt
	if w.Hook.Op == kernel.OpConstruct8 {
		_, rcpt, err = e.construct(w.Cycle, 0, w.Hook, cols, run, w.Tick)
	} else {
		_, rcpt, err = e.evalChunked(w.Cycle, 0, w.Hook, cols, run)
	}
	if err != nil {
		return err
	}

	if e.out != nil {
		// A full segment leaves the slots parked so the loss is visible.
		if err := e.out.Enqueue(w.Tick, []ring.Assertion{{Receipt: rcpt}}); err != nil {
			return err
		}
	}
	if e.delta != nil {
		for _, seq := range w.Seqs {
			e.delta.Unpark(w.Tick, seq)
			e.tracker.Clear(w.Tick, seq)
		}
	}
	return nil
}

// Eval runs a degraded query synchronously under the concurrency bound,
// chunking runs that exceed the hot window.
func (e *Executor) Eval(ctx context.Context, cycle uint64, shard uint32, h fiber.Hook, cols *triple.Columns, run triple.Run) (Result, receipt.Receipt, error) {
	if err := e.sem.Acquire(ctx, 1); err != nil {
		return Result{}, receipt.Receipt{}, err
	}
	defer e.sem.Release(1)

	return e.evalChunked(cycle, shard, h, cols, run)
}

// Construct runs CONSTRUCT8 synchronously under the concurrency bound.
// The emitted triples are appended to the assertion ring at the given
// tick together with the receipt.
func (e *Executor) Construct(ctx context.Context, cycle uint64, h fiber.Hook, cols *triple.Columns, run triple.Run, tick uint64) (Result, error) {
	if err := e.sem.Acquire(ctx, 1); err != nil {
		return Result{}, err
	}
	defer e.sem.Release(1)

	res, rcpt, err := e.construct(cycle, 0, h, cols, run, tick)
	if err != nil {
		return Result{}, err
	}
	if e.out != nil {
		if err := e.out.Enqueue(tick, []ring.Assertion{{Receipt: rcpt}}); err != nil {
			return Result{}, err
		}
	}
	return res, nil
}

// construct chunks the run and emits triples for live lanes.
func (e *Executor) construct(cycle uint64, shard uint32, h fiber.Hook, cols *triple.Columns, run triple.Run, tick uint64) (Result, receipt.Receipt, error) {
	start := time.Now()

	outS := make([]uint64, triple.Lanes)
	outP := make([]uint64, triple.Lanes)
	outO := make([]uint64, triple.Lanes)

	var (
		emitted   int
		assertion []ring.Assertion
		folded    receipt.Receipt
		first     = true
	)

	for _, chunk := range run.Chunks() {
		s, _, _, err := chunk.HotWindow(cols)
		if err != nil {
			return Result{}, receipt.Receipt{}, err
		}

		t0 := kernel.Cycles()
		mask := kernel.Construct8(s, uint64(chunk.Len), h.ConstP, h.ConstO, outS, outP, outO)
		elapsed := kernel.Cycles() - t0

		for i := 0; i < triple.Lanes; i++ {
			if mask&(1<<i) == 0 {
				continue
			}
			emitted++
			assertion = append(assertion, ring.Assertion{S: outS[i], P: outP[i], O: outO[i]})
		}

		ahash := h.S ^ h.P ^ h.O ^ h.K ^ mask ^ run.Pred
		rcpt := receipt.Receipt{
			CycleID:     cycle,
			ShardID:     shard,
			HookID:      h.ID,
			Ticks:       kernel.ConstructMaxTicks,
			ActualTicks: elapsed,
			Lanes:       kernel.Lanes,
			SpanID:      receipt.SpanID(cycle, shard, h.ID, uint64(h.Op), h.S, h.P, h.O, h.K),
			AHash:       ahash,
		}
		if first {
			folded = rcpt
			first = false
		} else {
			folded = receipt.Merge(folded, rcpt)
		}
	}

	if e.out != nil && len(assertion) > 0 {
		if err := e.out.Enqueue(tick, assertion); err != nil {
			return Result{}, receipt.Receipt{}, err
		}
	}

	latency := time.Since(start)
	breached := latency > e.cfg.SLO
	e.obs.WarmExecuted(h.Op, latency, breached)

	return Result{
		OK:          emitted > 0,
		Count:       uint64(emitted),
		Emitted:     emitted,
		Lanes:       folded.Lanes,
		Latency:     latency,
		SLOBreached: breached,
		SpanID:      folded.SpanID,
	}, folded, nil
}

// evalChunked evaluates a hot-style operation that was degraded to warm
// (long run, misaligned source copied into scratch). Chunk receipts fold
// with the receipt monoid.
func (e *Executor) evalChunked(cycle uint64, shard uint32, h fiber.Hook, cols *triple.Columns, run triple.Run) (Result, receipt.Receipt, error) {
	start := time.Now()

	var (
		folded receipt.Receipt
		count  uint64
		value  uint64
		first  = true
	)
	for _, chunk := range run.Chunks() {
		res, rcpt, err := fiber.Eval(cycle, shard, h, cols, chunk)
		if err != nil {
			return Result{}, receipt.Receipt{}, err
		}
		count += res.Count
		value |= res.Value
		if first {
			folded = rcpt
			first = false
		} else {
			folded = receipt.Merge(folded, rcpt)
		}
	}

	// Chunk-local booleans do not compose for count thresholds; the
	// aggregate count decides.
	var ok bool
	switch h.Op {
	case kernel.OpCountSPGE, kernel.OpCountOPGE:
		ok = count >= h.K
	case kernel.OpCountSPLE, kernel.OpCountOPLE:
		ok = count <= h.K
	case kernel.OpCountSPEQ, kernel.OpCountOPEQ:
		ok = count == h.K
	case kernel.OpUniqueSP:
		ok = count == 1
	default:
		ok = value != 0
	}

	latency := time.Since(start)
	breached := latency > e.cfg.SLO
	e.obs.WarmExecuted(h.Op, latency, breached)

	return Result{
		OK:          ok,
		Count:       count,
		Lanes:       folded.Lanes,
		Latency:     latency,
		SLOBreached: breached,
		SpanID:      folded.SpanID,
	}, folded, nil
}

// columnsFromDeltas copies parked deltas into fresh aligned scratch.
func columnsFromDeltas(ds []ring.Delta) (*triple.Columns, error) {
	cols, err := triple.NewColumns(len(ds))
	if err != nil {
		return nil, err
	}
	for i, d := range ds {
		if err := cols.Set(i, d.S, d.P, d.O); err != nil {
			return nil, err
		}
	}
	return cols, nil
}
