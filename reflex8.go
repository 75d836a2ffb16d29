package reflex8

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hupe1980/reflex8/admission"
	"github.com/hupe1980/reflex8/archive"
	"github.com/hupe1980/reflex8/epoch"
	"github.com/hupe1980/reflex8/fiber"
	"github.com/hupe1980/reflex8/kernel"
	"github.com/hupe1980/reflex8/receipt"
	"github.com/hupe1980/reflex8/ring"
	"github.com/hupe1980/reflex8/triple"
	"github.com/hupe1980/reflex8/warm"
)

// Query is a one-shot evaluation request against the pinned columns.
type Query struct {
	Op         kernel.Op
	S, P, O, K uint64
}

// Beat reports one scheduler advance.
type Beat struct {
	// Cycle is the global cycle the beat executed.
	Cycle uint64
	// Tick is the segment index (cycle mod 8) that drained.
	Tick uint64
	// Consumed is the number of deltas drained across all shards.
	Consumed int
	// Pulse is set on every eighth beat, after the commit ran.
	Pulse bool
	// Receipts holds the pulse's drained receipts; nil off-pulse.
	Receipts []receipt.Receipt
	// Commit is the ledger entry when an archiver is configured.
	Commit archive.Commit
}

// shardState is one shard's ring pair, fiber and warm executor.
type shardState struct {
	delta *ring.DeltaRing
	out   *ring.AssertionRing
	fib   *fiber.Fiber
	warm  *warm.Executor
}

// Engine is the execution core: an eight-beat scheduler over sharded
// delta rings, with a warm tier and optional pulse archiving.
type Engine struct {
	opts  options
	sched *epoch.Scheduler
	adm   *admission.Controller

	// mu guards the pinned columns and index. The shard slice is
	// immutable after New and the hot paths never take the lock.
	mu   sync.Mutex
	cols *triple.Columns
	idx  *triple.PredicateIndex

	shards []*shardState
	closed atomic.Bool
}

// fiberMetrics adapts MetricsCollector to the fiber observer.
type fiberMetrics struct {
	mc MetricsCollector
}

func (f fiberMetrics) HotExecuted(op kernel.Op, actualTicks uint64, overrun bool) {
	f.mc.RecordHotExecution(op, actualTicks, overrun)
}

func (f fiberMetrics) Parked(op kernel.Op, lanes int) {
	f.mc.RecordPark(op, lanes)
}

func (f fiberMetrics) Refused(op kernel.Op, reason admission.Reason) {
	f.mc.RecordRefusal(op, reason)
}

// warmMetrics adapts MetricsCollector to the warm observer.
type warmMetrics struct {
	mc MetricsCollector
}

func (w warmMetrics) WarmExecuted(op kernel.Op, latency time.Duration, sloBreached bool) {
	w.mc.RecordWarmExecution(op, latency, sloBreached)
}

// New creates an engine. The zero configuration runs one shard with
// 1024-slot rings and host-derived admission thresholds.
func New(optFns ...Option) (*Engine, error) {
	o := applyOptions(optFns)

	e := &Engine{
		opts:  o,
		sched: &epoch.Scheduler{},
		adm:   admission.NewController(o.admission),
	}

	for i := 0; i < o.shards; i++ {
		delta, err := ring.NewDeltaRing(o.ringCapacity)
		if err != nil {
			return nil, err
		}
		out, err := ring.NewAssertionRing(o.ringCapacity)
		if err != nil {
			return nil, err
		}

		wx := warm.NewExecutor(o.warm, delta, out, warmMetrics{mc: o.metricsCollector})

		fib, err := fiber.New(fiber.Config{
			Shard: uint32(i),
			Delta: delta,
			Out:   out,
			Adm:   e.adm,
			ParkFn: func(w fiber.ParkedWork) {
				if err := wx.Submit(w); err != nil {
					o.metricsCollector.RecordBacklog()
				}
			},
			Observer:      fiberMetrics{mc: o.metricsCollector},
			OverrunCycles: o.overrunCycles,
		})
		if err != nil {
			return nil, err
		}

		e.shards = append(e.shards, &shardState{
			delta: delta,
			out:   out,
			fib:   fib,
			warm:  wx,
		})
	}

	return e, nil
}

// Shards returns the number of execution shards.
func (e *Engine) Shards() int {
	return len(e.shards)
}

// PinColumns materializes the loader's triples into sorted, aligned
// columns and builds the predicate index over them.
func (e *Engine) PinColumns(ctx context.Context, loader triple.Loader) error {
	if e.closed.Load() {
		return ErrClosed
	}

	cols, idx, err := triple.Materialize(ctx, loader)
	if err != nil {
		return err
	}
	e.mu.Lock()
	e.cols = cols
	e.idx = idx
	e.mu.Unlock()

	e.opts.logger.InfoContext(ctx, "columns pinned",
		"rows", cols.Rows(),
		"predicates", len(idx.Predicates()),
		"footprint_bytes", cols.FootprintBytes(),
	)
	return nil
}

// PinTriples is a convenience wrapper over PinColumns for in-memory
// triples.
func (e *Engine) PinTriples(ctx context.Context, triples [][3]uint64) error {
	return e.PinColumns(ctx, triple.SliceLoader(triples))
}

// RegisterHook registers a standing query on every shard. Deltas route
// to shards by subject, so a hook must be present everywhere to match
// regardless of which shard drains the delta; its receipts carry the
// shard that ran the evaluation.
func (e *Engine) RegisterHook(h fiber.Hook) error {
	if e.closed.Load() {
		return ErrClosed
	}
	for _, sh := range e.shards {
		if err := sh.fib.AddHook(h); err != nil {
			return err
		}
	}
	return nil
}

// EnqueueDelta appends a delta to its shard's ring, in the tick segment
// derived from the delta's cycle. A full segment fails with ErrBacklog
// and writes nothing.
func (e *Engine) EnqueueDelta(d ring.Delta) error {
	if e.closed.Load() {
		return ErrClosed
	}
	sh := e.shards[int(d.S)%len(e.shards)]

	err := sh.delta.Enqueue(epoch.Tick(d.Cycle), []ring.Delta{d})
	if err != nil {
		if errors.Is(err, ring.ErrFull) {
			e.opts.metricsCollector.RecordBacklog()
		}
		return translateError(err)
	}
	return nil
}

// EnqueueDeltaWait retries EnqueueDelta under the configured backoff
// until the segment accepts the delta or the context ends.
func (e *Engine) EnqueueDeltaWait(ctx context.Context, d ring.Delta) error {
	for {
		err := e.EnqueueDelta(d)
		if !errors.Is(err, ErrBacklog) {
			return err
		}
		if cerr := ctx.Err(); cerr != nil {
			return fmt.Errorf("%w: %w", err, cerr)
		}
		if werr := e.opts.backoff.Wait(ctx); werr != nil {
			return fmt.Errorf("%w: %w", err, werr)
		}
	}
}

// AdvanceBeat advances the scheduler one cycle and executes the tick on
// every shard. On pulse boundaries the warm tier drains, the assertion
// rings empty into a receipt batch and, when configured, the archiver
// commits the pulse.
func (e *Engine) AdvanceBeat(ctx context.Context) (Beat, error) {
	if e.closed.Load() {
		return Beat{}, ErrClosed
	}
	shards := e.shards

	cycle := e.sched.Next()
	tick := epoch.Tick(cycle)

	beat := Beat{Cycle: cycle, Tick: tick}
	for _, sh := range shards {
		n, err := sh.fib.ExecuteTick(tick, cycle)
		if err != nil {
			return beat, translateError(err)
		}
		beat.Consumed += n
	}
	e.opts.logger.LogBeat(ctx, cycle, tick, beat.Consumed)

	if !epoch.Pulse(cycle) {
		return beat, nil
	}

	start := time.Now()
	beat.Pulse = true

	for _, sh := range shards {
		if err := sh.warm.Drain(ctx); err != nil {
			return beat, err
		}
	}
	beat.Receipts = e.drainReceipts(shards)

	if e.opts.archiver != nil {
		commit, err := e.opts.archiver.ArchivePulse(ctx, cycle, beat.Receipts)
		e.opts.metricsCollector.RecordArchive(len(beat.Receipts), err)
		e.opts.logger.LogArchive(ctx, commit.Segment, len(beat.Receipts), err)
		if err != nil {
			return beat, err
		}
		beat.Commit = commit
	}

	duration := time.Since(start)
	e.opts.metricsCollector.RecordPulse(cycle, len(beat.Receipts), duration)
	e.opts.logger.LogPulse(ctx, cycle, len(beat.Receipts), duration, nil)
	return beat, nil
}

// drainReceipts empties every tick segment of every shard's assertion
// ring.
func (e *Engine) drainReceipts(shards []*shardState) []receipt.Receipt {
	var rcpts []receipt.Receipt
	buf := make([]ring.Assertion, 64)
	for _, sh := range shards {
		for tick := uint64(0); tick < epoch.Beats; tick++ {
			for {
				n, err := sh.out.Dequeue(tick, buf)
				if err != nil || n == 0 {
					break
				}
				for i := 0; i < n; i++ {
					rcpts = append(rcpts, buf[i].Receipt)
				}
			}
		}
	}
	return rcpts
}

// EvalBool evaluates one query against the pinned columns. Runs within
// the hot budget dispatch inline; longer or cache-heavy runs detour
// through the warm tier. The verdict aggregates across all runs of the
// query's predicate, and the receipt folds every run's receipt.
func (e *Engine) EvalBool(ctx context.Context, q Query) (bool, receipt.Receipt, error) {
	if e.closed.Load() {
		return false, receipt.Receipt{}, ErrClosed
	}
	e.mu.Lock()
	cols, idx := e.cols, e.idx
	e.mu.Unlock()
	sh := e.shards[0]

	if cols == nil {
		return false, receipt.Receipt{}, ErrNoColumns
	}

	h := fiber.Hook{ID: 0, Op: q.Op, S: q.S, P: q.P, O: q.O, K: q.K}
	cycle := e.sched.Current()

	var (
		count uint64
		value uint64
		rcpts []receipt.Receipt
	)
	for _, run := range idx.Runs(q.P) {
		v := e.adm.Classify(cols, run, q.Op)
		switch v.Tier {
		case admission.Hot:
			res, rcpt, err := fiber.Eval(cycle, 0, h, cols, run)
			if err != nil {
				return false, receipt.Receipt{}, translateError(err)
			}
			count += res.Count
			value |= res.Value
			rcpts = append(rcpts, rcpt)

		case admission.Warm, admission.Cold:
			res, rcpt, err := sh.warm.Eval(ctx, cycle, 0, h, cols, run)
			if err != nil {
				return false, receipt.Receipt{}, translateError(err)
			}
			count += res.Count
			if res.OK {
				value |= 1
			}
			rcpts = append(rcpts, rcpt)

		case admission.Refuse:
			e.opts.metricsCollector.RecordRefusal(q.Op, v.Reason)
			return false, receipt.Receipt{}, &ErrRefusedQuery{
				Op:     uint8(q.Op),
				Reason: v.Reason,
				cause:  admission.ErrRefused,
			}
		}
	}

	return decide(q.Op, q.K, count, value), receipt.Fold(rcpts...), nil
}

// Runs returns the pinned runs of a predicate, chopped to the hot
// window width. Nil when no columns are pinned or the predicate is
// absent.
func (e *Engine) Runs(pred uint64) []triple.Run {
	e.mu.Lock()
	idx := e.idx
	e.mu.Unlock()

	if idx == nil {
		return nil
	}
	return idx.Runs(pred)
}

// EvalRun evaluates one query over a single pre-pinned run, skipping
// the index walk of EvalBool. The run must come from Runs (or honor the
// same bounds); admission still classifies it.
func (e *Engine) EvalRun(ctx context.Context, q Query, run triple.Run) (kernel.Result, receipt.Receipt, error) {
	if e.closed.Load() {
		return kernel.Result{}, receipt.Receipt{}, ErrClosed
	}
	e.mu.Lock()
	cols := e.cols
	e.mu.Unlock()
	sh := e.shards[0]

	if cols == nil {
		return kernel.Result{}, receipt.Receipt{}, ErrNoColumns
	}

	h := fiber.Hook{ID: 0, Op: q.Op, S: q.S, P: q.P, O: q.O, K: q.K}
	cycle := e.sched.Current()

	v := e.adm.Classify(cols, run, q.Op)
	switch v.Tier {
	case admission.Hot:
		return fiber.Eval(cycle, 0, h, cols, run)
	case admission.Warm, admission.Cold:
		res, rcpt, err := sh.warm.Eval(ctx, cycle, 0, h, cols, run)
		if err != nil {
			return kernel.Result{}, receipt.Receipt{}, err
		}
		out := kernel.Result{Count: res.Count}
		if res.OK {
			out.Value = 1
		}
		return out, rcpt, nil
	default:
		e.opts.metricsCollector.RecordRefusal(q.Op, v.Reason)
		return kernel.Result{}, receipt.Receipt{}, &ErrRefusedQuery{
			Op:     uint8(q.Op),
			Reason: v.Reason,
			cause:  admission.ErrRefused,
		}
	}
}

// decide turns aggregate run results into the query verdict. Run-local
// booleans do not compose for count thresholds; the aggregate count
// decides.
func decide(op kernel.Op, k, count, value uint64) bool {
	switch op {
	case kernel.OpCountSPGE, kernel.OpCountOPGE:
		return count >= k
	case kernel.OpCountSPLE, kernel.OpCountOPLE:
		return count <= k
	case kernel.OpCountSPEQ, kernel.OpCountOPEQ:
		return count == k
	case kernel.OpUniqueSP:
		return count == 1
	default:
		return value != 0
	}
}

// EvalBatch evaluates up to eight queries, one receipt and verdict per
// query. More than eight fails before any evaluation runs.
func (e *Engine) EvalBatch(ctx context.Context, qs []Query) ([]bool, []receipt.Receipt, error) {
	if len(qs) > kernel.Lanes {
		return nil, nil, ErrBatchTooLarge
	}

	oks := make([]bool, len(qs))
	rcpts := make([]receipt.Receipt, len(qs))
	for i, q := range qs {
		ok, rcpt, err := e.EvalBool(ctx, q)
		if err != nil {
			return nil, nil, err
		}
		oks[i] = ok
		rcpts[i] = rcpt
	}
	return oks, rcpts, nil
}

// Construct runs the hook's CONSTRUCT8 over every run of its predicate
// in the pinned columns, emitting triples and receipts to shard 0's
// assertion ring.
func (e *Engine) Construct(ctx context.Context, h fiber.Hook) (warm.Result, error) {
	if e.closed.Load() {
		return warm.Result{}, ErrClosed
	}
	e.mu.Lock()
	cols, idx := e.cols, e.idx
	e.mu.Unlock()
	sh := e.shards[0]

	if cols == nil {
		return warm.Result{}, ErrNoColumns
	}

	cycle := e.sched.Current()
	tick := epoch.Tick(cycle)

	var total warm.Result
	for _, run := range idx.Runs(h.P) {
		res, err := sh.warm.Construct(ctx, cycle, h, cols, run, tick)
		if err != nil {
			return warm.Result{}, err
		}
		total.OK = total.OK || res.OK
		total.Count += res.Count
		total.Emitted += res.Emitted
		total.Lanes += res.Lanes
		total.Latency += res.Latency
		total.SLOBreached = total.SLOBreached || res.SLOBreached
		total.SpanID ^= res.SpanID
	}
	return total, nil
}

// Close drains the warm tier and shuts the engine down. Idempotent.
func (e *Engine) Close() error {
	if !e.closed.CompareAndSwap(false, true) {
		return nil
	}

	ctx := context.Background()
	for _, sh := range e.shards {
		if err := sh.warm.Drain(ctx); err != nil {
			return err
		}
	}
	e.opts.logger.InfoContext(ctx, "engine closed")
	return nil
}
