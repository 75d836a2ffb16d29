// Package fiber implements the per-shard execution state machine that
// moves work from the delta ring through admission and the kernels to the
// assertion ring.
//
// A fiber walks Idle -> Fetching -> Classifying -> Executing -> Committing
// every tick it finds work, detouring through Parked when admission sends
// an operation to the warm tier. One fiber owns one shard; fibers never
// share scratch state.
package fiber

import (
	"errors"

	"github.com/hupe1980/reflex8/admission"
	"github.com/hupe1980/reflex8/kernel"
	"github.com/hupe1980/reflex8/receipt"
	"github.com/hupe1980/reflex8/ring"
	"github.com/hupe1980/reflex8/triple"
)

// State is the fiber's position in its execution cycle.
type State uint8

const (
	// Idle means no work was available last tick.
	Idle State = iota
	// Fetching means the fiber is draining its delta segment.
	Fetching
	// Classifying means admission is running.
	Classifying
	// Executing means a hot kernel is running.
	Executing
	// Committing means receipts are being folded and published.
	Committing
	// Parked means the last tick deferred work to the warm tier.
	Parked
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Fetching:
		return "fetching"
	case Classifying:
		return "classifying"
	case Executing:
		return "executing"
	case Committing:
		return "committing"
	case Parked:
		return "parked"
	default:
		return "unknown"
	}
}

var (
	// ErrNilRing is returned when a fiber is built without both rings.
	ErrNilRing = errors.New("fiber requires delta and assertion rings")

	// ErrUnknownOp is returned when a hook names no operation.
	ErrUnknownOp = errors.New("hook operation unknown")
)

// Hook is one registered standing query, pre-validated at registration.
type Hook struct {
	ID uint32
	Op kernel.Op

	// Query operands.
	S, P, O, K uint64

	// Construct8 emission constants.
	ConstP, ConstO uint64
}

// ParkedWork is a self-contained copy of deferred work handed to the warm
// tier. Tick and Seqs locate the source slots whose PARKED marks the warm
// tier clears when done.
type ParkedWork struct {
	Tick   uint64
	Cycle  uint64
	Seqs   []uint64
	Deltas []ring.Delta
	Hook   Hook
}

// Observer receives execution events. Implementations must be cheap; the
// hot path calls them synchronously.
type Observer interface {
	HotExecuted(op kernel.Op, actualTicks uint64, overrun bool)
	Parked(op kernel.Op, lanes int)
	Refused(op kernel.Op, reason admission.Reason)
}

// NoopObserver discards all events.
type NoopObserver struct{}

func (NoopObserver) HotExecuted(kernel.Op, uint64, bool) {}
func (NoopObserver) Parked(kernel.Op, int)               {}
func (NoopObserver) Refused(kernel.Op, admission.Reason) {}

// Config wires a fiber.
type Config struct {
	Shard uint32
	Delta *ring.DeltaRing
	Out   *ring.AssertionRing
	Adm   *admission.Controller

	// ParkFn receives deferred work. Nil drops parked work after
	// marking the slots, which is only acceptable in tests.
	ParkFn func(ParkedWork)

	// Observer defaults to NoopObserver.
	Observer Observer

	// OverrunCycles flags hot executions whose measured cycle delta
	// exceeds this threshold. Zero disables the check (the raw value
	// still lands in every receipt).
	OverrunCycles uint64
}

// Fiber is a single-shard executor. Not safe for concurrent use; the
// engine drives each fiber from one goroutine.
type Fiber struct {
	cfg   Config
	state State

	hooks []Hook

	// Scratch window, reused every tick.
	cols   *triple.Columns
	deltas [triple.Lanes]ring.Delta

	// tickReceipt folds all hook receipts of the current tick.
	tickReceipt receipt.Receipt
}

// New builds a fiber. Both rings and the admission controller are
// required; this is checked once here and never again on the hot path.
func New(cfg Config) (*Fiber, error) {
	if cfg.Delta == nil || cfg.Out == nil {
		return nil, ErrNilRing
	}
	if cfg.Adm == nil {
		cfg.Adm = admission.NewController(admission.Config{})
	}
	if cfg.Observer == nil {
		cfg.Observer = NoopObserver{}
	}
	cols, err := triple.NewColumns(triple.Lanes)
	if err != nil {
		return nil, err
	}
	return &Fiber{cfg: cfg, cols: cols}, nil
}

// AddHook registers a standing query. Validation happens here, once.
func (f *Fiber) AddHook(h Hook) error {
	if !h.Op.Known() {
		return ErrUnknownOp
	}
	f.hooks = append(f.hooks, h)
	return nil
}

// State returns the fiber's state after its last tick.
func (f *Fiber) State() State {
	return f.state
}

// TickReceipt returns the folded receipt of the last non-idle tick.
func (f *Fiber) TickReceipt() receipt.Receipt {
	return f.tickReceipt
}

// ExecuteTick drains the fiber's delta segment for the tick and evaluates
// every registered hook against the fetched window. Returns the number of
// deltas consumed.
func (f *Fiber) ExecuteTick(tick, cycle uint64) (int, error) {
	f.state = Fetching
	n, seqBase, err := f.cfg.Delta.Dequeue(tick, f.deltas[:])
	if err != nil {
		f.state = Idle
		return 0, err
	}
	if n == 0 {
		f.state = Idle
		return 0, nil
	}

	// Load the scratch window: fetched rows first, dead lanes zeroed.
	for i := 0; i < triple.Lanes; i++ {
		var d ring.Delta
		if i < n {
			d = f.deltas[i]
		}
		f.cols.S[i] = d.S
		f.cols.P[i] = d.P
		f.cols.O[i] = d.O
	}

	parked := false
	var out []ring.Assertion

	for _, h := range f.hooks {
		f.state = Classifying
		run := triple.Run{Pred: h.P, Off: 0, Len: uint32(n)}
		v := f.cfg.Adm.Classify(f.cols, run, h.Op)

		switch v.Tier {
		case admission.Hot:
			f.state = Executing
			_, rcpt, err := Eval(cycle, f.cfg.Shard, h, f.cols, run)
			if err != nil {
				return 0, err
			}
			overrun := f.cfg.OverrunCycles > 0 && rcpt.ActualTicks > f.cfg.OverrunCycles
			f.cfg.Observer.HotExecuted(h.Op, rcpt.ActualTicks, overrun)
			out = append(out, ring.Assertion{Receipt: rcpt})

		case admission.Warm, admission.Cold:
			f.state = Parked
			parked = true
			w := ParkedWork{
				Tick:   tick,
				Cycle:  cycle,
				Seqs:   make([]uint64, n),
				Deltas: append([]ring.Delta(nil), f.deltas[:n]...),
				Hook:   h,
			}
			for i := 0; i < n; i++ {
				w.Seqs[i] = seqBase + uint64(i)
				_ = f.cfg.Delta.Park(tick, w.Seqs[i])
			}
			f.cfg.Observer.Parked(h.Op, n)
			if f.cfg.ParkFn != nil {
				f.cfg.ParkFn(w)
			}

		case admission.Refuse:
			// First-class outcome: counted, no receipt, no error.
			f.cfg.Observer.Refused(h.Op, v.Reason)
		}
	}

	f.state = Committing
	f.tickReceipt = receipt.Fold(extractReceipts(out)...)
	if len(out) > 0 {
		if err := f.cfg.Out.Enqueue(tick, out); err != nil {
			return n, err
		}
	}

	if parked {
		f.state = Parked
	} else {
		f.state = Idle
	}
	return n, nil
}

func extractReceipts(as []ring.Assertion) []receipt.Receipt {
	rs := make([]receipt.Receipt, len(as))
	for i, a := range as {
		rs[i] = a.Receipt
	}
	return rs
}

// Eval runs one hot dispatch over a pinned window and stamps its receipt.
// The receipt's assertion hash binds the operands, the boolean result and
// the run predicate; count-family operations fold in the lane count.
// Lanes is always the full kernel width, independent of matches.
func Eval(cycle uint64, shard uint32, h Hook, cols *triple.Columns, run triple.Run) (kernel.Result, receipt.Receipt, error) {
	s, p, o, err := run.HotWindow(cols)
	if err != nil {
		return kernel.Result{}, receipt.Receipt{}, err
	}

	args := kernel.Args{
		S:    h.S,
		P:    h.P,
		O:    h.O,
		K:    h.K,
		Pred: run.Pred,
		Len:  uint64(run.Len),
	}

	start := kernel.Cycles()
	res, ok := kernel.Dispatch(h.Op, s, p, o, &args)
	elapsed := kernel.Cycles() - start
	if !ok {
		return kernel.Result{}, receipt.Receipt{}, admission.ErrRefused
	}

	ahash := h.S ^ h.P ^ h.O ^ h.K ^ res.Value ^ run.Pred
	if h.Op.Counted() {
		ahash ^= res.Count
	}

	rcpt := receipt.Receipt{
		CycleID:     cycle,
		ShardID:     shard,
		HookID:      h.ID,
		Ticks:       h.Op.Cost(),
		ActualTicks: elapsed,
		Lanes:       kernel.Lanes,
		SpanID:      receipt.SpanID(cycle, shard, h.ID, uint64(h.Op), h.S, h.P, h.O, h.K),
		AHash:       ahash,
	}
	return res, rcpt, nil
}
