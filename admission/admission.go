// Package admission classifies operations into execution tiers before any
// work is done. The hot tier runs only constructions that were proven
// cheap: known operation, 8-lane run, aligned columns, cost inside the
// tick budget. Everything else degrades to warm or cold, or is refused
// outright. Refusal is a first-class outcome, not an error.
package admission

import (
	"errors"

	"github.com/hupe1980/reflex8/internal/mem"
	"github.com/hupe1980/reflex8/kernel"
	"github.com/hupe1980/reflex8/triple"
)

// ErrRefused is returned when a caller insists on executing a refused
// operation.
var ErrRefused = errors.New("admission refused")

// Tier is the execution tier assigned to an operation.
type Tier uint8

const (
	// Refuse means the operation will not run at all.
	Refuse Tier = iota
	// Hot runs on the bounded-latency 8-lane path.
	Hot
	// Warm runs off the hot path under a soft latency objective.
	Warm
	// Cold runs without a latency objective.
	Cold
)

// String returns the tier name.
func (t Tier) String() string {
	switch t {
	case Refuse:
		return "refuse"
	case Hot:
		return "hot"
	case Warm:
		return "warm"
	case Cold:
		return "cold"
	default:
		return "unknown"
	}
}

// Reason explains a classification.
type Reason uint8

const (
	// ReasonOK means all hot criteria held.
	ReasonOK Reason = iota
	// ReasonUnknownOp means the operation code names nothing.
	ReasonUnknownOp
	// ReasonMisaligned means a column base missed 64-byte alignment.
	ReasonMisaligned
	// ReasonRunTooLong means the run exceeds one 8-lane window.
	ReasonRunTooLong
	// ReasonWarmOp means the operation is warm-only by cost (Construct8).
	ReasonWarmOp
	// ReasonFootprint means the working set exceeds the last-level cache.
	ReasonFootprint
)

// String returns the reason name.
func (r Reason) String() string {
	switch r {
	case ReasonOK:
		return "ok"
	case ReasonUnknownOp:
		return "unknown_op"
	case ReasonMisaligned:
		return "misaligned"
	case ReasonRunTooLong:
		return "run_too_long"
	case ReasonWarmOp:
		return "warm_op"
	case ReasonFootprint:
		return "footprint"
	default:
		return "unknown"
	}
}

// Verdict is the outcome of classification.
type Verdict struct {
	Tier           Tier
	Reason         Reason
	EstimatedTicks uint8
}

// Config bounds the hot tier.
type Config struct {
	// TickBudget is the per-tick cost budget. Defaults to 8.
	TickBudget uint8

	// L2Bytes and LLCBytes bound the working-set locality model.
	// Zero means detect from the CPU.
	L2Bytes  int64
	LLCBytes int64
}

// Controller classifies operations. Immutable after construction; safe
// for concurrent use.
type Controller struct {
	cfg Config
}

// NewController builds a controller, filling unset limits from the
// detected cache geometry.
func NewController(cfg Config) *Controller {
	if cfg.TickBudget == 0 {
		cfg.TickBudget = 8
	}
	if cfg.L2Bytes <= 0 || cfg.LLCBytes <= 0 {
		l2, llc := kernel.CacheGeometry()
		if cfg.L2Bytes <= 0 {
			cfg.L2Bytes = l2
		}
		if cfg.LLCBytes <= 0 {
			cfg.LLCBytes = llc
		}
	}
	return &Controller{cfg: cfg}
}

// Config returns the effective configuration.
func (c *Controller) Config() Config {
	return c.cfg
}

// Classify assigns a tier to one operation over one run.
//
// The hot tier requires all of: a known hot operation, a run of at most
// 8 rows, 64-byte aligned columns, and nominal cost within the tick
// budget. A failed criterion degrades the operation by working-set size:
// inside L2 it runs warm, inside the last-level cache it runs cold,
// beyond that it is refused.
func (c *Controller) Classify(cols *triple.Columns, run triple.Run, op kernel.Op) Verdict {
	if !op.Known() {
		return Verdict{Tier: Refuse, Reason: ReasonUnknownOp}
	}

	cost := op.Cost()
	aligned := mem.IsAligned(cols.S) && mem.IsAligned(cols.P) && mem.IsAligned(cols.O)

	switch {
	case !aligned:
		return c.degrade(cols, ReasonMisaligned, cost)
	case !run.HotEligible():
		return c.degrade(cols, ReasonRunTooLong, cost)
	case !op.Hot() || cost > c.cfg.TickBudget:
		// Construct8 lands here: admissible, never hot.
		return c.degrade(cols, ReasonWarmOp, cost)
	default:
		return Verdict{Tier: Hot, Reason: ReasonOK, EstimatedTicks: cost}
	}
}

// degrade places a non-hot operation by working-set locality.
func (c *Controller) degrade(cols *triple.Columns, why Reason, cost uint8) Verdict {
	footprint := cols.FootprintBytes()
	switch {
	case footprint <= c.cfg.L2Bytes:
		return Verdict{Tier: Warm, Reason: why, EstimatedTicks: cost}
	case footprint <= c.cfg.LLCBytes:
		return Verdict{Tier: Cold, Reason: why, EstimatedTicks: cost}
	default:
		return Verdict{Tier: Refuse, Reason: ReasonFootprint, EstimatedTicks: cost}
	}
}
