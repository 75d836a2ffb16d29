package reflex8

import (
	"log/slog"

	"github.com/hupe1980/reflex8/admission"
	"github.com/hupe1980/reflex8/archive"
	"github.com/hupe1980/reflex8/warm"
)

type options struct {
	ringCapacity     int
	shards           int
	admission        admission.Config
	warm             warm.Config
	archiver         *archive.Archiver
	overrunCycles    uint64
	backoff          *warm.Backoff
	metricsCollector MetricsCollector
	logger           *Logger
}

// Option configures Engine constructor behavior.
type Option func(*options)

// WithRingCapacity configures the per-shard ring capacity. Must be a
// power of two of at least 64; eight tick segments divide it evenly.
func WithRingCapacity(capacity int) Option {
	return func(o *options) {
		o.ringCapacity = capacity
	}
}

// WithShards configures the number of execution shards, capped at 8.
// Each shard owns its own ring pair and fiber, so shards never contend
// on the hot path.
//
// If shards <= 1, a single shard is used.
func WithShards(shards int) Option {
	return func(o *options) {
		o.shards = shards
	}
}

// WithAdmissionConfig overrides the admission controller configuration.
// The zero value derives cache thresholds from the host CPU.
func WithAdmissionConfig(cfg admission.Config) Option {
	return func(o *options) {
		o.admission = cfg
	}
}

// WithWarmConfig tunes the warm-tier executor (concurrency, latency
// objective, queue depth).
func WithWarmConfig(cfg warm.Config) Option {
	return func(o *options) {
		o.warm = cfg
	}
}

// WithArchiver enables pulse archiving. When set, every pulse's folded
// receipts are written to the archiver's blob store and ledger.
func WithArchiver(a *archive.Archiver) Option {
	return func(o *options) {
		o.archiver = a
	}
}

// WithOverrunCycles flags hot executions whose measured cycle delta
// exceeds the threshold. Zero disables the check; the raw measurement
// still lands in every receipt.
func WithOverrunCycles(cycles uint64) Option {
	return func(o *options) {
		o.overrunCycles = cycles
	}
}

// WithBackoff configures the retry pacing used by EnqueueDeltaWait when
// a tick segment is backlogged.
func WithBackoff(b *warm.Backoff) Option {
	return func(o *options) {
		o.backoff = b
	}
}

// WithMetricsCollector configures a metrics collector for monitoring
// operations. Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &reflex8.BasicMetricsCollector{}
//	eng, _ := reflex8.New(reflex8.WithMetricsCollector(metrics))
//	// ... use eng ...
//	stats := metrics.GetStats()
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := reflex8.NewJSONLogger(slog.LevelInfo)
//	eng, _ := reflex8.New(reflex8.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		ringCapacity:     1024,
		shards:           1,
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	if o.shards < 1 {
		o.shards = 1
	}
	if o.shards > 8 {
		o.shards = 8
	}
	return o
}
