// Package prom provides a Prometheus implementation of the engine's
// MetricsCollector interface.
package prom

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hupe1980/reflex8/admission"
	"github.com/hupe1980/reflex8/kernel"
)

// Collector implements reflex8.MetricsCollector on Prometheus.
type Collector struct {
	hotExecutions *prometheus.CounterVec
	hotOverruns   prometheus.Counter
	hotTicks      prometheus.Histogram

	parks    *prometheus.CounterVec
	refusals *prometheus.CounterVec

	warmExecutions *prometheus.CounterVec
	warmBreaches   prometheus.Counter
	warmLatency    prometheus.Histogram

	pulses        prometheus.Counter
	pulseReceipts prometheus.Counter
	pulseDuration prometheus.Histogram

	archives      prometheus.Counter
	archiveErrors prometheus.Counter

	backlog prometheus.Counter
}

// NewCollector builds and registers the collector's metrics. Pass
// prometheus.DefaultRegisterer for the default registry.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	c := &Collector{
		hotExecutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reflex8_hot_executions_total",
			Help: "Hot-path kernel dispatches by operation.",
		}, []string{"op"}),
		hotOverruns: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reflex8_hot_overruns_total",
			Help: "Hot executions whose cycle delta exceeded the threshold.",
		}),
		hotTicks: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "reflex8_hot_cycles",
			Help:    "Measured cycle-counter delta per hot dispatch.",
			Buckets: prometheus.ExponentialBuckets(8, 2, 12),
		}),
		parks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reflex8_parks_total",
			Help: "Work units deferred to the warm tier by operation.",
		}, []string{"op"}),
		refusals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reflex8_refusals_total",
			Help: "Admission refusals by reason.",
		}, []string{"reason"}),
		warmExecutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reflex8_warm_executions_total",
			Help: "Warm-tier executions by operation.",
		}, []string{"op"}),
		warmBreaches: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reflex8_warm_slo_breaches_total",
			Help: "Warm executions that exceeded the latency objective.",
		}),
		warmLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "reflex8_warm_latency_seconds",
			Help:    "Warm-tier execution latency.",
			Buckets: prometheus.ExponentialBuckets(1e-5, 2, 14),
		}),
		pulses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reflex8_pulses_total",
			Help: "Pulse-boundary commits.",
		}),
		pulseReceipts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reflex8_pulse_receipts_total",
			Help: "Receipts folded at pulse boundaries.",
		}),
		pulseDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "reflex8_pulse_duration_seconds",
			Help:    "Pulse commit duration, warm drain included.",
			Buckets: prometheus.ExponentialBuckets(1e-4, 2, 12),
		}),
		archives: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reflex8_archives_total",
			Help: "Archive attempts.",
		}),
		archiveErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reflex8_archive_errors_total",
			Help: "Failed archive attempts.",
		}),
		backlog: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reflex8_backlog_total",
			Help: "Batches rejected by a full tick segment.",
		}),
	}

	for _, col := range []prometheus.Collector{
		c.hotExecutions, c.hotOverruns, c.hotTicks,
		c.parks, c.refusals,
		c.warmExecutions, c.warmBreaches, c.warmLatency,
		c.pulses, c.pulseReceipts, c.pulseDuration,
		c.archives, c.archiveErrors,
		c.backlog,
	} {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// RecordHotExecution implements reflex8.MetricsCollector.
func (c *Collector) RecordHotExecution(op kernel.Op, actualTicks uint64, overrun bool) {
	c.hotExecutions.WithLabelValues(op.String()).Inc()
	c.hotTicks.Observe(float64(actualTicks))
	if overrun {
		c.hotOverruns.Inc()
	}
}

// RecordPark implements reflex8.MetricsCollector.
func (c *Collector) RecordPark(op kernel.Op, lanes int) {
	c.parks.WithLabelValues(op.String()).Add(float64(lanes))
}

// RecordRefusal implements reflex8.MetricsCollector.
func (c *Collector) RecordRefusal(_ kernel.Op, reason admission.Reason) {
	c.refusals.WithLabelValues(reason.String()).Inc()
}

// RecordWarmExecution implements reflex8.MetricsCollector.
func (c *Collector) RecordWarmExecution(op kernel.Op, latency time.Duration, sloBreached bool) {
	c.warmExecutions.WithLabelValues(op.String()).Inc()
	c.warmLatency.Observe(latency.Seconds())
	if sloBreached {
		c.warmBreaches.Inc()
	}
}

// RecordPulse implements reflex8.MetricsCollector.
func (c *Collector) RecordPulse(_ uint64, receipts int, duration time.Duration) {
	c.pulses.Inc()
	c.pulseReceipts.Add(float64(receipts))
	c.pulseDuration.Observe(duration.Seconds())
}

// RecordArchive implements reflex8.MetricsCollector.
func (c *Collector) RecordArchive(_ int, err error) {
	c.archives.Inc()
	if err != nil {
		c.archiveErrors.Inc()
	}
}

// RecordBacklog implements reflex8.MetricsCollector.
func (c *Collector) RecordBacklog() {
	c.backlog.Inc()
}
