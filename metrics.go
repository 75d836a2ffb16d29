package reflex8

import (
	"sync/atomic"
	"time"

	"github.com/hupe1980/reflex8/admission"
	"github.com/hupe1980/reflex8/kernel"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems; the
// telemetry/prom package ships a Prometheus implementation.
type MetricsCollector interface {
	// RecordHotExecution is called after each hot-path dispatch.
	// actualTicks is the measured cycle-counter delta; overrun is set
	// when it exceeded the configured threshold.
	RecordHotExecution(op kernel.Op, actualTicks uint64, overrun bool)

	// RecordPark is called when admission defers work to the warm tier.
	RecordPark(op kernel.Op, lanes int)

	// RecordRefusal is called when admission refuses work outright.
	RecordRefusal(op kernel.Op, reason admission.Reason)

	// RecordWarmExecution is called after each warm-tier execution.
	RecordWarmExecution(op kernel.Op, latency time.Duration, sloBreached bool)

	// RecordPulse is called after each pulse-boundary commit.
	RecordPulse(cycle uint64, receipts int, duration time.Duration)

	// RecordArchive is called after each archive attempt.
	RecordArchive(receipts int, err error)

	// RecordBacklog is called when a tick segment rejects a batch.
	RecordBacklog()
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordHotExecution(kernel.Op, uint64, bool)         {}
func (NoopMetricsCollector) RecordPark(kernel.Op, int)                          {}
func (NoopMetricsCollector) RecordRefusal(kernel.Op, admission.Reason)          {}
func (NoopMetricsCollector) RecordWarmExecution(kernel.Op, time.Duration, bool) {}
func (NoopMetricsCollector) RecordPulse(uint64, int, time.Duration)             {}
func (NoopMetricsCollector) RecordArchive(int, error)                           {}
func (NoopMetricsCollector) RecordBacklog()                                     {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	HotCount        atomic.Int64
	HotOverruns     atomic.Int64
	HotTotalTicks   atomic.Int64
	ParkCount       atomic.Int64
	ParkedLanes     atomic.Int64
	RefusalCount    atomic.Int64
	WarmCount       atomic.Int64
	WarmSLOBreaches atomic.Int64
	WarmTotalNanos  atomic.Int64
	PulseCount      atomic.Int64
	PulseReceipts   atomic.Int64
	ArchiveCount    atomic.Int64
	ArchiveErrors   atomic.Int64
	BacklogCount    atomic.Int64
}

// RecordHotExecution implements MetricsCollector.
func (b *BasicMetricsCollector) RecordHotExecution(_ kernel.Op, actualTicks uint64, overrun bool) {
	b.HotCount.Add(1)
	b.HotTotalTicks.Add(int64(actualTicks))
	if overrun {
		b.HotOverruns.Add(1)
	}
}

// RecordPark implements MetricsCollector.
func (b *BasicMetricsCollector) RecordPark(_ kernel.Op, lanes int) {
	b.ParkCount.Add(1)
	b.ParkedLanes.Add(int64(lanes))
}

// RecordRefusal implements MetricsCollector.
func (b *BasicMetricsCollector) RecordRefusal(kernel.Op, admission.Reason) {
	b.RefusalCount.Add(1)
}

// RecordWarmExecution implements MetricsCollector.
func (b *BasicMetricsCollector) RecordWarmExecution(_ kernel.Op, latency time.Duration, sloBreached bool) {
	b.WarmCount.Add(1)
	b.WarmTotalNanos.Add(latency.Nanoseconds())
	if sloBreached {
		b.WarmSLOBreaches.Add(1)
	}
}

// RecordPulse implements MetricsCollector.
func (b *BasicMetricsCollector) RecordPulse(_ uint64, receipts int, _ time.Duration) {
	b.PulseCount.Add(1)
	b.PulseReceipts.Add(int64(receipts))
}

// RecordArchive implements MetricsCollector.
func (b *BasicMetricsCollector) RecordArchive(_ int, err error) {
	b.ArchiveCount.Add(1)
	if err != nil {
		b.ArchiveErrors.Add(1)
	}
}

// RecordBacklog implements MetricsCollector.
func (b *BasicMetricsCollector) RecordBacklog() {
	b.BacklogCount.Add(1)
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		HotCount:        b.HotCount.Load(),
		HotOverruns:     b.HotOverruns.Load(),
		HotAvgTicks:     b.getAvgHotTicks(),
		ParkCount:       b.ParkCount.Load(),
		ParkedLanes:     b.ParkedLanes.Load(),
		RefusalCount:    b.RefusalCount.Load(),
		WarmCount:       b.WarmCount.Load(),
		WarmSLOBreaches: b.WarmSLOBreaches.Load(),
		WarmAvgNanos:    b.getAvgWarmNanos(),
		PulseCount:      b.PulseCount.Load(),
		PulseReceipts:   b.PulseReceipts.Load(),
		ArchiveCount:    b.ArchiveCount.Load(),
		ArchiveErrors:   b.ArchiveErrors.Load(),
		BacklogCount:    b.BacklogCount.Load(),
	}
}

func (b *BasicMetricsCollector) getAvgHotTicks() int64 {
	count := b.HotCount.Load()
	if count == 0 {
		return 0
	}
	return b.HotTotalTicks.Load() / count
}

func (b *BasicMetricsCollector) getAvgWarmNanos() int64 {
	count := b.WarmCount.Load()
	if count == 0 {
		return 0
	}
	return b.WarmTotalNanos.Load() / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	HotCount        int64
	HotOverruns     int64
	HotAvgTicks     int64
	ParkCount       int64
	ParkedLanes     int64
	RefusalCount    int64
	WarmCount       int64
	WarmSLOBreaches int64
	WarmAvgNanos    int64
	PulseCount      int64
	PulseReceipts   int64
	ArchiveCount    int64
	ArchiveErrors   int64
	BacklogCount    int64
}
