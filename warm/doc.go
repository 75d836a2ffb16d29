// Package warm implements the off-hot-path execution tier.
//
// Work arrives two ways: constructions routed here by admission, and
// parked work deferred by fibers. Executions run under a bounded
// concurrency budget with a soft latency objective; breaching the
// objective is reported, never an error. Receipts for warm executions
// flow into the same assertion ring the hot path feeds.
package warm
