// Package reflex8 provides a bounded-latency execution core for standing
// queries over in-memory triple data.
//
// The engine runs on an eight-beat epoch: every beat drains one tick
// segment of each shard's delta ring, classifies the fetched window
// through admission, executes hot operations with branchless eight-lane
// kernels, and stamps a receipt for every execution. Every eighth beat
// is a pulse: the warm tier drains, receipts fold into a pulse segment
// and, when an archiver is configured, land in a blob store behind a
// versioned commit ledger.
//
// Production-ready features include:
//
//   - Branchless 8-lane query kernels with a dense dispatch table
//   - Tiered admission (hot/warm/cold/refuse) from CPU cache geometry
//   - Lock-free SoA rings with per-tick segments and no overwrite
//   - Receipt monoid with deterministic span ids and assertion hashes
//   - Warm tier with bounded concurrency and a soft latency objective
//   - zstd receipt segments and lz4 column snapshots in S3, MinIO,
//     local or in-memory blob stores, committed via DynamoDB or memory
//     ledgers
//
// # Quick Start
//
// Create an engine, pin columns, register a hook and drive beats:
//
//	eng, err := reflex8.New(reflex8.WithShards(2))
//	if err != nil {
//	    panic(err)
//	}
//	defer eng.Close()
//
//	_ = eng.PinTriples(ctx, [][3]uint64{{5, 7, 11}, {6, 7, 12}})
//	_ = eng.RegisterHook(fiber.Hook{ID: 1, Op: kernel.OpAskSP, S: 5, P: 7})
//
//	_ = eng.EnqueueDelta(ring.Delta{S: 5, P: 7, O: 11})
//	for i := 0; i < 8; i++ {
//	    beat, _ := eng.AdvanceBeat(ctx)
//	    if beat.Pulse {
//	        fmt.Println("pulse receipts:", len(beat.Receipts))
//	    }
//	}
//
// One-shot queries against the pinned columns go through EvalBool and
// EvalBatch; both return receipts whether the answer is true or false.
package reflex8
