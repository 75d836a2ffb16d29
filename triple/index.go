package triple

import (
	"sort"

	"github.com/RoaringBitmap/roaring/v2"
)

// PredicateIndex maps each predicate to the set of rows carrying it.
// It lives at the ingestion boundary: rebuilt when columns load, queried
// to derive the predicate runs the execution core pins.
type PredicateIndex struct {
	preds map[uint64]*roaring.Bitmap
}

// NewPredicateIndex builds an index over the logical rows of c.
func NewPredicateIndex(c *Columns) *PredicateIndex {
	ix := &PredicateIndex{preds: make(map[uint64]*roaring.Bitmap)}
	for i := 0; i < c.Rows(); i++ {
		ix.add(uint32(i), c.P[i])
	}
	return ix
}

func (ix *PredicateIndex) add(row uint32, pred uint64) {
	bm, ok := ix.preds[pred]
	if !ok {
		bm = roaring.New()
		ix.preds[pred] = bm
	}
	bm.Add(row)
}

// Cardinality returns the number of rows carrying pred.
func (ix *PredicateIndex) Cardinality(pred uint64) uint64 {
	bm, ok := ix.preds[pred]
	if !ok {
		return 0
	}
	return bm.GetCardinality()
}

// Predicates returns all indexed predicates in ascending order.
func (ix *PredicateIndex) Predicates() []uint64 {
	out := make([]uint64, 0, len(ix.preds))
	for p := range ix.preds {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Runs derives the hot-eligible runs for pred: contiguous row spans are
// grouped and chopped at 8 rows. Returns nil for an unknown predicate.
func (ix *PredicateIndex) Runs(pred uint64) []Run {
	bm, ok := ix.preds[pred]
	if !ok || bm.IsEmpty() {
		return nil
	}

	var out []Run
	it := bm.Iterator()

	start := it.Next()
	prev := start
	length := uint32(1)

	flush := func() {
		r := Run{Pred: pred, Off: start, Len: length}
		out = append(out, r.Chunks()...)
	}

	for it.HasNext() {
		row := it.Next()
		if row == prev+1 {
			prev = row
			length++
			continue
		}
		flush()
		start, prev, length = row, row, 1
	}
	flush()
	return out
}
