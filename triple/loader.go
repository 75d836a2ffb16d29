package triple

import (
	"context"
	"sort"
)

// Loader fills columns from an external source. Parsing of RDF surfaces
// (Turtle, N-Triples) happens outside the core; implementations hand over
// triples already interned to uint64 ids.
type Loader interface {
	// Load returns the interned triples to materialize.
	Load(ctx context.Context) ([][3]uint64, error)
}

// SliceLoader serves pre-interned triples from memory. Useful for tests
// and embedding hosts that do their own parsing.
type SliceLoader [][3]uint64

// Load implements Loader.
func (l SliceLoader) Load(_ context.Context) ([][3]uint64, error) {
	return l, nil
}

// Materialize builds aligned columns and a predicate index from a loader.
// Rows are laid out sorted by predicate so runs come out maximally
// contiguous; the sort is stable on (pred, subject, object) for
// reproducible layouts.
func Materialize(ctx context.Context, l Loader) (*Columns, *PredicateIndex, error) {
	triples, err := l.Load(ctx)
	if err != nil {
		return nil, nil, err
	}

	byPred := make([][3]uint64, len(triples))
	copy(byPred, triples)
	sort.SliceStable(byPred, func(i, j int) bool {
		a, b := byPred[i], byPred[j]
		if a[1] != b[1] {
			return a[1] < b[1]
		}
		if a[0] != b[0] {
			return a[0] < b[0]
		}
		return a[2] < b[2]
	})

	cols, err := NewColumns(len(byPred))
	if err != nil {
		return nil, nil, err
	}
	for i, t := range byPred {
		if err := cols.Set(i, t[0], t[1], t[2]); err != nil {
			return nil, nil, err
		}
	}
	return cols, NewPredicateIndex(cols), nil
}
