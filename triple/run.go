package triple

// Run is a contiguous span of rows sharing one predicate. Runs of any
// length may exist; only runs of at most 8 rows are hot-eligible, longer
// runs are chunked by the warm tier.
type Run struct {
	Pred uint64
	Off  uint32
	Len  uint32
}

// NewRun builds a run and validates it against the columns once.
func NewRun(c *Columns, pred uint64, off, length uint32) (Run, error) {
	if int(off)+int(length) > c.Capacity() {
		return Run{}, ErrOutOfRange
	}
	return Run{Pred: pred, Off: off, Len: length}, nil
}

// HotEligible reports whether the run fits one 8-lane window.
func (r Run) HotEligible() bool {
	return r.Len <= Lanes
}

// HotWindow returns the full-width window for a hot-eligible run.
func (r Run) HotWindow(c *Columns) (s, p, o []uint64, err error) {
	if r.Len > Lanes {
		return nil, nil, nil, ErrRunTooLong
	}
	if int(r.Off)+Lanes > c.Capacity() {
		return nil, nil, nil, ErrOutOfRange
	}
	s, p, o = c.window(int(r.Off))
	return s, p, o, nil
}

// Chunks splits an arbitrary run into hot-eligible sub-runs for the warm
// tier. The final chunk may be shorter than 8.
func (r Run) Chunks() []Run {
	if r.Len <= Lanes {
		return []Run{r}
	}
	out := make([]Run, 0, (r.Len+Lanes-1)/Lanes)
	for off := uint32(0); off < r.Len; off += Lanes {
		n := r.Len - off
		if n > Lanes {
			n = Lanes
		}
		out = append(out, Run{Pred: r.Pred, Off: r.Off + off, Len: n})
	}
	return out
}
