package triple

import (
	"errors"
	"fmt"

	"github.com/hupe1980/reflex8/internal/mem"
)

// Lanes is the fixed window width of the execution core.
const Lanes = 8

var (
	// ErrMisaligned is returned when a column base address is not
	// 64-byte aligned.
	ErrMisaligned = errors.New("column base address not 64-byte aligned")

	// ErrLengthMismatch is returned when the three columns disagree
	// in length.
	ErrLengthMismatch = errors.New("column lengths differ")

	// ErrOutOfRange is returned when a run does not fit its columns.
	ErrOutOfRange = errors.New("run exceeds column bounds")

	// ErrRunTooLong is returned when a hot window is requested from a
	// run longer than 8 rows.
	ErrRunTooLong = errors.New("run longer than 8 rows")
)

// Columns is the columnar triple block. All three columns share one
// padded capacity that is a multiple of 8, so any in-range window can be
// read at full width without bounds branches.
//
// Construct through NewColumns or FromSlices; both validate exactly once,
// and the execution core never re-checks.
type Columns struct {
	S, P, O []uint64

	rows int
}

// NewColumns allocates aligned columns for the given number of rows.
// Capacity is padded up to the next multiple of 8 plus one spare block,
// so a full-width window exists at every in-range offset. Padding rows
// stay zero and read as dead lanes.
func NewColumns(rows int) (*Columns, error) {
	if rows < 0 {
		return nil, fmt.Errorf("invalid row count %d", rows)
	}
	padded := ((rows + Lanes - 1) &^ (Lanes - 1)) + Lanes
	return &Columns{
		S:    mem.AllocAlignedUint64(padded),
		P:    mem.AllocAlignedUint64(padded),
		O:    mem.AllocAlignedUint64(padded),
		rows: rows,
	}, nil
}

// FromSlices wraps caller-owned columns. The slices must be equal in
// length, a multiple of 8 long, and 64-byte aligned; otherwise the
// construction fails and nothing downstream will touch the data.
func FromSlices(s, p, o []uint64, rows int) (*Columns, error) {
	if len(s) != len(p) || len(p) != len(o) {
		return nil, ErrLengthMismatch
	}
	if rows < 0 || rows > len(s) {
		return nil, fmt.Errorf("row count %d outside column length %d", rows, len(s))
	}
	if len(s)%Lanes != 0 {
		return nil, fmt.Errorf("%w: capacity %d not a multiple of %d", ErrMisaligned, len(s), Lanes)
	}
	if !mem.IsAligned(s) || !mem.IsAligned(p) || !mem.IsAligned(o) {
		return nil, ErrMisaligned
	}
	return &Columns{S: s, P: p, O: o, rows: rows}, nil
}

// Rows returns the logical row count (excluding padding).
func (c *Columns) Rows() int {
	return c.rows
}

// Capacity returns the padded capacity.
func (c *Columns) Capacity() int {
	return len(c.S)
}

// Set writes one row.
func (c *Columns) Set(i int, s, p, o uint64) error {
	if i < 0 || i >= c.rows {
		return ErrOutOfRange
	}
	c.S[i] = s
	c.P[i] = p
	c.O[i] = o
	return nil
}

// Row reads one row.
func (c *Columns) Row(i int) (s, p, o uint64, err error) {
	if i < 0 || i >= c.rows {
		return 0, 0, 0, ErrOutOfRange
	}
	return c.S[i], c.P[i], c.O[i], nil
}

// FootprintBytes returns the resident size of the three columns, the
// quantity admission compares against cache geometry.
func (c *Columns) FootprintBytes() int64 {
	return int64(len(c.S)) * 8 * 3
}

// window returns full-width 8-lane views starting at off. The caller must
// have validated off against the padded capacity.
func (c *Columns) window(off int) (s, p, o []uint64) {
	return c.S[off : off+Lanes], c.P[off : off+Lanes], c.O[off : off+Lanes]
}
