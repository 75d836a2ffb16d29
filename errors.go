package reflex8

import (
	"errors"
	"fmt"

	"github.com/hupe1980/reflex8/admission"
	"github.com/hupe1980/reflex8/ring"
)

var (
	// ErrClosed is returned on any operation after Close.
	ErrClosed = errors.New("engine closed")

	// ErrBacklog is returned when a tick segment cannot absorb a batch.
	// The producer backs off and retries; nothing was written.
	ErrBacklog = errors.New("tick segment backlog")

	// ErrBatchTooLarge is returned when a batch exceeds the lane width.
	ErrBatchTooLarge = errors.New("batch exceeds lane width")

	// ErrNoColumns is returned when a query runs before PinColumns.
	ErrNoColumns = errors.New("no columns pinned")
)

// ErrRefusedQuery indicates admission refused a query outright.
//
// The admission verdict's reason is carried; the original underlying
// error (if any) can be accessed via errors.Unwrap.
type ErrRefusedQuery struct {
	Op     uint8
	Reason admission.Reason
	cause  error
}

func (e *ErrRefusedQuery) Error() string {
	return fmt.Sprintf("query refused: op %d (%s)", e.Op, e.Reason)
}

func (e *ErrRefusedQuery) Unwrap() error { return e.cause }

func translateError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, ring.ErrFull) {
		return fmt.Errorf("%w: %w", ErrBacklog, err)
	}

	return err
}
