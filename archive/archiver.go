package archive

import (
	"context"
	"errors"
	"fmt"

	"github.com/hupe1980/reflex8/blobstore"
	"github.com/hupe1980/reflex8/receipt"
	"github.com/hupe1980/reflex8/triple"
)

// Archiver writes pulse receipts and column snapshots to a blob store
// and records each pulse in the ledger.
type Archiver struct {
	store  blobstore.Store
	ledger Ledger
	codec  *segmentCodec
}

// NewArchiver builds an archiver over the given store and ledger.
func NewArchiver(store blobstore.Store, ledger Ledger) (*Archiver, error) {
	codec, err := newSegmentCodec()
	if err != nil {
		return nil, err
	}
	return &Archiver{store: store, ledger: ledger, codec: codec}, nil
}

// segmentName derives the blob name for a pulse's receipt segment.
func segmentName(cycle uint64) string {
	return fmt.Sprintf("receipts/%016x.rseg", cycle)
}

// snapshotName derives the blob name for a cycle's column snapshot.
func snapshotName(cycle uint64) string {
	return fmt.Sprintf("snapshots/%016x.colz", cycle)
}

// ArchivePulse encodes the pulse's receipts, stores the segment and
// commits the next ledger version. A lost commit race surfaces as
// ErrConcurrentCommit; the segment write is idempotent, so the caller
// can simply retry.
func (a *Archiver) ArchivePulse(ctx context.Context, cycle uint64, rcpts []receipt.Receipt) (Commit, error) {
	name := segmentName(cycle)
	seg := a.codec.compress(encodeSegment(cycle, rcpts))
	if err := a.store.Put(ctx, name, seg); err != nil {
		return Commit{}, fmt.Errorf("archive put: %w", err)
	}

	var version uint64 = 1
	last, err := a.ledger.Latest(ctx)
	switch {
	case err == nil:
		version = last.Version + 1
	case !errors.Is(err, ErrNoCommits):
		return Commit{}, err
	}

	c := Commit{
		Version:  version,
		Segment:  name,
		Cycle:    cycle,
		Receipts: uint32(len(rcpts)),
	}
	if err := a.ledger.Commit(ctx, c); err != nil {
		return Commit{}, err
	}
	return c, nil
}

// ReadSegment loads, decompresses and verifies a receipt segment.
func (a *Archiver) ReadSegment(ctx context.Context, name string) (uint64, []receipt.Receipt, error) {
	b, err := a.store.Open(ctx, name)
	if err != nil {
		return 0, nil, err
	}
	defer b.Close()

	data, err := blobstore.ReadAll(ctx, b)
	if err != nil {
		return 0, nil, err
	}
	raw, err := a.codec.decompress(data)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %s", ErrBadSegment, err)
	}
	return decodeSegment(raw)
}

// Snapshot stores an lz4-framed copy of the pinned columns.
func (a *Archiver) Snapshot(ctx context.Context, cycle uint64, cols *triple.Columns) (string, error) {
	name := snapshotName(cycle)
	frame, err := encodeSnapshot(cycle, cols)
	if err != nil {
		return "", err
	}
	if err := a.store.Put(ctx, name, frame); err != nil {
		return "", fmt.Errorf("snapshot put: %w", err)
	}
	return name, nil
}

// ReadSnapshot restores columns from a stored snapshot.
func (a *Archiver) ReadSnapshot(ctx context.Context, name string) (uint64, *triple.Columns, error) {
	b, err := a.store.Open(ctx, name)
	if err != nil {
		return 0, nil, err
	}
	defer b.Close()

	data, err := blobstore.ReadAll(ctx, b)
	if err != nil {
		return 0, nil, err
	}
	return decodeSnapshot(data)
}
