package archive

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/pierrec/lz4/v4"

	"github.com/hupe1980/reflex8/triple"
)

const (
	snapshotMagic   uint32 = 0x52465853 // "RFXS"
	snapshotVersion uint16 = 1
)

// encodeSnapshot serializes the three columns into an lz4 frame. The
// uncompressed layout is a small header followed by the S, P and O
// columns back to back, little-endian.
func encodeSnapshot(cycle uint64, cols *triple.Columns) ([]byte, error) {
	rows := cols.Rows()

	raw := make([]byte, 16+rows*8*3)
	binary.LittleEndian.PutUint32(raw[0:], snapshotMagic)
	binary.LittleEndian.PutUint16(raw[4:], snapshotVersion)
	binary.LittleEndian.PutUint16(raw[6:], 0)
	binary.LittleEndian.PutUint64(raw[8:], cycle)

	off := 16
	for _, col := range [][]uint64{cols.S, cols.P, cols.O} {
		for i := 0; i < rows; i++ {
			binary.LittleEndian.PutUint64(raw[off:], col[i])
			off += 8
		}
	}

	var buf bytes.Buffer
	zw := lz4.NewWriter(&buf)
	if _, err := zw.Write(raw); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// decodeSnapshot restores columns from an lz4 frame.
func decodeSnapshot(data []byte) (uint64, *triple.Columns, error) {
	raw, err := io.ReadAll(lz4.NewReader(bytes.NewReader(data)))
	if err != nil {
		return 0, nil, err
	}
	if len(raw) < 16 {
		return 0, nil, ErrBadSegment
	}
	if binary.LittleEndian.Uint32(raw[0:]) != snapshotMagic {
		return 0, nil, ErrBadSegment
	}
	if v := binary.LittleEndian.Uint16(raw[4:]); v != snapshotVersion {
		return 0, nil, fmt.Errorf("%w: snapshot version %d", ErrBadSegment, v)
	}
	cycle := binary.LittleEndian.Uint64(raw[8:])

	body := len(raw) - 16
	if body%(8*3) != 0 {
		return 0, nil, ErrBadSegment
	}
	rows := body / (8 * 3)

	cols, err := triple.NewColumns(rows)
	if err != nil {
		return 0, nil, err
	}
	off := 16
	for _, col := range [][]uint64{cols.S, cols.P, cols.O} {
		for i := 0; i < rows; i++ {
			col[i] = binary.LittleEndian.Uint64(raw[off:])
			off += 8
		}
	}
	return cycle, cols, nil
}
