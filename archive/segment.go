package archive

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/klauspost/compress/zstd"

	"github.com/hupe1980/reflex8/internal/hash"
	"github.com/hupe1980/reflex8/receipt"
)

const (
	segmentMagic   uint32 = 0x52465838 // "RFX8"
	segmentVersion uint16 = 1

	kindReceipts uint16 = 1

	headerSize = 4 + 2 + 2 + 4 + 8 // magic, version, kind, count, cycle
	recordSize = 48
	crcSize    = 4
)

var (
	// ErrBadSegment is returned when a segment fails structural checks.
	ErrBadSegment = errors.New("malformed receipt segment")

	// ErrChecksum is returned when a segment's CRC32C trailer does not
	// match its contents.
	ErrChecksum = errors.New("receipt segment checksum mismatch")
)

// encodeSegment serializes receipts into the raw (uncompressed) segment
// layout: header, fixed records, CRC32C trailer over everything before
// the trailer.
func encodeSegment(cycle uint64, rcpts []receipt.Receipt) []byte {
	buf := make([]byte, headerSize+recordSize*len(rcpts)+crcSize)

	binary.LittleEndian.PutUint32(buf[0:], segmentMagic)
	binary.LittleEndian.PutUint16(buf[4:], segmentVersion)
	binary.LittleEndian.PutUint16(buf[6:], kindReceipts)
	binary.LittleEndian.PutUint32(buf[8:], uint32(len(rcpts)))
	binary.LittleEndian.PutUint64(buf[12:], cycle)

	off := headerSize
	for _, r := range rcpts {
		binary.LittleEndian.PutUint64(buf[off:], r.CycleID)
		binary.LittleEndian.PutUint32(buf[off+8:], r.ShardID)
		binary.LittleEndian.PutUint32(buf[off+12:], r.HookID)
		binary.LittleEndian.PutUint32(buf[off+16:], uint32(r.Ticks))
		binary.LittleEndian.PutUint32(buf[off+20:], r.Lanes)
		binary.LittleEndian.PutUint64(buf[off+24:], r.ActualTicks)
		binary.LittleEndian.PutUint64(buf[off+32:], r.SpanID)
		binary.LittleEndian.PutUint64(buf[off+40:], r.AHash)
		off += recordSize
	}

	binary.LittleEndian.PutUint32(buf[off:], hash.CRC32C(buf[:off]))
	return buf
}

// decodeSegment parses and verifies a raw segment.
func decodeSegment(buf []byte) (uint64, []receipt.Receipt, error) {
	if len(buf) < headerSize+crcSize {
		return 0, nil, ErrBadSegment
	}
	if binary.LittleEndian.Uint32(buf[0:]) != segmentMagic {
		return 0, nil, ErrBadSegment
	}
	if v := binary.LittleEndian.Uint16(buf[4:]); v != segmentVersion {
		return 0, nil, fmt.Errorf("%w: version %d", ErrBadSegment, v)
	}
	if k := binary.LittleEndian.Uint16(buf[6:]); k != kindReceipts {
		return 0, nil, fmt.Errorf("%w: kind %d", ErrBadSegment, k)
	}

	count := int(binary.LittleEndian.Uint32(buf[8:]))
	cycle := binary.LittleEndian.Uint64(buf[12:])

	body := headerSize + recordSize*count
	if len(buf) != body+crcSize {
		return 0, nil, ErrBadSegment
	}
	want := binary.LittleEndian.Uint32(buf[body:])
	if hash.CRC32C(buf[:body]) != want {
		return 0, nil, ErrChecksum
	}

	rcpts := make([]receipt.Receipt, count)
	off := headerSize
	for i := range rcpts {
		rcpts[i] = receipt.Receipt{
			CycleID:     binary.LittleEndian.Uint64(buf[off:]),
			ShardID:     binary.LittleEndian.Uint32(buf[off+8:]),
			HookID:      binary.LittleEndian.Uint32(buf[off+12:]),
			Ticks:       uint8(binary.LittleEndian.Uint32(buf[off+16:])),
			Lanes:       binary.LittleEndian.Uint32(buf[off+20:]),
			ActualTicks: binary.LittleEndian.Uint64(buf[off+24:]),
			SpanID:      binary.LittleEndian.Uint64(buf[off+32:]),
			AHash:       binary.LittleEndian.Uint64(buf[off+40:]),
		}
		off += recordSize
	}
	return cycle, rcpts, nil
}

// segmentCodec compresses raw segments with zstd. Safe for concurrent
// use; the zstd encoder and decoder are stateless via EncodeAll/DecodeAll.
type segmentCodec struct {
	enc *zstd.Encoder
	dec *zstd.Decoder
}

func newSegmentCodec() (*segmentCodec, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, err
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	return &segmentCodec{enc: enc, dec: dec}, nil
}

func (c *segmentCodec) compress(raw []byte) []byte {
	return c.enc.EncodeAll(raw, make([]byte, 0, len(raw)/2))
}

func (c *segmentCodec) decompress(data []byte) ([]byte, error) {
	return c.dec.DecodeAll(data, nil)
}
