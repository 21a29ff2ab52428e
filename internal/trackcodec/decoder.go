package trackcodec

import (
	"encoding/binary"
	"fmt"
)

// Decoder reconstructs points from a byte stream of FULL/DELTA blocks. It
// keeps two independent "previous point" cursors, one per version, since a
// stream may interleave versions across a protocol upgrade boundary.
//
// By default the decoder is resilient: a block error advances the cursor by
// at least one byte and decoding continues, recording a warning for the
// skipped region. SetStrict(true) switches to fail-fast, for test harnesses
// that want to treat any corruption as fatal.
type Decoder struct {
	havePrevV1 bool
	havePrevV2 bool
	prevV1     Point
	prevV2     Point
	strict     bool
}

// NewDecoder creates a decoder with no prior FULL block of either version.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// SetStrict toggles strict mode (see type doc).
func (d *Decoder) SetStrict(strict bool) {
	d.strict = strict
}

// BlockWarning records a recovered block-decode error: the cursor offset at
// which it occurred and the underlying cause.
type BlockWarning struct {
	Offset int
	Err    error
}

func (w BlockWarning) Error() string {
	return fmt.Sprintf("trackcodec: block at offset %d: %v", w.Offset, w.Err)
}

// Decode parses every block in data, in the V2 precision domain (V1 points
// are up-scaled per §4.1). In non-strict mode it returns every point it
// could recover plus a warning per skipped block. In strict mode it returns
// as soon as a block fails, along with the points decoded up to that point.
func (d *Decoder) Decode(data []byte) ([]Point, []BlockWarning, error) {
	var points []Point
	var warnings []BlockWarning

	offset := 0
	for offset < len(data) {
		p, consumed, err := d.decodeBlock(data[offset:])
		if err != nil {
			if d.strict {
				return points, warnings, fmt.Errorf("trackcodec: offset %d: %w", offset, err)
			}
			warnings = append(warnings, BlockWarning{Offset: offset, Err: err})
			// Advance by at least one byte and keep trying.
			if consumed < 1 {
				consumed = 1
			}
			offset += consumed
			continue
		}

		points = append(points, p)
		offset += consumed
	}

	return points, warnings, nil
}

// decodeBlock decodes a single block at the start of buf, returning the
// decoded point (in the V2 domain), the number of bytes consumed (best
// effort even on error, for cursor advancement), and an error if the block
// could not be decoded.
func (d *Decoder) decodeBlock(buf []byte) (Point, int, error) {
	if len(buf) < 1 {
		return Point{}, 0, ErrBufferUnderflow
	}
	header := buf[0]

	switch {
	case header == headerV1Full:
		return d.decodeFull(buf, V1)
	case header == headerV2Full:
		return d.decodeFull(buf, V2)
	case header>>4 == deltaNibbleV1:
		return d.decodeDelta(buf, V1, header&0x0F)
	case header>>4 == deltaNibbleV2:
		return d.decodeDelta(buf, V2, header&0x0F)
	default:
		return Point{}, 1, ErrFormatError
	}
}

func (d *Decoder) decodeFull(buf []byte, v Version) (Point, int, error) {
	if len(buf) < FullBlockSize {
		return Point{}, len(buf), ErrBufferUnderflow
	}

	p := Point{
		TimestampS: binary.LittleEndian.Uint32(buf[1:5]),
		LatScaled:  int32(binary.LittleEndian.Uint32(buf[5:9])),
		LonScaled:  int32(binary.LittleEndian.Uint32(buf[9:13])),
		AltScaled:  int32(binary.LittleEndian.Uint32(buf[13:17])),
	}

	if !validCoord(p, v) {
		return Point{}, FullBlockSize, ErrInvalidCoord
	}

	out := d.normalize(p, v)
	d.setPrev(out, v)
	return out, FullBlockSize, nil
}

func (d *Decoder) decodeDelta(buf []byte, v Version, mask byte) (Point, int, error) {
	if !d.havePrev(v) {
		return Point{}, 1, fmt.Errorf("%w: DELTA without preceding FULL of its version", ErrFormatError)
	}

	prev := d.prevOf(v)
	consumed := 1
	rest := buf[1:]

	readField := func() (int32, int, error) {
		n, nbytes, err := decodeVarint32(rest)
		if err != nil {
			return 0, nbytes, err
		}
		return n, nbytes, nil
	}

	result := prev
	for _, bit := range []struct {
		mask byte
		set  func(delta int32)
	}{
		{maskTimestamp, func(delta int32) { result.TimestampS = uint32(int64(prev.TimestampS) + int64(delta)) }},
		{maskLat, func(delta int32) { result.LatScaled = prev.LatScaled + delta }},
		{maskLon, func(delta int32) { result.LonScaled = prev.LonScaled + delta }},
		{maskAlt, func(delta int32) { result.AltScaled = prev.AltScaled + delta }},
	} {
		if mask&bit.mask == 0 {
			continue
		}
		delta, nbytes, err := readField()
		if err != nil {
			return Point{}, consumed + nbytes, err
		}
		bit.set(delta)
		rest = rest[nbytes:]
		consumed += nbytes
	}

	if !validCoord(result, v) {
		return Point{}, consumed, ErrInvalidCoord
	}

	out := d.normalize(result, v)
	d.setPrev(out, v)
	return out, consumed, nil
}

// normalize converts a point decoded in version v's native domain into the
// V2 precision domain: V1 lat/lon absolute values are scaled by 10, V2
// points and altitude in either version pass through unchanged.
func (d *Decoder) normalize(p Point, v Version) Point {
	if v == V1 {
		p.LatScaled *= v1ToV2Scale
		p.LonScaled *= v1ToV2Scale
	}
	return p
}

func (d *Decoder) havePrev(v Version) bool {
	if v == V1 {
		return d.havePrevV1
	}
	return d.havePrevV2
}

func (d *Decoder) prevOf(v Version) Point {
	if v == V1 {
		// prevV1 is stored in its native (pre-scale) domain so that
		// subsequent V1 deltas apply before normalization.
		return d.prevV1
	}
	return d.prevV2
}

func (d *Decoder) setPrev(normalized Point, v Version) {
	if v == V1 {
		// Store back in V1's native domain (undo the ×10 scale) so the
		// next V1 delta is computed against the same units it was encoded in.
		native := normalized
		native.LatScaled /= v1ToV2Scale
		native.LonScaled /= v1ToV2Scale
		d.prevV1 = native
		d.havePrevV1 = true
		return
	}
	d.prevV2 = normalized
	d.havePrevV2 = true
}

// decodeVarint32 reads a ZigZag+LEB128-encoded int32 from the start of buf.
func decodeVarint32(buf []byte) (int32, int, error) {
	var u uint32
	for i := 0; i < maxVarintLen32; i++ {
		if i >= len(buf) {
			return 0, i, ErrBufferUnderflow
		}
		b := buf[i]
		u |= uint32(b&0x7F) << (7 * i)
		if b&0x80 == 0 {
			return zigzagDecode32(u), i + 1, nil
		}
	}
	return 0, maxVarintLen32, ErrVarintTooLong
}
