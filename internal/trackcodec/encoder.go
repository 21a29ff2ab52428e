package trackcodec

import (
	"encoding/binary"
	"fmt"
)

// Encoder emits a stream of FULL and DELTA blocks for a single track
// version. It keeps the previous point and a full-block interval counter;
// the first block it ever emits is always FULL, as required of the first
// block of any stream.
type Encoder struct {
	version  Version
	interval int
	prev     Point
	count    int
	isFirst  bool
}

// NewEncoder creates an encoder for the given version. interval is the
// full-block emission period (every Nth point is FULL); it is clamped to a
// minimum of 1.
func NewEncoder(version Version, interval int) *Encoder {
	if interval < 1 {
		interval = 1
	}
	return &Encoder{
		version:  version,
		interval: interval,
		isFirst:  true,
	}
}

// Reset forces the next Encode call to emit a FULL block, as if the encoder
// were newly constructed. The track logger calls this on day rotation.
func (e *Encoder) Reset() {
	e.isFirst = true
	e.count = 0
}

// Encode serializes p as the next block in the stream. A bad input (an
// out-of-range coordinate) is a programming error from the caller: Encode
// returns ErrInvalidCoord and leaves the encoder's state unchanged.
func (e *Encoder) Encode(p Point) ([]byte, error) {
	if !validCoord(p, e.version) {
		return nil, fmt.Errorf("%w: %+v", ErrInvalidCoord, p)
	}

	emitFull := e.isFirst || e.count%e.interval == 0

	var out []byte
	if emitFull {
		out = e.encodeFull(p)
	} else {
		out = e.encodeDelta(p)
	}

	e.prev = p
	e.isFirst = false
	e.count++

	return out, nil
}

func (e *Encoder) encodeFull(p Point) []byte {
	header := headerV1Full
	if e.version == V2 {
		header = headerV2Full
	}

	buf := make([]byte, FullBlockSize)
	buf[0] = header
	binary.LittleEndian.PutUint32(buf[1:5], p.TimestampS)
	binary.LittleEndian.PutUint32(buf[5:9], uint32(p.LatScaled))
	binary.LittleEndian.PutUint32(buf[9:13], uint32(p.LonScaled))
	binary.LittleEndian.PutUint32(buf[13:17], uint32(p.AltScaled))
	return buf
}

func (e *Encoder) encodeDelta(p Point) []byte {
	dts := int64(p.TimestampS) - int64(e.prev.TimestampS)
	dlat := int64(p.LatScaled) - int64(e.prev.LatScaled)
	dlon := int64(p.LonScaled) - int64(e.prev.LonScaled)
	dalt := int64(p.AltScaled) - int64(e.prev.AltScaled)

	var mask byte
	buf := make([]byte, 1, 1+4*maxVarintLen32)

	if dts != 0 {
		mask |= maskTimestamp
		buf = appendVarint32(buf, int32(dts))
	}
	if dlat != 0 {
		mask |= maskLat
		buf = appendVarint32(buf, int32(dlat))
	}
	if dlon != 0 {
		mask |= maskLon
		buf = appendVarint32(buf, int32(dlon))
	}
	if dalt != 0 {
		mask |= maskAlt
		buf = appendVarint32(buf, int32(dalt))
	}

	nibble := deltaNibbleV1
	if e.version == V2 {
		nibble = deltaNibbleV2
	}
	buf[0] = nibble<<4 | mask

	return buf
}

func appendVarint32(buf []byte, n int32) []byte {
	u := zigzagEncode32(n)
	for {
		b := byte(u & 0x7F)
		u >>= 7
		if u != 0 {
			buf = append(buf, b|0x80)
		} else {
			buf = append(buf, b)
			break
		}
	}
	return buf
}
