// Package trackcodec implements the delta-compressed binary track format
// written to the SD card by the track logger: a leading FULL block per
// version followed by ZigZag/varint DELTA blocks referencing the previous
// decoded point.
package trackcodec

import "errors"

// Version identifies the coordinate-precision domain of a track point.
// V2 supersedes V1 by scaling latitude/longitude by an extra factor of 10.
type Version uint8

const (
	V1 Version = 1
	V2 Version = 2
)

// Header byte values (§4.1).
const (
	headerV1Full byte = 0xFF
	headerV2Full byte = 0xFE

	// DELTA headers encode the version in the high nibble and the field
	// mask in the low nibble: 0x0N for V1, 0x1N for V2.
	deltaNibbleV1 byte = 0x0
	deltaNibbleV2 byte = 0x1
)

// Field mask bits, low nibble of a DELTA header, in fixed serialization order.
const (
	maskTimestamp byte = 1 << 3
	maskLat       byte = 1 << 2
	maskLon       byte = 1 << 1
	maskAlt       byte = 1 << 0
)

// Point is a single decoded or to-be-encoded track fix, scaled per its
// Version's precision domain (V2: lat/lon in µdeg×10, alt in decimetres).
type Point struct {
	TimestampS uint32
	LatScaled  int32
	LonScaled  int32
	AltScaled  int32
}

// Errors returned by Decode/Encode. Decode recovers from all of these at
// block granularity in non-strict mode (the default); Encode treats them as
// programming errors since the caller controls its own input.
var (
	ErrBufferUnderflow = errors.New("trackcodec: buffer underflow")
	ErrVarintTooLong   = errors.New("trackcodec: varint too long")
	ErrFormatError     = errors.New("trackcodec: bad block format")
	ErrInvalidCoord    = errors.New("trackcodec: coordinate out of range")
)

// v2 scaling applied to V1 absolute values and deltas when normalizing into
// the V2 precision domain; altitude's scale is identical across versions.
const v1ToV2Scale = 10

// FullBlockSize is the wire size of a FULL block: 1-byte header plus four
// little-endian int32/uint32 fields.
const FullBlockSize = 17

// maxVarintLen32 is the maximum LEB128 length of a ZigZag-encoded int32.
const maxVarintLen32 = 5

func zigzagEncode32(n int32) uint32 {
	return (uint32(n) << 1) ^ uint32(n>>31)
}

func zigzagDecode32(u uint32) int32 {
	return int32(u>>1) ^ -int32(u&1)
}

// validCoord reports whether a point scaled for version v satisfies the
// geographic range invariant of §3: latitude in [-90,+90] degrees, longitude
// in [-180,+180] degrees, timestamp strictly positive. V2 scales µdeg by a
// further factor of 10 relative to V1.
func validCoord(p Point, v Version) bool {
	// Computed in int64 even though unit*180 fits in int32 at today's
	// scale: the bound arithmetic shouldn't silently wrap if the scale
	// ever changes, and LatScaled/LonScaled themselves stay int32 per the
	// wire format.
	unit := int64(1_000_000)
	if v == V2 {
		unit *= v1ToV2Scale
	}
	maxLatScaled := 90 * unit
	maxLonScaled := 180 * unit

	if p.TimestampS == 0 {
		return false
	}
	if int64(p.LatScaled) > maxLatScaled || int64(p.LatScaled) < -maxLatScaled {
		return false
	}
	if int64(p.LonScaled) > maxLonScaled || int64(p.LonScaled) < -maxLonScaled {
		return false
	}
	return true
}
