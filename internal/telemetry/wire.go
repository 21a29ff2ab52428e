package telemetry

import (
	"encoding/binary"
	"math"
)

// V1Size and V2Size are the wire sizes of the SysInfo response payloads (§6).
const (
	V1Size = 50
	V2Size = 63
)

// EncodeV1 serializes s into the 50-byte V1 SysInfo layout:
// lat(f64) lon(f64) alt(f32) sats(u32) hdop(f32) speed(f32) course(f32)
// year(u16) month(u8) day(u8) hour(u8) minute(u8) second(u8)
// locationValid(u8) dateTimeValid(u8) batteryVoltage(f32) gpsState(u8).
func EncodeV1(s Snapshot) []byte {
	buf := make([]byte, V1Size)
	i := 0

	binary.LittleEndian.PutUint64(buf[i:], math.Float64bits(s.Latitude))
	i += 8
	binary.LittleEndian.PutUint64(buf[i:], math.Float64bits(s.Longitude))
	i += 8
	binary.LittleEndian.PutUint32(buf[i:], math.Float32bits(s.Altitude))
	i += 4
	binary.LittleEndian.PutUint32(buf[i:], s.Satellites)
	i += 4
	binary.LittleEndian.PutUint32(buf[i:], math.Float32bits(s.HDOP))
	i += 4
	binary.LittleEndian.PutUint32(buf[i:], math.Float32bits(s.SpeedKPH))
	i += 4
	binary.LittleEndian.PutUint32(buf[i:], math.Float32bits(s.CourseDeg))
	i += 4
	binary.LittleEndian.PutUint16(buf[i:], s.Year)
	i += 2
	buf[i] = s.Month
	i++
	buf[i] = s.Day
	i++
	buf[i] = s.Hour
	i++
	buf[i] = s.Minute
	i++
	buf[i] = s.Second
	i++
	buf[i] = boolByte(s.LocationValid)
	i++
	buf[i] = boolByte(s.DateTimeValid)
	i++
	binary.LittleEndian.PutUint32(buf[i:], math.Float32bits(s.BatteryVoltage))
	i += 4
	buf[i] = s.GNSSState
	i++

	return buf
}

// EncodeV2 serializes s into the 63-byte V2 SysInfo layout: a version=2
// prefix byte, the 50-byte V1 body, then keepAliveRemainingS(u16)
// batteryPercent(u8) isStationary(u8) temperatureC(f32) pressurePa(f32).
func EncodeV2(s Snapshot) []byte {
	buf := make([]byte, V2Size)
	buf[0] = 2
	copy(buf[1:1+V1Size], EncodeV1(s))

	i := 1 + V1Size
	binary.LittleEndian.PutUint16(buf[i:], s.KeepAliveRemainingS)
	i += 2
	buf[i] = s.BatteryPercent
	i++
	buf[i] = boolByte(s.Stationary)
	i++
	binary.LittleEndian.PutUint32(buf[i:], math.Float32bits(s.TemperatureC))
	i += 4
	binary.LittleEndian.PutUint32(buf[i:], math.Float32bits(s.PressurePa))

	return buf
}

// DecodeV1 parses a 50-byte V1 SysInfo payload. Used by host-side tooling
// and tests; the device itself only encodes.
func DecodeV1(buf []byte) (Snapshot, bool) {
	if len(buf) != V1Size {
		return Snapshot{}, false
	}
	var s Snapshot
	i := 0

	s.Latitude = math.Float64frombits(binary.LittleEndian.Uint64(buf[i:]))
	i += 8
	s.Longitude = math.Float64frombits(binary.LittleEndian.Uint64(buf[i:]))
	i += 8
	s.Altitude = math.Float32frombits(binary.LittleEndian.Uint32(buf[i:]))
	i += 4
	s.Satellites = binary.LittleEndian.Uint32(buf[i:])
	i += 4
	s.HDOP = math.Float32frombits(binary.LittleEndian.Uint32(buf[i:]))
	i += 4
	s.SpeedKPH = math.Float32frombits(binary.LittleEndian.Uint32(buf[i:]))
	i += 4
	s.CourseDeg = math.Float32frombits(binary.LittleEndian.Uint32(buf[i:]))
	i += 4
	s.Year = binary.LittleEndian.Uint16(buf[i:])
	i += 2
	s.Month = buf[i]
	i++
	s.Day = buf[i]
	i++
	s.Hour = buf[i]
	i++
	s.Minute = buf[i]
	i++
	s.Second = buf[i]
	i++
	s.LocationValid = buf[i] != 0
	i++
	s.DateTimeValid = buf[i] != 0
	i++
	s.BatteryVoltage = math.Float32frombits(binary.LittleEndian.Uint32(buf[i:]))
	i += 4
	s.GNSSState = buf[i]

	return s, true
}

// DecodeV2 parses a 63-byte V2 SysInfo payload (version prefix included).
func DecodeV2(buf []byte) (Snapshot, bool) {
	if len(buf) != V2Size || buf[0] != 2 {
		return Snapshot{}, false
	}
	s, ok := DecodeV1(buf[1 : 1+V1Size])
	if !ok {
		return Snapshot{}, false
	}

	i := 1 + V1Size
	s.KeepAliveRemainingS = binary.LittleEndian.Uint16(buf[i:])
	i += 2
	s.BatteryPercent = buf[i]
	i++
	s.Stationary = buf[i] != 0
	i++
	s.TemperatureC = math.Float32frombits(binary.LittleEndian.Uint32(buf[i:]))
	i += 4
	s.PressurePa = math.Float32frombits(binary.LittleEndian.Uint32(buf[i:]))

	return s, true
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}
