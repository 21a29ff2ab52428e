package telemetry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSysInfoV1Deterministic(t *testing.T) {
	s := Snapshot{
		Latitude: 1.0, Longitude: 2.0, Altitude: 3.5,
		Satellites: 7, HDOP: 1.25, SpeedKPH: 10.0, CourseDeg: 90.0,
		Year: 2025, Month: 9, Day: 6, Hour: 12, Minute: 34, Second: 56,
		LocationValid: true, DateTimeValid: true,
		BatteryVoltage: 4.0, GNSSState: 3,
	}

	buf := EncodeV1(s)
	require.Len(t, buf, V1Size)

	got, ok := DecodeV1(buf)
	require.True(t, ok)
	require.Equal(t, s, got)
}

func TestSysInfoV2RoundTrip(t *testing.T) {
	s := Snapshot{
		Latitude: 51.5, Longitude: -0.12, Altitude: 42,
		Satellites: 11, HDOP: 0.9, SpeedKPH: 3.2, CourseDeg: 270,
		Year: 2026, Month: 7, Day: 29, Hour: 1, Minute: 2, Second: 3,
		LocationValid: true, DateTimeValid: true,
		BatteryVoltage: 3.7, GNSSState: 1,
		KeepAliveRemainingS: 120, BatteryPercent: 80, Stationary: true,
		TemperatureC: 21.5, PressurePa: 101325,
	}

	buf := EncodeV2(s)
	require.Len(t, buf, V2Size)
	require.Equal(t, byte(2), buf[0])

	got, ok := DecodeV2(buf)
	require.True(t, ok)
	require.Equal(t, s, got)
}

func TestDecodeV2RejectsWrongVersionByte(t *testing.T) {
	buf := make([]byte, V2Size)
	buf[0] = 1
	_, ok := DecodeV2(buf)
	require.False(t, ok)
}

func TestDecodeWrongLengthFails(t *testing.T) {
	_, ok := DecodeV1(make([]byte, 10))
	require.False(t, ok)
	_, ok = DecodeV2(make([]byte, 10))
	require.False(t, ok)
}

func TestStoreSingleWriterManyReader(t *testing.T) {
	store := NewStore()
	store.Set(Snapshot{BatteryVoltage: 4.1})
	require.Equal(t, float32(4.1), store.Get().BatteryVoltage)

	store.Update(func(s *Snapshot) { s.GNSSState = 3 })
	got := store.Get()
	require.Equal(t, uint8(3), got.GNSSState)
	require.Equal(t, float32(4.1), got.BatteryVoltage)
}

func TestStoreConcurrentReaders(t *testing.T) {
	store := NewStore()
	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			store.Set(Snapshot{Satellites: uint32(i)})
		}
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case <-done:
			return
		case <-deadline:
			t.Fatal("concurrent store access timed out")
		default:
			_ = store.Get()
		}
	}
}
