package tracklog

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bramburn/go_ntrip/internal/trackcodec"
)

func tmpDir(t *testing.T) string {
	dir, err := os.MkdirTemp("", "tracklog-test-*")
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.RemoveAll(dir) })
	return dir
}

func TestAcceptWritesAndRotatesByDay(t *testing.T) {
	dir := tmpDir(t)
	l := New(dir, trackcodec.NewEncoder(trackcodec.V2, 64), nil)

	day1 := time.Date(2026, 7, 29, 10, 0, 0, 0, time.UTC)
	p := trackcodec.Point{TimestampS: 1678886400, LatScaled: 356800000, LonScaled: 1397500000, AltScaled: 500}
	require.NoError(t, l.Accept(p, day1))
	require.NoError(t, l.Flush())

	data, err := os.ReadFile(filepath.Join(dir, "20260729.gpx"))
	require.NoError(t, err)
	require.NotEmpty(t, data)
	require.Equal(t, byte(0xFE), data[0])

	day2 := day1.Add(25 * time.Hour)
	p2 := p
	p2.TimestampS += 25 * 3600 // keep the GPS delta in step with the clock
	require.NoError(t, l.Accept(p2, day2))
	require.NoError(t, l.Flush())

	_, err = os.Stat(filepath.Join(dir, "20260730.gpx"))
	require.NoError(t, err)
}

func TestFlushOnBufferOverflow(t *testing.T) {
	dir := tmpDir(t)
	l := New(dir, trackcodec.NewEncoder(trackcodec.V1, 1), nil)
	l.SetRetentionCap(1 << 30)

	now := time.Date(2026, 7, 29, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 2000; i++ {
		p := trackcodec.Point{TimestampS: uint32(1700000000 + i), LatScaled: int32(i), LonScaled: int32(i), AltScaled: int32(i)}
		require.NoError(t, l.Accept(p, now.Add(time.Duration(i)*time.Second)))
	}
	require.NoError(t, l.Flush())

	info, err := os.Stat(filepath.Join(dir, "20260729.gpx"))
	require.NoError(t, err)
	require.Greater(t, info.Size(), int64(0))
}

func TestSanityFilterRejectsClockDrift(t *testing.T) {
	dir := tmpDir(t)
	l := New(dir, trackcodec.NewEncoder(trackcodec.V2, 64), nil)

	base := time.Date(2026, 7, 29, 12, 0, 0, 0, time.UTC)
	p0 := trackcodec.Point{TimestampS: 1700000000, LatScaled: 1, LonScaled: 1, AltScaled: 1}
	require.NoError(t, l.Accept(p0, base))

	// GPS timestamp jumps by 7200s while only 1 monotonic second elapsed.
	p1 := trackcodec.Point{TimestampS: 1700007200, LatScaled: 2, LonScaled: 2, AltScaled: 2}
	err := l.Accept(p1, base.Add(time.Second))
	require.Error(t, err)
}

func TestSanityFilterAcceptsConsistentDelta(t *testing.T) {
	dir := tmpDir(t)
	l := New(dir, trackcodec.NewEncoder(trackcodec.V2, 64), nil)

	base := time.Date(2026, 7, 29, 12, 0, 0, 0, time.UTC)
	p0 := trackcodec.Point{TimestampS: 1700000000, LatScaled: 1, LonScaled: 1, AltScaled: 1}
	require.NoError(t, l.Accept(p0, base))

	p1 := trackcodec.Point{TimestampS: 1700000005, LatScaled: 2, LonScaled: 2, AltScaled: 2}
	require.NoError(t, l.Accept(p1, base.Add(5*time.Second)))
}

func TestRetentionSweepDeletesOldestFiles(t *testing.T) {
	dir := tmpDir(t)
	// Pre-seed three aged files larger than the cap.
	for _, name := range []string{"20260101.gpx", "20260102.gpx", "20260103.gpx"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), make([]byte, 1024), 0o644))
	}

	l := New(dir, trackcodec.NewEncoder(trackcodec.V2, 64), nil)
	l.SetRetentionCap(1500)

	now := time.Date(2026, 7, 29, 0, 0, 0, 0, time.UTC)
	p := trackcodec.Point{TimestampS: 1700000000, LatScaled: 1, LonScaled: 1, AltScaled: 1}
	require.NoError(t, l.Accept(p, now))
	require.NoError(t, l.Flush())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var total int64
	for _, e := range entries {
		info, err := e.Info()
		require.NoError(t, err)
		total += info.Size()
	}
	require.LessOrEqual(t, total, int64(1500))

	_, err = os.Stat(filepath.Join(dir, "20260101.gpx"))
	require.True(t, os.IsNotExist(err), "oldest file should have been deleted first")
}

func TestSessionIDIsStable(t *testing.T) {
	dir := tmpDir(t)
	l := New(dir, trackcodec.NewEncoder(trackcodec.V2, 64), nil)
	id1 := l.SessionID()
	id2 := l.SessionID()
	require.Equal(t, id1, id2)
	require.NotEmpty(t, id1)
}
