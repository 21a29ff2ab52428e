package hostproto

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// stubHook records StateHook calls for assertions.
type stubHook struct {
	woke        bool
	keepAliveMin uint16
	agnssFrames [][]byte
}

func (h *stubHook) RequestWake()                 { h.woke = true }
func (h *stubHook) SetKeepAlive(minutes uint16)   { h.keepAliveMin = minutes }
func (h *stubHook) BeginAgnss(frames [][]byte)    { h.agnssFrames = frames }

// stubTelemetry returns fixed canned SysInfo payloads.
type stubTelemetry struct {
	v1, v2 []byte
}

func (s *stubTelemetry) SysInfoV1() []byte { return s.v1 }
func (s *stubTelemetry) SysInfoV2() []byte { return s.v2 }

func rootFS() *memFS {
	fs := newMemFS()
	fs.dirs["/"] = []FileEntry{
		{Name: "a.txt", Type: EntryFile, Size: 5},
		{Name: "logs", Type: EntryDir},
	}
	fs.files["/a.txt"] = []byte("hello")
	return fs
}

func req(cmd byte, payload []byte) []byte {
	out := make([]byte, 3+len(payload))
	out[0] = cmd
	out[1] = byte(len(payload))
	out[2] = byte(len(payload) >> 8)
	copy(out[3:], payload)
	return out
}

func pathPayload(p string) []byte {
	return append([]byte{byte(len(p))}, p...)
}

func TestListDirScenario(t *testing.T) {
	e := NewEngine(rootFS(), nil, nil)

	got := e.Feed(req(CmdListDir, pathPayload("/")))
	require.Equal(t, []byte{0x0C, 0x00, 0x01, 0x00, 0x05, 'a', '.', 't', 'x', 't', 0x05, 0x00, 0x00, 0x00}, got)

	got = e.Feed(req(CmdListDir, []byte{0x00}))
	require.Equal(t, []byte{0x07, 0x00, 0x01, 0x01, 0x04, 'l', 'o', 'g', 's'}, got)

	got = e.Feed(req(CmdListDir, []byte{0x00}))
	require.Equal(t, []byte{0x01, 0x00, 0x00}, got)
}

func TestOpenReadCloseScenario(t *testing.T) {
	e := NewEngine(rootFS(), nil, nil)

	got := e.Feed(req(CmdOpenFile, pathPayload("/a.txt")))
	require.Equal(t, []byte{0x04, 0x00, 0x05, 0x00, 0x00, 0x00}, got)

	got = e.Feed(req(CmdReadChunk, []byte{0, 0, 0, 0, 3, 0}))
	require.Equal(t, []byte{0x05, 0x00, 0x03, 0x00, 'h', 'e', 'l'}, got)

	got = e.Feed(req(CmdReadChunk, []byte{3, 0, 0, 0, 10, 0}))
	require.Equal(t, []byte{0x04, 0x00, 0x02, 0x00, 'l', 'o'}, got)

	got = e.Feed(req(CmdCloseFile, nil))
	require.Equal(t, []byte{0x00, 0x00}, got)

	got = e.Feed(req(CmdReadChunk, []byte{0, 0, 0, 0, 1, 0}))
	require.Equal(t, []byte{0x02, 0x00, 0x00, 0x00}, got)
}

func TestDeleteWhileClosedScenario(t *testing.T) {
	e := NewEngine(rootFS(), nil, nil)

	got := e.Feed(req(CmdDeleteFile, pathPayload("/a.txt")))
	require.Equal(t, []byte{0x00, 0x00}, got)

	_, err := e.fs.Open("/a.txt")
	require.ErrorIs(t, err, ErrNoPath)
}

func TestDirectoryIteratorIgnoresPathDuringIteration(t *testing.T) {
	e := NewEngine(rootFS(), nil, nil)

	_ = e.Feed(req(CmdListDir, pathPayload("/")))
	// A bogus path in the continuation call must be ignored: iteration
	// continues over the directory opened by the first call.
	got := e.Feed(req(CmdListDir, pathPayload("/logs")))
	require.Equal(t, []byte{0x07, 0x00, 0x01, 0x01, 0x04, 'l', 'o', 'g', 's'}, got)
}

func TestSingleOpenFileModel(t *testing.T) {
	fs := rootFS()
	fs.files["/b.txt"] = []byte("world!")
	fs.dirs["/"] = append(fs.dirs["/"], FileEntry{Name: "b.txt", Type: EntryFile, Size: 6})
	e := NewEngine(fs, nil, nil)

	got := e.Feed(req(CmdOpenFile, pathPayload("/a.txt")))
	require.Equal(t, []byte{0x04, 0x00, 0x05, 0x00, 0x00, 0x00}, got)

	// Opening b.txt while a.txt is open must close a.txt implicitly and
	// return b.txt's own size.
	got = e.Feed(req(CmdOpenFile, pathPayload("/b.txt")))
	require.Equal(t, []byte{0x04, 0x00, 0x06, 0x00, 0x00, 0x00}, got)

	// Deleting a.txt is fine now since it is no longer the open file.
	got = e.Feed(req(CmdDeleteFile, pathPayload("/a.txt")))
	require.Equal(t, []byte{0x00, 0x00}, got)
	_, err := fs.Open("/a.txt")
	require.ErrorIs(t, err, ErrNoPath)

	// Deleting the currently-open file must be refused (no-op, empty
	// response) while it remains open.
	got = e.Feed(req(CmdDeleteFile, pathPayload("/b.txt")))
	require.Equal(t, []byte{0x00, 0x00}, got)
	_, err = fs.Open("/b.txt")
	require.NoError(t, err, "open file must survive a delete attempt while still open")

	got = e.Feed(req(CmdCloseFile, nil))
	require.Equal(t, []byte{0x00, 0x00}, got)

	got = e.Feed(req(CmdDeleteFile, pathPayload("/b.txt")))
	require.Equal(t, []byte{0x00, 0x00}, got)
	_, err = fs.Open("/b.txt")
	require.ErrorIs(t, err, ErrNoPath)
}

func TestReadChunkClampsToMaxData(t *testing.T) {
	fs := newMemFS()
	big := make([]byte, 1000)
	for i := range big {
		big[i] = byte(i % 251)
	}
	fs.files["/big.bin"] = big
	e := NewEngine(fs, nil, nil)

	_ = e.Feed(req(CmdOpenFile, pathPayload("/big.bin")))

	wantLen := make([]byte, 2)
	wantLen[0] = byte(500)
	wantLen[1] = byte(500 >> 8)
	got := e.Feed(req(CmdReadChunk, append([]byte{0, 0, 0, 0}, wantLen...)))

	// Response: len-prefix, then actual(2)=MaxReadChunkData, then data.
	require.Equal(t, uint16(MaxReadChunkData), uint16(got[2])|uint16(got[3])<<8)
	require.Len(t, got, 2+2+MaxReadChunkData)
}

func TestReadChunkPastEOFReturnsZero(t *testing.T) {
	fs := rootFS()
	e := NewEngine(fs, nil, nil)
	_ = e.Feed(req(CmdOpenFile, pathPayload("/a.txt")))

	got := e.Feed(req(CmdReadChunk, []byte{100, 0, 0, 0, 5, 0}))
	require.Equal(t, []byte{0x02, 0x00, 0x00, 0x00}, got)
}

func TestReadChunkNoOpenFileReturnsZero(t *testing.T) {
	e := NewEngine(rootFS(), nil, nil)
	got := e.Feed(req(CmdReadChunk, []byte{0, 0, 0, 0, 5, 0}))
	require.Equal(t, []byte{0x02, 0x00, 0x00, 0x00}, got)
}

func TestOpenMissingFileReturnsEmpty(t *testing.T) {
	e := NewEngine(rootFS(), nil, nil)
	got := e.Feed(req(CmdOpenFile, pathPayload("/missing.txt")))
	require.Equal(t, []byte{0x00, 0x00}, got)
}

func TestSysInfoDispatchesToTelemetryProvider(t *testing.T) {
	tel := &stubTelemetry{v1: []byte{1, 2, 3}, v2: []byte{4, 5, 6, 7}}

	e1 := NewEngine(rootFS(), nil, tel)
	got := e1.Feed(req(CmdSysInfo, nil))
	require.Equal(t, []byte{0x03, 0x00, 1, 2, 3}, got)

	e2 := NewEngine(rootFS(), nil, tel, WithSysInfoV2())
	got = e2.Feed(req(CmdSysInfo, nil))
	require.Equal(t, []byte{0x04, 0x00, 4, 5, 6, 7}, got)
}

func TestGpsWakeupAndKeepAliveDispatchToHook(t *testing.T) {
	hook := &stubHook{}
	e := NewEngine(rootFS(), hook, nil)

	_ = e.Feed(req(CmdGpsWakeup, nil))
	require.True(t, hook.woke)

	_ = e.Feed(req(CmdGpsKeepAlive, []byte{30, 0}))
	require.Equal(t, uint16(30), hook.keepAliveMin)
}

func TestAgnssStagingDeliversOnEnd(t *testing.T) {
	hook := &stubHook{}
	e := NewEngine(rootFS(), hook, nil)

	_ = e.Feed(req(CmdStartAgnss, []byte{1, 2, 3, 4}))

	chunk1 := []byte{0xAA, 0xBB}
	_ = e.Feed(req(CmdWriteAgnssChunk, append([]byte{byte(len(chunk1)), 0}, chunk1...)))
	chunk2 := []byte{0xCC}
	_ = e.Feed(req(CmdWriteAgnssChunk, append([]byte{byte(len(chunk2)), 0}, chunk2...)))

	require.Nil(t, hook.agnssFrames, "frames must not reach the hook before EndAgnss")

	got := e.Feed(req(CmdEndAgnss, nil))
	require.Equal(t, []byte{0x00, 0x00}, got)
	require.Equal(t, [][]byte{chunk1, chunk2}, hook.agnssFrames)
}

func TestTooLargeRequestIsSilentlyDropped(t *testing.T) {
	e := NewEngine(rootFS(), nil, nil)

	oversized := make([]byte, MaxRequestPayload+1)
	bad := req(CmdListDir, oversized)

	// Queue a valid request right after the oversized one; only its
	// response should appear.
	good := req(CmdListDir, pathPayload("/"))

	got := e.Feed(append(bad, good...))
	require.Equal(t, []byte{0x0C, 0x00, 0x01, 0x00, 0x05, 'a', '.', 't', 'x', 't', 0x05, 0x00, 0x00, 0x00}, got)
}

func TestFeedAcrossMultiplePartialWrites(t *testing.T) {
	e := NewEngine(rootFS(), nil, nil)
	full := req(CmdListDir, pathPayload("/"))

	var got []byte
	for _, b := range full {
		got = append(got, e.Feed([]byte{b})...)
	}
	require.Equal(t, []byte{0x0C, 0x00, 0x01, 0x00, 0x05, 'a', '.', 't', 'x', 't', 0x05, 0x00, 0x00, 0x00}, got)
}
