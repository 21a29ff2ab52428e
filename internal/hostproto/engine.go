package hostproto

import (
	"encoding/binary"
	"sync"
)

// Engine is the host protocol's request dispatcher. It owns the single
// open file handle and the directory iterator (§3's ownership rule), and
// stages A-GNSS frames handed to it by WriteAgnssChunk until EndAgnss
// delivers them to the GNSS state machine. One Engine serves one host
// connection; it is safe for concurrent Feed calls, mirroring the
// mutex-guarded stateful objects of the teacher (internal/rtk.Processor).
type Engine struct {
	mu sync.Mutex

	fs        FileSystem
	hook      StateHook
	telemetry TelemetryProvider
	sysInfoV2 bool

	inbuf []byte

	dirActive  bool
	dirEntries []FileEntry
	dirIndex   int

	openFile File
	openPath string

	agnssQueue [][]byte
}

// Option configures an Engine at construction time.
type Option func(*Engine)

// WithSysInfoV2 switches SysInfo responses to the 63-byte V2 layout
// (default: the 50-byte V1 layout).
func WithSysInfoV2() Option {
	return func(e *Engine) { e.sysInfoV2 = true }
}

// NewEngine creates an Engine over the given storage, state-machine hook,
// and telemetry provider.
func NewEngine(fs FileSystem, hook StateHook, telemetry TelemetryProvider, opts ...Option) *Engine {
	e := &Engine{fs: fs, hook: hook, telemetry: telemetry}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Feed appends newly arrived transport bytes and returns the wire-encoded
// response frames (`payload_len(2) | payload`) produced by every complete
// request found in the accumulated buffer, in arrival order. The engine
// processes exactly one request at a time; a request frame longer than
// MaxRequestPayload is consumed and silently dropped (no response frame).
func (e *Engine) Feed(data []byte) []byte {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.inbuf = append(e.inbuf, data...)

	var out []byte
	for {
		if len(e.inbuf) < 3 {
			break
		}
		cmd := e.inbuf[0]
		payloadLen := int(binary.LittleEndian.Uint16(e.inbuf[1:3]))

		if payloadLen > MaxRequestPayload {
			if len(e.inbuf) < 3+payloadLen {
				break // wait for the rest so the stream stays in sync
			}
			e.inbuf = e.inbuf[3+payloadLen:]
			continue // TooLargePayload: dropped, no response
		}

		if len(e.inbuf) < 3+payloadLen {
			break
		}
		payload := e.inbuf[3 : 3+payloadLen]
		e.inbuf = e.inbuf[3+payloadLen:]

		resp := e.dispatch(cmd, payload)
		out = append(out, encodeResponseFrame(resp)...)
	}

	return out
}

func encodeResponseFrame(payload []byte) []byte {
	out := make([]byte, 2+len(payload))
	binary.LittleEndian.PutUint16(out[0:2], uint16(len(payload)))
	copy(out[2:], payload)
	return out
}

// dispatch runs one command and returns its response payload (without the
// length prefix). Called with e.mu held.
func (e *Engine) dispatch(cmd byte, payload []byte) []byte {
	switch cmd {
	case CmdListDir:
		return e.handleListDir(payload)
	case CmdOpenFile:
		return e.handleOpenFile(payload)
	case CmdReadChunk:
		return e.handleReadChunk(payload)
	case CmdCloseFile:
		return e.handleCloseFile()
	case CmdDeleteFile:
		return e.handleDeleteFile(payload)
	case CmdSysInfo:
		return e.handleSysInfo()
	case CmdStartAgnss:
		return e.handleStartAgnss()
	case CmdWriteAgnssChunk:
		return e.handleWriteAgnssChunk(payload)
	case CmdEndAgnss:
		return e.handleEndAgnss()
	case CmdGpsWakeup:
		return e.handleGpsWakeup()
	case CmdGpsKeepAlive:
		return e.handleGpsKeepAlive(payload)
	default:
		return nil
	}
}

func parsePathField(payload []byte) string {
	if len(payload) < 1 {
		return "/"
	}
	n := int(payload[0])
	if n == 0 {
		return "/"
	}
	if len(payload) < 1+n {
		return "/"
	}
	return string(payload[1 : 1+n])
}

func (e *Engine) handleListDir(payload []byte) []byte {
	if !e.dirActive {
		path := parsePathField(payload)
		entries, err := e.fs.List(path)
		if err != nil {
			entries = nil
		}
		e.dirEntries = entries
		e.dirIndex = 0
		e.dirActive = true
	}

	if e.dirIndex >= len(e.dirEntries) {
		e.dirActive = false
		return []byte{0x00}
	}

	entry := e.dirEntries[e.dirIndex]
	e.dirIndex++

	name := entry.Name
	if len(name) > maxNameLen {
		name = name[:maxNameLen]
	}

	out := make([]byte, 0, 3+len(name)+4)
	out = append(out, 0x01, byte(entry.Type), byte(len(name)))
	out = append(out, name...)
	if entry.Type == EntryFile {
		sz := make([]byte, 4)
		binary.LittleEndian.PutUint32(sz, entry.Size)
		out = append(out, sz...)
	}
	return out
}

func (e *Engine) handleOpenFile(payload []byte) []byte {
	if e.openFile != nil {
		_ = e.openFile.Close()
		e.openFile = nil
		e.openPath = ""
	}

	path := parsePathField(payload)
	f, err := e.fs.Open(path)
	if err != nil {
		return []byte{}
	}

	e.openFile = f
	e.openPath = path

	out := make([]byte, 4)
	binary.LittleEndian.PutUint32(out, uint32(f.Size()))
	return out
}

func (e *Engine) handleReadChunk(payload []byte) []byte {
	fail := []byte{0x00, 0x00}
	if len(payload) < 6 {
		return fail
	}
	offset := int64(binary.LittleEndian.Uint32(payload[0:4]))
	want := int(binary.LittleEndian.Uint16(payload[4:6]))
	if want > MaxReadChunkData {
		want = MaxReadChunkData
	}

	if e.openFile == nil || offset < 0 || offset >= e.openFile.Size() {
		return fail
	}

	data := make([]byte, want)
	n, err := e.openFile.ReadAt(data, offset)
	if n <= 0 && err != nil {
		return fail
	}

	out := make([]byte, 2+n)
	binary.LittleEndian.PutUint16(out[0:2], uint16(n))
	copy(out[2:], data[:n])
	return out
}

func (e *Engine) handleCloseFile() []byte {
	if e.openFile != nil {
		_ = e.openFile.Close()
		e.openFile = nil
		e.openPath = ""
	}
	return []byte{}
}

func (e *Engine) handleDeleteFile(payload []byte) []byte {
	if e.openFile != nil {
		return []byte{}
	}
	path := parsePathField(payload)
	_ = e.fs.Delete(path)
	return []byte{}
}

func (e *Engine) handleSysInfo() []byte {
	if e.telemetry == nil {
		return []byte{}
	}
	if e.sysInfoV2 {
		return e.telemetry.SysInfoV2()
	}
	return e.telemetry.SysInfoV1()
}

func (e *Engine) handleStartAgnss() []byte {
	// Per §9's faithful-migration flag: the wire spec ignores the request
	// payload even though the public doc implies a total-size field.
	e.agnssQueue = nil
	return []byte{}
}

func (e *Engine) handleWriteAgnssChunk(payload []byte) []byte {
	if len(payload) < 2 {
		return []byte{}
	}
	chunkSize := int(binary.LittleEndian.Uint16(payload[0:2]))
	dataLen := len(payload) - 2
	if chunkSize == 0 || chunkSize > dataLen {
		return []byte{}
	}
	frame := make([]byte, chunkSize)
	copy(frame, payload[2:2+chunkSize])
	e.agnssQueue = append(e.agnssQueue, frame)
	return []byte{}
}

func (e *Engine) handleEndAgnss() []byte {
	queue := e.agnssQueue
	e.agnssQueue = nil
	if e.hook != nil && len(queue) > 0 {
		e.hook.BeginAgnss(queue)
	}
	return []byte{}
}

func (e *Engine) handleGpsWakeup() []byte {
	if e.hook != nil {
		e.hook.RequestWake()
	}
	return []byte{}
}

func (e *Engine) handleGpsKeepAlive(payload []byte) []byte {
	var minutes uint16
	if len(payload) >= 2 {
		minutes = binary.LittleEndian.Uint16(payload[0:2])
	}
	if e.hook != nil {
		e.hook.SetKeepAlive(minutes)
	}
	return []byte{}
}
