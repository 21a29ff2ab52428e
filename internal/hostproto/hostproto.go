// Package hostproto implements the BLE-UART host request/response protocol
// engine (§4.4): command dispatch, the stateful directory iterator, the
// single-open-file model, and the A-GNSS staging buffer. It follows the
// teacher's interface-first device abstraction (internal/device.GNSSDevice)
// for its FileSystem seam, and its mutex-guarded stateful-object pattern
// (internal/device.TOPGNSSDevice, internal/rtk.Processor) for the Engine's
// own single-open-file and iterator state.
package hostproto

import "errors"

// Command ids (§4.4).
const (
	CmdListDir         byte = 0x01
	CmdOpenFile        byte = 0x02
	CmdReadChunk       byte = 0x03
	CmdCloseFile       byte = 0x04
	CmdDeleteFile      byte = 0x05
	CmdSysInfo         byte = 0x06
	CmdStartAgnss      byte = 0x07
	CmdWriteAgnssChunk byte = 0x08
	CmdEndAgnss        byte = 0x09
	CmdGpsWakeup       byte = 0x0A
	CmdGpsKeepAlive    byte = 0x0B
)

const (
	// MaxRequestPayload is the largest payload a request frame may carry;
	// larger requests are silently dropped.
	MaxRequestPayload = 570

	// dirResponseBufferSize and readResponseBufferSize bound the response
	// payload for ListDir and ReadChunk respectively.
	dirResponseBufferSize  = 128
	readResponseBufferSize = 256

	// MaxReadChunkData is the hard cap on file-chunk data in a single
	// ReadChunk response, independent of MTU: readResponseBufferSize minus
	// the 2-byte `actual` prefix.
	MaxReadChunkData = readResponseBufferSize - 2

	// maxNameLen bounds a file entry's name, per §3.
	maxNameLen = 64
)

var (
	// ErrNoPath is returned by a FileSystem implementation for a path that
	// does not exist.
	ErrNoPath = errors.New("hostproto: no such path")
)

// EntryType distinguishes files from directories in a ListDir response.
type EntryType uint8

const (
	EntryFile EntryType = iota
	EntryDir
)

// FileEntry is one file-system entry (§3).
type FileEntry struct {
	Name string
	Type EntryType
	Size uint32 // files only
	Path string
}

// File is an open, readable file handle. ReadAt semantics follow io.ReaderAt:
// it must not move any shared cursor, since ReadChunk addresses by absolute
// offset.
type File interface {
	ReadAt(p []byte, off int64) (n int, err error)
	Size() int64
	Close() error
}

// FileSystem is the storage seam the engine walks and reads; it is not part
// of the core (the SD block driver is an external collaborator per §1), but
// the engine owns its single open handle and iterator state regardless of
// the concrete FileSystem behind it.
type FileSystem interface {
	// List returns the entries of a directory in a stable (root) order.
	List(path string) ([]FileEntry, error)
	// Open opens a file for reading.
	Open(path string) (File, error)
	// Delete removes a file.
	Delete(path string) error
}

// StateHook lets GpsWakeup / GpsKeepAlive / EndAgnss cross into the GNSS
// power+fix state machine without the engine importing it directly.
type StateHook interface {
	RequestWake()
	SetKeepAlive(minutes uint16)
	BeginAgnss(frames [][]byte)
}

// TelemetryProvider supplies the current snapshot for SysInfo responses.
type TelemetryProvider interface {
	SysInfoV1() []byte
	SysInfoV2() []byte
}
