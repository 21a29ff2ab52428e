// Package sdfs adapts the host protocol engine's FileSystem seam to a real
// on-disk directory, standing in for the SD card block driver that §1 scopes
// out as an external collaborator. It uses the same plain os.* calls as the
// teacher's internal/position.Position.SaveToFile/LoadFromFile.
package sdfs

import (
	"os"
	"path/filepath"

	"github.com/bramburn/go_ntrip/internal/hostproto"
)

// Dir implements hostproto.FileSystem over a real directory tree rooted at
// Root. Paths are host-supplied and always treated as relative to Root; the
// engine never passes ".." segments (the host firmware only ever echoes
// paths it first received from ListDir).
type Dir struct {
	Root string
}

// New creates a Dir rooted at root.
func New(root string) *Dir {
	return &Dir{Root: root}
}

func (d *Dir) resolve(path string) string {
	clean := filepath.Clean("/" + path)
	return filepath.Join(d.Root, clean)
}

// List returns the entries of path sorted by file name (os.ReadDir's order).
func (d *Dir) List(path string) ([]hostproto.FileEntry, error) {
	full := d.resolve(path)
	entries, err := os.ReadDir(full)
	if err != nil {
		return nil, hostproto.ErrNoPath
	}

	out := make([]hostproto.FileEntry, 0, len(entries))
	for _, e := range entries {
		typ := hostproto.EntryFile
		var size uint32
		if e.IsDir() {
			typ = hostproto.EntryDir
		} else if info, err := e.Info(); err == nil {
			size = uint32(info.Size())
		}
		out = append(out, hostproto.FileEntry{
			Name: e.Name(),
			Type: typ,
			Size: size,
			Path: filepath.Join(path, e.Name()),
		})
	}
	return out, nil
}

// osFile adapts *os.File to hostproto.File's ReadAt/Size/Close contract.
type osFile struct {
	f    *os.File
	size int64
}

func (o *osFile) ReadAt(p []byte, off int64) (int, error) { return o.f.ReadAt(p, off) }
func (o *osFile) Size() int64                             { return o.size }
func (o *osFile) Close() error                             { return o.f.Close() }


// Open opens path for reading.
func (d *Dir) Open(path string) (hostproto.File, error) {
	full := d.resolve(path)
	f, err := os.Open(full)
	if err != nil {
		return nil, hostproto.ErrNoPath
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, hostproto.ErrNoPath
	}
	return &osFile{f: f, size: info.Size()}, nil
}

// Delete removes path.
func (d *Dir) Delete(path string) error {
	full := d.resolve(path)
	if err := os.Remove(full); err != nil {
		return hostproto.ErrNoPath
	}
	return nil
}
