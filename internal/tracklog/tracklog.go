// Package tracklog implements the Track Logger (§4.7): daily file rotation,
// a write-through buffer, size-bounded retention, and the sanity filter that
// guards against spurious RTC date resets. It follows the plain os-file IO
// idiom of internal/position.Position's SaveToFile/LoadFromFile, generalized
// from whole-file JSON snapshots to an append-only binary log.
package tracklog

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bramburn/go_ntrip/internal/trackcodec"
)

// BufferSize is the write-through buffer capacity (§6).
const BufferSize = 4096

// RetentionCap is the default total size budget for .gpx files (§6).
const RetentionCap = 520 * 1024

// SanityWindow is the maximum allowed drift between the GNSS timestamp delta
// and the monotonic-clock delta before a point is rejected (§4.7, P10).
const SanityWindow = 3600 * time.Second

// Logger owns the currently open daily log file and its write-through
// buffer. It is the exclusive owner of that file handle (§3); callers feed
// it decoded track points and it takes care of rotation and retention.
type Logger struct {
	dir string
	enc *trackcodec.Encoder
	log *log.Logger

	sessionID string

	curDay   string
	file     *os.File
	buf      []byte
	invalid  bool

	lastGPS  uint32
	lastMono time.Time
	haveLast bool

	retentionCap int64
}

// New creates a Logger writing `YYYYMMDD.gpx` files under dir, encoding
// points with enc (already configured with the desired track-codec version
// and full-block interval). logger defaults to log.Default() when nil, the
// same convention as the orchestrator's other long-running tasks.
func New(dir string, enc *trackcodec.Encoder, logger *log.Logger) *Logger {
	if logger == nil {
		logger = log.Default()
	}
	return &Logger{
		dir:          dir,
		enc:          enc,
		log:          logger,
		sessionID:    uuid.NewString(),
		buf:          make([]byte, 0, BufferSize),
		retentionCap: RetentionCap,
	}
}

// SetRetentionCap overrides the default 520 KiB retention budget.
func (l *Logger) SetRetentionCap(bytes int64) { l.retentionCap = bytes }

func (l *Logger) pathFor(day string) string {
	return filepath.Join(l.dir, day+".gpx")
}

// Accept applies the sanity filter (P10) and, if the point passes, encodes
// and appends it, rotating the day's file and sweeping retention as needed.
// now is the monotonic wall clock at the moment the point was produced.
func (l *Logger) Accept(p trackcodec.Point, now time.Time) error {
	if l.haveLast {
		gpsDelta := int64(p.TimestampS) - int64(l.lastGPS)
		monoDelta := now.Sub(l.lastMono)
		drift := time.Duration(gpsDelta)*time.Second - monoDelta
		if drift > SanityWindow || drift < -SanityWindow {
			l.log.Printf("tracklog[%s]: rejecting point, clock drift %s exceeds sanity window", l.sessionID, drift)
			return fmt.Errorf("tracklog: rejecting point with %s clock drift", drift)
		}
	}

	if err := l.ensureDay(now); err != nil {
		return err
	}

	block, err := l.enc.Encode(p)
	if err != nil {
		return fmt.Errorf("tracklog: encode point: %w", err)
	}

	if len(l.buf)+len(block) > BufferSize {
		if err := l.flush(); err != nil {
			return err
		}
	}
	l.buf = append(l.buf, block...)

	l.lastGPS = p.TimestampS
	l.lastMono = now
	l.haveLast = true
	return nil
}

// ensureDay rotates to a new day's file if the calendar day (UTC) has
// changed since the file was opened, or if no file is open yet.
func (l *Logger) ensureDay(now time.Time) error {
	day := now.UTC().Format("20060102")
	if day == l.curDay && l.file != nil && !l.invalid {
		return nil
	}

	if l.file != nil {
		_ = l.flush()
		_ = l.file.Close()
	}

	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return fmt.Errorf("tracklog: create dir: %w", err)
	}
	if err := l.sweepRetention(); err != nil {
		return fmt.Errorf("tracklog: retention sweep: %w", err)
	}

	f, err := os.OpenFile(l.pathFor(day), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		l.invalid = true
		l.log.Printf("tracklog[%s]: open %s failed: %v", l.sessionID, day, err)
		return fmt.Errorf("tracklog: open %s: %w", day, err)
	}

	l.file = f
	l.curDay = day
	l.invalid = false
	l.buf = l.buf[:0]
	l.enc.Reset()
	return nil
}

// Flush forces the write-through buffer to SD.
func (l *Logger) Flush() error {
	return l.flush()
}

func (l *Logger) flush() error {
	if l.file == nil || len(l.buf) == 0 {
		return nil
	}
	n, err := l.file.Write(l.buf)
	if err != nil || n != len(l.buf) {
		l.invalid = true
		if err == nil {
			err = fmt.Errorf("tracklog: short write %d/%d", n, len(l.buf))
		}
		l.log.Printf("tracklog[%s]: flush failed, file marked invalid: %v", l.sessionID, err)
		return fmt.Errorf("tracklog: flush: %w", err)
	}
	l.buf = l.buf[:0]
	return nil
}

// sweepRetention deletes the oldest .gpx files in l.dir until the total size
// of the remainder is at or below the retention cap.
func (l *Logger) sweepRetention() error {
	entries, err := os.ReadDir(l.dir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}

	type gpxFile struct {
		name string
		size int64
	}
	var files []gpxFile
	var total int64
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".gpx") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, gpxFile{name: e.Name(), size: info.Size()})
		total += info.Size()
	}
	sort.Slice(files, func(i, j int) bool { return files[i].name < files[j].name })

	for i := 0; total > l.retentionCap && i < len(files); i++ {
		if err := os.Remove(filepath.Join(l.dir, files[i].name)); err != nil {
			return err
		}
		total -= files[i].size
	}
	return nil
}

// SessionID identifies this logger instance in local fault logs; it is
// never wire-visible.
func (l *Logger) SessionID() string { return l.sessionID }
