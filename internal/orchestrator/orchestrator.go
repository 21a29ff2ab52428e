// Package orchestrator owns the run loop, time, and the wiring named in
// §4.8: it routes GNSS bytes, host bytes, and motion samples between the
// components and keeps the one telemetry snapshot up to date. Its only own
// task is the periodic timer loop in Run; it does not start tasks that read
// the GNSS UART, the host transport, or the accelerometer — callers push
// those inputs in through FeedGNSSBytes, FeedHostBytes, and
// FeedMotionSample. It follows main.go's top-level construction style —
// plain constructor calls wiring concrete structs together — with Run as a
// goroutine that `select`s on the context and a `*time.Ticker`.
package orchestrator

import (
	"context"
	"io"
	"log"
	"time"

	"github.com/bramburn/go_ntrip/internal/fsm"
	"github.com/bramburn/go_ntrip/internal/gnssframing"
	"github.com/bramburn/go_ntrip/internal/hostproto"
	"github.com/bramburn/go_ntrip/internal/motion"
	"github.com/bramburn/go_ntrip/internal/nmeafeed"
	"github.com/bramburn/go_ntrip/internal/serialport"
	"github.com/bramburn/go_ntrip/internal/telemetry"
	"github.com/bramburn/go_ntrip/internal/trackcodec"
	"github.com/bramburn/go_ntrip/internal/tracklog"
)

// restartClass/restartID identify the GNSS restart command emitted on
// EmitRestart (§4.6's post-16-failures recovery), reusing the binary
// framing codec's AID/AIDINI message the teacher's UBX dialect assigns to
// receiver configuration commands.
const (
	restartClass = gnssframing.ClassAID
	restartID    = gnssframing.IDAIDINI
)

// HostConn is the host BLE-UART transport: a reliable, ordered byte stream
// per §5's ordering guarantee. Nothing in this package reads or writes a
// HostConn; host bytes enter through FeedHostBytes.
type HostConn interface {
	io.Reader
	io.Writer
}

// Config bundles every tunable the orchestrator wires into its components.
type Config struct {
	GNSSPort        serialport.Config
	GNSSPortName    string
	FSM             fsm.Config
	TrackVersion    trackcodec.Version
	TrackInterval   int
	TrackDir        string
	MotionWindow    int
	MotionStillG    float64
	MotionJumpG     float64
	TickInterval    time.Duration
	EnableSysInfoV2 bool
}

// DefaultConfig returns sensible defaults for every sub-component.
func DefaultConfig() Config {
	return Config{
		GNSSPort:      serialport.DefaultConfig(),
		FSM:           fsm.DefaultConfig(),
		TrackVersion:  trackcodec.V2,
		TrackInterval: 64,
		TrackDir:      ".",
		MotionWindow:  motion.DefaultWindowSize,
		MotionStillG:  motion.DefaultStillThreshold,
		MotionJumpG:   motion.DefaultJumpThreshold,
		TickInterval:  100 * time.Millisecond,
	}
}

// Orchestrator wires the core's components together and drives their
// cooperative tasks.
type Orchestrator struct {
	cfg Config
	log *log.Logger

	gnssPort serialport.Port
	framing  *gnssframing.Parser
	nmea     nmeafeed.Feed

	machine *fsm.Machine
	engine  *hostproto.Engine

	store    *telemetry.Store
	provider *telemetry.Provider
	logger   *tracklog.Logger
	analyzer *motion.Analyzer
}

// New constructs an Orchestrator. fs backs the host protocol engine's
// directory/file browsing; nmea binds the out-of-scope NMEA collaborator
// contract (§1); gnssPort is the GNSS UART transport.
func New(cfg Config, logger *log.Logger, gnssPort serialport.Port, fs hostproto.FileSystem, nmea nmeafeed.Feed) *Orchestrator {
	if logger == nil {
		logger = log.Default()
	}

	store := telemetry.NewStore()
	provider := telemetry.NewProvider(store)
	enc := trackcodec.NewEncoder(cfg.TrackVersion, cfg.TrackInterval)
	tlog := tracklog.New(cfg.TrackDir, enc, logger)
	analyzer := motion.NewAnalyzer(cfg.MotionWindow, cfg.MotionStillG, cfg.MotionJumpG)

	o := &Orchestrator{
		cfg:      cfg,
		log:      logger,
		gnssPort: gnssPort,
		framing:  gnssframing.NewParser(),
		nmea:     nmea,
		store:    store,
		provider: provider,
		logger:   tlog,
		analyzer: analyzer,
	}

	fsmCfg := cfg.FSM
	fsmCfg.Agnss.PowerOn = func() { /* GNSS power control is an external collaborator */ }
	fsmCfg.Agnss.Send = func(frame []byte) {
		if _, err := o.gnssPort.Write(frame); err != nil {
			o.log.Printf("orchestrator: agnss frame write failed: %v", err)
		}
	}
	machine := fsm.New(fsmCfg, fsm.Hooks{
		PowerOn:  func() { /* GNSS power control is an external collaborator */ },
		PowerOff: func() { /* GNSS power control is an external collaborator */ },
		EmitRestart: func() {
			frame := gnssframing.Emit(gnssframing.DefaultMagic1, gnssframing.DefaultMagic2, restartClass, restartID, nil)
			if _, err := o.gnssPort.Write(frame); err != nil {
				o.log.Printf("orchestrator: restart frame write failed: %v", err)
			}
		},
		WritePoint: o.writeTrackPoint,
	})
	o.machine = machine

	var opts []hostproto.Option
	if cfg.EnableSysInfoV2 {
		opts = append(opts, hostproto.WithSysInfoV2())
	}
	o.engine = hostproto.NewEngine(fs, machine, provider, opts...)

	return o
}

// writeTrackPoint adapts an accepted fsm.Fix into a trackcodec.Point and
// hands it to the track logger, logging (not propagating) any rejection
// per §7's "error is logged locally; the host is not notified" policy.
func (o *Orchestrator) writeTrackPoint(fix fsm.Fix) {
	unit := 1_000_000.0
	if o.cfg.TrackVersion == trackcodec.V2 {
		unit = 10_000_000.0
	}
	p := trackcodec.Point{
		TimestampS: fix.TimestampS,
		LatScaled:  int32(fix.Latitude * unit),
		LonScaled:  int32(fix.Longitude * unit),
		AltScaled:  int32(fix.AltitudeM * 10),
	}
	if err := o.logger.Accept(p, time.Now()); err != nil {
		o.log.Printf("orchestrator: track point rejected: %v", err)
	}
}

// Telemetry returns the shared telemetry store for read access.
func (o *Orchestrator) Telemetry() *telemetry.Store { return o.store }

// Machine returns the GNSS power+fix state machine.
func (o *Orchestrator) Machine() *fsm.Machine { return o.machine }

// Engine returns the host protocol engine.
func (o *Orchestrator) Engine() *hostproto.Engine { return o.engine }

// Run ticks the state machine every TickInterval and blocks until ctx is
// cancelled, then flushes the track logger. It reads no input itself: GNSS
// bytes, host bytes, and motion samples arrive through FeedGNSSBytes,
// FeedHostBytes, and FeedMotionSample.
func (o *Orchestrator) Run(ctx context.Context) {
	ticker := time.NewTicker(o.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = o.logger.Flush()
			return
		case now := <-ticker.C:
			o.machine.Tick(now)
		}
	}
}

// FeedMotionSample delivers one accelerometer sample to the motion
// analyzer and forwards its predicates to the state machine.
func (o *Orchestrator) FeedMotionSample(now time.Time, x, y, z float64) {
	o.analyzer.AddSample(motion.Magnitude(x, y, z))
	o.machine.OnMotion(now, o.analyzer.IsStill(), o.analyzer.HasJump())
}

// FeedGNSSBytes routes raw GNSS UART bytes through the framing codec,
// dispatching binary frames to the state machine's A-GNSS ACK/NACK events
// and forwarding NMEA text to the nmeafeed.Feed collaborator.
func (o *Orchestrator) FeedGNSSBytes(now time.Time, data []byte) {
	frames, nmeaBytes := o.framing.Process(data, now)

	for _, f := range frames {
		switch {
		case f.IsAck():
			o.machine.OnAgnssAck(now)
		case f.IsNack():
			o.machine.OnAgnssNack(now)
		}
	}

	if len(nmeaBytes) == 0 || o.nmea == nil {
		return
	}
	upd, ok := o.nmea.FeedLine(string(nmeaBytes))
	if !ok {
		return
	}
	o.applyTelemetryUpdate(now, upd)
}

func (o *Orchestrator) applyTelemetryUpdate(now time.Time, upd nmeafeed.Update) {
	o.store.Update(func(s *telemetry.Snapshot) {
		if upd.HasPosition {
			s.Latitude = upd.Latitude
			s.Longitude = upd.Longitude
			s.Altitude = float32(upd.Altitude)
		}
		if upd.HasFixQuality {
			s.Satellites = uint32(upd.Satellites)
			s.HDOP = float32(upd.HDOP)
		}
		if upd.HasSpeed {
			s.SpeedKPH = float32(upd.SpeedKPH)
			s.CourseDeg = float32(upd.CourseDeg)
		}
		if upd.HasDateTime {
			s.Year = uint16(upd.Year)
			s.Month = uint8(upd.Month)
			s.Day = uint8(upd.Day)
			s.Hour = uint8(upd.Hour)
			s.Minute = uint8(upd.Minute)
			s.Second = uint8(upd.Second)
		}
		s.LocationValid = upd.LocationValid
		s.DateTimeValid = upd.DateTimeValid
		s.GNSSState = uint8(o.machine.State())
	})

	o.machine.OnFix(now, fsm.Fix{
		LocationValid: upd.LocationValid,
		DateValid:     upd.DateTimeValid,
		TimeValid:     upd.DateTimeValid,
		HDOP:          upd.HDOP,
		Satellites:    upd.Satellites,
		SpeedKPH:      upd.SpeedKPH,
		Latitude:      upd.Latitude,
		Longitude:     upd.Longitude,
		AltitudeM:     upd.Altitude,
		TimestampS:    uint32(now.Unix()),
	})
}

// FeedHostBytes feeds bytes arrived from the host transport into the
// protocol engine and returns the response bytes to send back.
func (o *Orchestrator) FeedHostBytes(data []byte) []byte {
	return o.engine.Feed(data)
}
