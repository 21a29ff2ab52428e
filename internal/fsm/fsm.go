// Package fsm implements the GNSS Power+Fix State Machine (§4.6): the six
// named states, their timers, and the transitions between them, including
// the reentrant A-GNSS substate. It follows the same sync.Mutex-guarded
// device-state shape as internal/device.TOPGNSSDevice, with the timer/event
// loop modeled on gnss_receiver.go's goroutine-plus-channel task.
package fsm

import (
	"sync"
	"time"

	"github.com/bramburn/go_ntrip/internal/agnss"
)

// State identifies one of the six named states of §4.6.
type State int

const (
	Init State = iota
	Searching
	IdleOff
	Tracking
	AnalyzingStill
	AgnssProc
)

func (s State) String() string {
	switch s {
	case Init:
		return "Init"
	case Searching:
		return "Searching"
	case IdleOff:
		return "IdleOff"
	case Tracking:
		return "Tracking"
	case AnalyzingStill:
		return "AnalyzingStill"
	case AgnssProc:
		return "AgnssProc"
	default:
		return "Unknown"
	}
}

// Default tuning constants (§6).
const (
	DefaultTCold                    = 90 * time.Second
	DefaultTReacquire               = 30 * time.Second
	DefaultTActive                  = 10 * time.Second
	DefaultTStillConfirm            = 60 * time.Second
	DefaultTS4Query                 = 5 * time.Second
	DefaultVehicleSpeedThreshKPH    = 5.0
	DefaultMinHDOPForValidFix       = 2.0
	DefaultMaxConsecutiveFixFailure = 16
	DefaultHighSpeedOverrideKPH     = 20.0
	DefaultHighSpeedMinSatellites   = 4
)

// Fix is one GNSS solution observation fed to the machine from S1/S3/S4.
// Latitude/Longitude/AltitudeM/TimestampS carry the position the Tracking
// state's active-sample timer hands to the Track Logger; the remaining
// fields drive the §4.6 fix-validity policy only.
type Fix struct {
	LocationValid bool
	DateValid     bool
	TimeValid     bool
	HDOP          float64
	Satellites    int
	SpeedKPH      float64

	Latitude   float64
	Longitude  float64
	AltitudeM  float64
	TimestampS uint32
}

// isFull reports whether fix meets the "full fix" policy of §4.6, with the
// high-speed HDOP waiver.
func (f Fix) isFull(minHDOP float64, highSpeedThresh float64, highSpeedMinSats int) bool {
	if !f.LocationValid || !f.DateValid || !f.TimeValid {
		return false
	}
	if f.SpeedKPH > highSpeedThresh {
		return f.Satellites > highSpeedMinSats
	}
	return f.HDOP < minHDOP
}

// Config holds the tunables of §6, constructed with DefaultConfig the same
// way the teacher builds port.DefaultSerialConfig().
type Config struct {
	TCold                    time.Duration
	TReacquire               time.Duration
	TActive                  time.Duration
	TStillConfirm            time.Duration
	TS4Query                 time.Duration
	VehicleSpeedThreshKPH    float64
	MinHDOPForValidFix       float64
	MaxConsecutiveFixFailure int
	HighSpeedOverrideKPH     float64
	HighSpeedMinSatellites   int

	// EnableGNSSRestartOnFailure gates the §9 open question's resolved
	// behavior: a GNSS restart frame is emitted after
	// MaxConsecutiveFixFailure failures, then the counter resets.
	EnableGNSSRestartOnFailure bool

	Agnss agnss.Deps
}

// DefaultConfig returns the §6 tunable defaults with GNSS restart enabled.
func DefaultConfig() Config {
	return Config{
		TCold:                      DefaultTCold,
		TReacquire:                 DefaultTReacquire,
		TActive:                    DefaultTActive,
		TStillConfirm:              DefaultTStillConfirm,
		TS4Query:                   DefaultTS4Query,
		VehicleSpeedThreshKPH:      DefaultVehicleSpeedThreshKPH,
		MinHDOPForValidFix:         DefaultMinHDOPForValidFix,
		MaxConsecutiveFixFailure:   DefaultMaxConsecutiveFixFailure,
		HighSpeedOverrideKPH:       DefaultHighSpeedOverrideKPH,
		HighSpeedMinSatellites:     DefaultHighSpeedMinSatellites,
		EnableGNSSRestartOnFailure: true,
	}
}

// Hooks are the machine's side effects, kept as plain function fields so the
// machine never imports the serial transport, the track logger, or the
// framing codec directly — the same seam style as hostproto.StateHook.
type Hooks struct {
	PowerOn      func()
	PowerOff     func()
	EmitRestart  func()
	WritePoint   func(Fix)
}

// Machine is the GNSS Power+Fix State Machine. One Machine per device; all
// public methods are safe for concurrent use.
type Machine struct {
	mu sync.Mutex

	cfg   Config
	hooks Hooks

	state      State
	priorState State // for AgnssProc's return-to-prior-state

	fixAttemptDeadline  time.Time
	activeSampleDeadline time.Time
	stillConfirmDeadline time.Time
	s4QueryDeadline      time.Time

	consecutiveFailures int
	keepAliveRemaining  time.Duration
	keepAliveDeadline   time.Time

	lastFix Fix

	injector *agnss.Injector
}

// New creates a Machine in S0 Init.
func New(cfg Config, hooks Hooks) *Machine {
	return &Machine{
		cfg:      cfg,
		hooks:    hooks,
		state:    Init,
		injector: agnss.NewInjector(cfg.Agnss),
	}
}

// State returns the current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// KeepAliveRemaining returns the remaining keep-alive duration, clamped to
// zero once it has elapsed.
func (m *Machine) KeepAliveRemaining(now time.Time) time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.keepAliveDeadline.IsZero() || !now.Before(m.keepAliveDeadline) {
		return 0
	}
	return m.keepAliveDeadline.Sub(now)
}

// poweredFor reports whether state invariant requires GNSS power, matching P7:
// powered off iff state ∈ {S0, S2}.
func poweredFor(s State) bool {
	return s != Init && s != IdleOff
}

// CompleteInit transitions out of S0 once peripherals finish initializing.
// attemptFixImmediately selects S1 (power-savvy deployments pass false to
// go straight to S2).
func (m *Machine) CompleteInit(now time.Time, attemptFixImmediately bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != Init {
		return
	}
	if attemptFixImmediately {
		m.enterSearching(now, m.cfg.TCold, true)
	} else {
		m.enterIdleOff()
	}
}

func (m *Machine) enterSearching(now time.Time, timeout time.Duration, clearFailures bool) {
	if clearFailures {
		m.consecutiveFailures = 0
	}
	m.state = Searching
	m.fixAttemptDeadline = now.Add(timeout)
	if m.hooks.PowerOn != nil {
		m.hooks.PowerOn()
	}
}

func (m *Machine) enterIdleOff() {
	m.state = IdleOff
	m.fixAttemptDeadline = time.Time{}
	m.activeSampleDeadline = time.Time{}
	m.stillConfirmDeadline = time.Time{}
	if m.hooks.PowerOff != nil {
		m.hooks.PowerOff()
	}
}

func (m *Machine) enterTracking(now time.Time) {
	m.state = Tracking
	m.activeSampleDeadline = now.Add(m.cfg.TActive)
	m.stillConfirmDeadline = time.Time{}
}

// OnFix delivers a GNSS solution observation while in S1, S3, or S4.
func (m *Machine) OnFix(now time.Time, fix Fix) {
	m.mu.Lock()
	defer m.mu.Unlock()

	full := fix.isFull(m.cfg.MinHDOPForValidFix, m.cfg.HighSpeedOverrideKPH, m.cfg.HighSpeedMinSatellites)

	switch m.state {
	case Searching:
		if full {
			// A fix ends the consecutive-failure run; see DESIGN.md for why
			// this, not every S2->S1 reentry, is where the counter clears.
			m.consecutiveFailures = 0
			m.lastFix = fix
			m.enterTracking(now)
		}
	case Tracking:
		if !full {
			m.state = Searching
			m.fixAttemptDeadline = now.Add(m.cfg.TReacquire)
			m.stillConfirmDeadline = time.Time{}
			return
		}
		// §4.6: S3 only writes a point when its active-sample timer
		// expires, reading whatever the latest fix was at that instant.
		m.lastFix = fix
	case AnalyzingStill:
		if full && fix.SpeedKPH > m.cfg.VehicleSpeedThreshKPH {
			m.enterTracking(now)
		} else {
			m.enterIdleOff()
		}
	}
}

// Tick advances all armed timers against now, firing any transitions whose
// deadline has passed. Callers should invoke this on every scheduler turn.
func (m *Machine) Tick(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.state {
	case Searching:
		if !m.fixAttemptDeadline.IsZero() && !now.Before(m.fixAttemptDeadline) {
			m.onFixAttemptTimeout(now)
		}
	case Tracking:
		if !m.activeSampleDeadline.IsZero() && !now.Before(m.activeSampleDeadline) {
			if m.hooks.WritePoint != nil && m.lastFix.LocationValid {
				m.hooks.WritePoint(m.lastFix)
			}
			m.activeSampleDeadline = now.Add(m.cfg.TActive)
		}
		if !m.stillConfirmDeadline.IsZero() && !now.Before(m.stillConfirmDeadline) {
			m.state = AnalyzingStill
			m.s4QueryDeadline = now.Add(m.cfg.TS4Query)
			m.stillConfirmDeadline = time.Time{}
		}
	case AnalyzingStill:
		if !m.s4QueryDeadline.IsZero() && !now.Before(m.s4QueryDeadline) {
			m.enterIdleOff()
		}
	case AgnssProc:
		out := m.injector.Tick(now)
		m.maybeResolveAgnss(now, out)
	}

	if m.keepAliveDeadline.IsZero() == false && !now.Before(m.keepAliveDeadline) {
		m.keepAliveDeadline = time.Time{}
	}
}

func (m *Machine) onFixAttemptTimeout(now time.Time) {
	keepAliveActive := !m.keepAliveDeadline.IsZero() && now.Before(m.keepAliveDeadline)
	if keepAliveActive {
		// §4.6: while keep-alive-remaining > 0, S1 timeout restarts
		// searching instead of transitioning to S2.
		m.fixAttemptDeadline = now.Add(m.cfg.TReacquire)
		return
	}

	m.consecutiveFailures++
	if m.consecutiveFailures >= m.cfg.MaxConsecutiveFixFailure {
		if m.cfg.EnableGNSSRestartOnFailure && m.hooks.EmitRestart != nil {
			m.hooks.EmitRestart()
		}
		m.consecutiveFailures = 0
	}
	m.enterIdleOff()
}

// OnMotion delivers a motion-analyzer predicate update. still indicates the
// analyzer currently reports stillness; jump indicates a hasJump event.
func (m *Machine) OnMotion(now time.Time, still, jump bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.state {
	case IdleOff:
		if jump || !still {
			m.enterSearching(now, m.cfg.TCold, false)
		}
	case Tracking:
		if still {
			if m.stillConfirmDeadline.IsZero() {
				m.stillConfirmDeadline = now.Add(m.cfg.TStillConfirm)
			}
		} else {
			m.stillConfirmDeadline = time.Time{}
		}
	case AnalyzingStill:
		if jump || !still {
			m.enterTracking(now)
		}
	case AgnssProc:
		// Motion never interrupts injection; it only updates which state to
		// resume into once the injector finishes (§4.5).
		if jump || !still {
			if m.priorState == IdleOff {
				m.priorState = Searching
			}
		}
	}
}

// OnHostWake handles GpsWakeup: a request to leave IdleOff for Searching.
func (m *Machine) OnHostWake(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == IdleOff {
		m.enterSearching(now, m.cfg.TCold, false)
	}
}

// OnHostKeepAlive handles GpsKeepAlive(minutes). Zero cancels; a positive
// duration holds GNSS active and, from IdleOff, activates immediately.
func (m *Machine) OnHostKeepAlive(now time.Time, minutes uint16) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if minutes == 0 {
		m.keepAliveDeadline = time.Time{}
		return
	}

	m.keepAliveDeadline = now.Add(time.Duration(minutes) * time.Minute)
	if m.state == IdleOff {
		m.enterSearching(now, m.cfg.TCold, false)
	}
}

// BeginAgnss enters S5 AgnssProc from any state and starts the injector
// over frames. Satisfies hostproto.StateHook.
func (m *Machine) BeginAgnss(frames [][]byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.beginAgnss(time.Now(), frames)
}

// BeginAgnssAt is BeginAgnss with an explicit clock, for deterministic tests.
func (m *Machine) BeginAgnssAt(now time.Time, frames [][]byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.beginAgnss(now, frames)
}

func (m *Machine) beginAgnss(now time.Time, frames [][]byte) {
	if len(frames) == 0 {
		return
	}
	m.priorState = m.state
	m.state = AgnssProc
	if err := m.injector.Start(frames, now); err != nil {
		m.state = m.priorState
	}
}

// OnAgnssAck/OnAgnssNack feed the injector's ACK/NACK events while in S5.
func (m *Machine) OnAgnssAck(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != AgnssProc {
		return
	}
	m.maybeResolveAgnss(now, m.injector.OnAck(now))
}

func (m *Machine) OnAgnssNack(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != AgnssProc {
		return
	}
	m.maybeResolveAgnss(now, m.injector.OnNack(now))
}

// maybeResolveAgnss returns the machine to its prior state once the
// injector's run is no longer Pending, re-arming that state's timers.
// Called with m.mu held.
func (m *Machine) maybeResolveAgnss(now time.Time, out agnss.Outcome) {
	if out == agnss.Pending {
		return
	}
	switch m.priorState {
	case Tracking:
		m.enterTracking(now)
	case IdleOff:
		m.enterIdleOff()
	default:
		m.enterSearching(now, m.cfg.TReacquire, false)
	}
}

// RequestWake satisfies hostproto.StateHook.
func (m *Machine) RequestWake() { m.OnHostWake(time.Now()) }

// SetKeepAlive satisfies hostproto.StateHook.
func (m *Machine) SetKeepAlive(minutes uint16) { m.OnHostKeepAlive(time.Now(), minutes) }

// GNSSPowered reports whether the current state keeps the GNSS receiver
// powered, per P7.
func (m *Machine) GNSSPowered() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return poweredFor(m.state)
}
