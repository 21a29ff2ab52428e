// Package telemetry holds the process-wide telemetry snapshot (§3): latest
// valid position/fix quality, wall-clock fields, battery, GNSS state, and
// environment readings. It is single-writer (the orchestrator), many-reader,
// following the same Position-as-plain-struct shape as the teacher's
// internal/position.Position, wrapped in a small mutex-guarded Store instead
// of a bare shared global.
package telemetry

import "sync"

// Snapshot is the telemetry record described in §3. Validity of location and
// date/time is tracked independently since a receiver can have one without
// the other (e.g. a valid time solution before the position converges).
type Snapshot struct {
	Latitude  float64
	Longitude float64
	Altitude  float32
	Satellites uint32
	HDOP      float32
	SpeedKPH  float32
	CourseDeg float32

	Year   uint16
	Month  uint8
	Day    uint8
	Hour   uint8
	Minute uint8
	Second uint8

	LocationValid bool
	DateTimeValid bool

	BatteryVoltage float32
	BatteryPercent uint8

	GNSSState uint8

	Stationary              bool
	KeepAliveRemainingS     uint16
	TemperatureC            float32
	PressurePa              float32
}

// Store is a single-writer, many-reader holder for the current Snapshot.
// Readers get an atomically-consistent copy; the write path is a short
// critical section (a mutex, not a lock-free structure, since writes are
// infrequent relative to reads and the teacher's own shared state — e.g.
// internal/device.TOPGNSSDevice — uses the same sync.Mutex pattern).
type Store struct {
	mu  sync.RWMutex
	cur Snapshot
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{}
}

// Get returns a copy of the current snapshot.
func (s *Store) Get() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cur
}

// Set replaces the current snapshot.
func (s *Store) Set(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cur = snap
}

// Update applies fn to the stored snapshot in place while holding the
// write lock, for callers that only want to touch a few fields (e.g. the
// battery-sampling task updating just BatteryVoltage/BatteryPercent).
func (s *Store) Update(fn func(*Snapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.cur)
}
