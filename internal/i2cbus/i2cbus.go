// Package i2cbus implements the scoped-acquisition mutex wrapper around the
// shared I²C bus used by the display, accelerometer, and barometer (§5, §9's
// "I²C bus shared by display, accelerometer, barometer" redesign flag). It
// wraps a periph.io/x/conn/v3/i2c.Bus the way the teacher wraps go.bug.st's
// serial port in internal/port.GNSSSerialPort: a thin struct around the
// real driver, with a sync.Mutex guaranteeing release on every exit path.
package i2cbus

import (
	"fmt"
	"sync"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"
)

// SharedBus serializes access to a single I²C bus among multiple
// peripheral drivers. Borrowers never see the underlying bus directly; they
// only get it for the lifetime of one With call.
type SharedBus struct {
	mu  sync.Mutex
	bus i2c.Bus
}

// New wraps an already-opened i2c.Bus (e.g. from periph.io/x/host/v3's
// bus registry) with scoped-acquisition locking.
func New(bus i2c.Bus) *SharedBus {
	return &SharedBus{bus: bus}
}

// With acquires the bus, runs fn against it, and releases the bus on every
// return path including a panic unwinding through fn.
func (s *SharedBus) With(fn func(i2c.Bus) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.bus)
}

// Tx is a convenience wrapper for the common single-transaction case: write
// w to addr, then read len(r) bytes into r.
func (s *SharedBus) Tx(addr uint16, w, r []byte) error {
	return s.With(func(bus i2c.Bus) error {
		if err := bus.Tx(addr, w, r); err != nil {
			return fmt.Errorf("i2cbus: tx to %#02x: %w", addr, err)
		}
		return nil
	})
}

// SetSpeed configures the bus clock, guarded the same as any other
// transaction.
func (s *SharedBus) SetSpeed(freq physic.Frequency) error {
	return s.With(func(bus i2c.Bus) error {
		if err := bus.SetSpeed(freq); err != nil {
			return fmt.Errorf("i2cbus: set speed: %w", err)
		}
		return nil
	})
}
