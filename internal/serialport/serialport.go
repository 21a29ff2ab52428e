// Package serialport wraps the GNSS UART transport (§6: 9600 baud, 8N1).
// It adapts the teacher's internal/port.GNSSSerialPort — same
// go.bug.st/serial-backed Port interface and config struct — generalized
// from the TOPGNSS TOP708's fixed 38400 baud to the tracker's configurable
// link, with the port-enumeration helpers kept for startup diagnostics.
package serialport

import (
	"fmt"
	"time"

	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

// Port defines the GNSS UART operations the state machine and framing
// codec need; a fake satisfying this interface drives the core's tests
// without real hardware.
type Port interface {
	Open(portName string) error
	Close() error
	Read(buffer []byte) (int, error)
	Write(data []byte) (int, error)
	SetReadTimeout(timeout time.Duration) error
}

// Config holds the GNSS UART's serial parameters.
type Config struct {
	BaudRate int
	DataBits int
	Parity   serial.Parity
	StopBits serial.StopBits
	Timeout  time.Duration
}

// DefaultConfig returns the §6 GNSS UART defaults: 9600 8N1.
func DefaultConfig() Config {
	return Config{
		BaudRate: 9600,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
		Timeout:  500 * time.Millisecond,
	}
}

// GNSSPort implements Port over go.bug.st/serial.
type GNSSPort struct {
	port   serial.Port
	config Config
}

// New creates a GNSSPort with the given configuration.
func New(cfg Config) *GNSSPort {
	return &GNSSPort{config: cfg}
}

// Open opens portName with the configured mode and read timeout.
func (p *GNSSPort) Open(portName string) error {
	mode := &serial.Mode{
		BaudRate: p.config.BaudRate,
		DataBits: p.config.DataBits,
		Parity:   p.config.Parity,
		StopBits: p.config.StopBits,
	}

	port, err := serial.Open(portName, mode)
	if err != nil {
		return fmt.Errorf("serialport: open %s: %w", portName, err)
	}
	p.port = port

	if err := p.port.SetReadTimeout(p.config.Timeout); err != nil {
		return fmt.Errorf("serialport: set read timeout: %w", err)
	}
	return nil
}

// Close closes the port, if open.
func (p *GNSSPort) Close() error {
	if p.port == nil {
		return nil
	}
	return p.port.Close()
}

// Read reads into buffer.
func (p *GNSSPort) Read(buffer []byte) (int, error) {
	if p.port == nil {
		return 0, fmt.Errorf("serialport: not open")
	}
	return p.port.Read(buffer)
}

// Write writes data.
func (p *GNSSPort) Write(data []byte) (int, error) {
	if p.port == nil {
		return 0, fmt.Errorf("serialport: not open")
	}
	return p.port.Write(data)
}

// SetReadTimeout updates the read timeout of an open port.
func (p *GNSSPort) SetReadTimeout(timeout time.Duration) error {
	if p.port == nil {
		return fmt.Errorf("serialport: not open")
	}
	p.config.Timeout = timeout
	return p.port.SetReadTimeout(timeout)
}

// ListPorts returns the names of all detected serial ports, for startup
// diagnostics (not on the hot path).
func ListPorts() ([]string, error) {
	details, err := GetPortDetails()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(details))
	for _, d := range details {
		names = append(names, d.Name)
	}
	return names, nil
}

// GetPortDetails returns the enumerator's detailed port list.
func GetPortDetails() ([]*enumerator.PortDetails, error) {
	return enumerator.GetDetailedPortsList()
}
