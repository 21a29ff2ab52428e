package gnssframing

import "time"

// state is the byte-level parser state of §4.3.
type state int

const (
	stateIdle state = iota
	stateH1
	stateLen0
	stateLen1
	stateClass
	stateID
	statePayload
	stateCsum0
	stateCsum1
	stateCsum2
	stateCsum3
)

// Parser accumulates bytes from the GNSS UART and publishes binary frames
// once their checksum validates, forwarding every other byte as NMEA text.
// It is not safe for concurrent use; the orchestrator owns one per UART.
type Parser struct {
	magic1, magic2 byte
	maxPayload     int
	frameDeadline  time.Duration

	st          state
	payloadLen  int
	class, id   byte
	payload     []byte
	csumBytes   [4]byte
	csumFilled  int
	lastAdvance time.Time
}

// Option configures a Parser at construction time.
type Option func(*Parser)

// WithMagic overrides the two magic bytes (default 0xB5 0x62).
func WithMagic(m1, m2 byte) Option {
	return func(p *Parser) { p.magic1, p.magic2 = m1, m2 }
}

// WithMaxPayload overrides the maximum payload size, clamped to
// MinMaxPayload.
func WithMaxPayload(n int) Option {
	return func(p *Parser) {
		if n < MinMaxPayload {
			n = MinMaxPayload
		}
		p.maxPayload = n
	}
}

// WithFrameDeadline overrides the per-frame deadline, clamped to
// DefaultFrameDeadline.
func WithFrameDeadline(d time.Duration) Option {
	return func(p *Parser) {
		if d < DefaultFrameDeadline {
			d = DefaultFrameDeadline
		}
		p.frameDeadline = d
	}
}

// NewParser creates a Parser in the Idle state.
func NewParser(opts ...Option) *Parser {
	p := &Parser{
		magic1:        DefaultMagic1,
		magic2:        DefaultMagic2,
		maxPayload:    DefaultMaxPayload,
		frameDeadline: DefaultFrameDeadline,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// State reports the parser's current byte-level state, for diagnostics.
func (p *Parser) State() string {
	switch p.st {
	case stateIdle:
		return "Idle"
	case stateH1:
		return "H1"
	case stateLen0:
		return "Len0"
	case stateLen1:
		return "Len1"
	case stateClass:
		return "Class"
	case stateID:
		return "Id"
	case statePayload:
		return "Payload"
	case stateCsum0, stateCsum1, stateCsum2, stateCsum3:
		return "Csum"
	default:
		return "Unknown"
	}
}

// Process consumes data received at time now, returning every binary frame
// completed during this call (in arrival order) and every byte that did not
// belong to a binary frame, for the surrounding NMEA text parser.
func (p *Parser) Process(data []byte, now time.Time) (frames []Frame, nmea []byte) {
	for _, b := range data {
		p.checkDeadline(now)

		frame, passthrough, isNMEA := p.step(b, now)
		if frame != nil {
			frames = append(frames, *frame)
		}
		if isNMEA {
			nmea = append(nmea, passthrough)
		}
	}
	return frames, nmea
}

// checkDeadline resets the parser to Idle if more than frameDeadline has
// elapsed since the last state advance while a frame is in progress.
func (p *Parser) checkDeadline(now time.Time) {
	if p.st == stateIdle {
		return
	}
	if !p.lastAdvance.IsZero() && now.Sub(p.lastAdvance) > p.frameDeadline {
		p.reset()
	}
}

func (p *Parser) reset() {
	p.st = stateIdle
	p.payloadLen = 0
	p.payload = nil
	p.csumFilled = 0
}

// step advances the state machine by one byte. It returns a completed frame
// (if the checksum validated), or reports the byte as NMEA passthrough.
func (p *Parser) step(b byte, now time.Time) (frame *Frame, passthroughByte byte, isNMEA bool) {
	switch p.st {
	case stateIdle:
		if b == p.magic1 {
			p.st = stateH1
			p.lastAdvance = now
			return nil, 0, false
		}
		return nil, b, true

	case stateH1:
		switch {
		case b == p.magic2:
			p.st = stateLen0
			p.lastAdvance = now
			return nil, 0, false
		case b == p.magic1:
			// Repeated first-magic byte: stay in H1, re-synchronizing.
			p.lastAdvance = now
			return nil, 0, false
		default:
			p.reset()
			return nil, b, true
		}

	case stateLen0:
		p.payloadLen = int(b)
		p.st = stateLen1
		p.lastAdvance = now
		return nil, 0, false

	case stateLen1:
		p.payloadLen |= int(b) << 8
		p.lastAdvance = now
		if p.payloadLen > p.maxPayload {
			p.reset()
			return nil, 0, false
		}
		p.st = stateClass
		return nil, 0, false

	case stateClass:
		p.class = b
		p.st = stateID
		p.lastAdvance = now
		return nil, 0, false

	case stateID:
		p.id = b
		p.payload = make([]byte, 0, p.payloadLen)
		p.lastAdvance = now
		if p.payloadLen == 0 {
			p.st = stateCsum0
		} else {
			p.st = statePayload
		}
		return nil, 0, false

	case statePayload:
		p.payload = append(p.payload, b)
		p.lastAdvance = now
		if len(p.payload) == p.payloadLen {
			p.st = stateCsum0
		}
		return nil, 0, false

	case stateCsum0, stateCsum1, stateCsum2, stateCsum3:
		idx := int(p.st - stateCsum0)
		p.csumBytes[idx] = b
		p.csumFilled++
		p.lastAdvance = now
		if p.csumFilled < 4 {
			p.st++
			return nil, 0, false
		}
		return p.finishFrame(), 0, false
	}

	return nil, 0, false
}

func (p *Parser) finishFrame() *Frame {
	received := uint32(p.csumBytes[0]) | uint32(p.csumBytes[1])<<8 |
		uint32(p.csumBytes[2])<<16 | uint32(p.csumBytes[3])<<24
	computed := Checksum(p.class, p.id, p.payload)

	class, id, payload := p.class, p.id, p.payload
	p.reset()

	if received != computed {
		return nil
	}
	return &Frame{Class: class, ID: id, Payload: payload}
}
