package transport

import (
	"fmt"
	"io"
	"net"
	"sync"
	"time"
)

// Telnet protocol constants (RFC 854). This client declines every option
// proposal (WONT/DONT): a scraping client has no use for echo suppression,
// NAWS, or terminal-type negotiation, it only needs a clean byte stream.
const (
	iacByte  byte = 255
	dontByte byte = 254
	doByte   byte = 253
	wontByte byte = 252
	willByte byte = 251
	sbByte   byte = 250
	seByte   byte = 240
)

type telnetState int

const (
	stateData telnetState = iota
	stateIAC
	stateNegotiate // byte following WILL/WONT/DO/DONT
	stateSB
	stateSBIAC
)

// Telnet is a raw-TCP Transport that transparently negotiates away Telnet
// options, leaving the byte stream that channel.Channel sees free of IAC
// sequences.
type Telnet struct {
	opts Options

	mu       sync.Mutex
	conn     net.Conn
	deadline time.Duration
	closed   bool

	// IAC state machine, persists across Read calls.
	state      telnetState
	negotiator byte // WILL/WONT/DO/DONT currently being answered
}

// NewTelnet constructs a Telnet transport. Call Open to dial.
func NewTelnet(opts Options) *Telnet {
	return &Telnet{opts: opts, deadline: opts.TimeoutTransport, state: stateData}
}

// Open dials the device over TCP. Telnet has no session-layer handshake of
// its own; in-channel username/password prompts (if any) are driven by
// channel.Channel.AuthenticateTelnet once the transport reports Open.
func (t *Telnet) Open() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conn != nil {
		return nil
	}

	addr := net.JoinHostPort(t.opts.Host, portOrDefault(t.opts.Port, 23))
	timeout := nonZero(t.opts.TimeoutSocket, 10*time.Second)
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return fmt.Errorf("%w: dial %s: %w", ErrTimeout, addr, err)
	}
	t.conn = conn
	t.state = stateData
	return nil
}

// Close is idempotent.
func (t *Telnet) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closeLocked()
}

func (t *Telnet) closeLocked() error {
	if t.closed {
		return nil
	}
	t.closed = true
	if t.conn != nil {
		return t.conn.Close()
	}
	return nil
}

// IsAlive is best-effort: it reports whether the socket has not been closed.
func (t *Telnet) IsAlive() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conn != nil && !t.closed
}

// Read returns the next chunk of application bytes with any Telnet IAC
// sequences stripped and answered in-line.
func (t *Telnet) Read() ([]byte, error) {
	t.mu.Lock()
	conn := t.conn
	closed := t.closed
	deadline := t.deadline
	t.mu.Unlock()

	if closed || conn == nil {
		return nil, ErrNotOpened
	}

	if deadline > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(deadline))
	} else {
		_ = conn.SetReadDeadline(time.Time{})
	}

	raw := make([]byte, 64*1024)
	n, err := conn.Read(raw)
	if err != nil {
		if isTimeoutErr(err) {
			return nil, nil
		}
		if err == io.EOF || isClosedConnErr(err) {
			return nil, fmt.Errorf("%w: %w", ErrConnectionLost, err)
		}
		return nil, err
	}

	t.mu.Lock()
	data, reply := t.filterIAC(raw[:n])
	t.mu.Unlock()

	if len(reply) > 0 {
		_, _ = conn.Write(reply)
	}
	return data, nil
}

// filterIAC runs the IAC state machine over newly-read bytes, returning the
// application data (with all telnet commands removed) and any reply bytes
// that must be written back (option refusals).
func (t *Telnet) filterIAC(in []byte) (data []byte, reply []byte) {
	data = make([]byte, 0, len(in))
	for _, b := range in {
		switch t.state {
		case stateData:
			if b == iacByte {
				t.state = stateIAC
			} else {
				data = append(data, b)
			}
		case stateIAC:
			switch b {
			case iacByte:
				// Escaped 0xFF literal.
				data = append(data, iacByte)
				t.state = stateData
			case willByte, wontByte, doByte, dontByte:
				t.negotiator = b
				t.state = stateNegotiate
			case sbByte:
				t.state = stateSB
			default:
				t.state = stateData
			}
		case stateNegotiate:
			reply = append(reply, t.refusalFor(t.negotiator, b)...)
			t.state = stateData
		case stateSB:
			if b == iacByte {
				t.state = stateSBIAC
			}
			// Subnegotiation payload is discarded; we never ask for it.
		case stateSBIAC:
			if b == seByte {
				t.state = stateData
			} else if b != iacByte {
				t.state = stateData
			}
		}
	}
	return data, reply
}

// refusalFor answers any DO/WILL proposal with the declining counterpart,
// and simply acknowledges WONT/DONT notifications (no reply needed).
func (t *Telnet) refusalFor(negotiator, option byte) []byte {
	switch negotiator {
	case doByte:
		return []byte{iacByte, wontByte, option}
	case willByte:
		return []byte{iacByte, dontByte, option}
	default:
		return nil
	}
}

// Write writes b verbatim, escaping any literal 0xFF byte per RFC 854 so it
// is not mistaken for IAC.
func (t *Telnet) Write(b []byte) (int, error) {
	t.mu.Lock()
	conn := t.conn
	closed := t.closed
	t.mu.Unlock()

	if closed || conn == nil {
		return 0, ErrNotOpened
	}

	escaped := make([]byte, 0, len(b))
	for _, c := range b {
		escaped = append(escaped, c)
		if c == iacByte {
			escaped = append(escaped, iacByte)
		}
	}

	n, err := conn.Write(escaped)
	if err != nil && isClosedConnErr(err) {
		return n, fmt.Errorf("%w: %w", ErrConnectionLost, err)
	}
	// Report the count in terms of the caller's un-escaped input.
	if n >= len(escaped) {
		return len(b), nil
	}
	return n, err
}

// SetTimeout adjusts the per-Read deadline.
func (t *Telnet) SetTimeout(d time.Duration) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.deadline = d
	return nil
}
