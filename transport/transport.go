package transport

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"
)

// Sentinel errors. Transport implementations must return errors that
// satisfy errors.Is against these, wrapping the underlying cause with %w.
var (
	// ErrNotOpened is returned by any operation attempted before Open has
	// succeeded.
	ErrNotOpened = errors.New("transport: not opened")

	// ErrConnectionLost is returned when the pipe is confirmed gone: EOF on
	// read, or a write that fails because the peer is no longer reachable.
	ErrConnectionLost = errors.New("transport: connection lost")

	// ErrAuthFailed is returned by NativeSSH when library-level
	// authentication (password, key) is rejected by the server. SystemSSH
	// and Telnet surface authentication failure through the channel instead,
	// since their credentials are typed into the terminal in-band.
	ErrAuthFailed = errors.New("transport: authentication failed")

	// ErrTimeout is returned when Open cannot establish the pipe: the dial
	// fails or exceeds its socket timeout (NativeSSH, Telnet), or ssh(1)
	// cannot be started under a PTY (SystemSSH).
	ErrTimeout = errors.New("transport: timeout")
)

// Selector names a Transport variant. See doc.go for why the "cooperative"
// variants are aliases rather than distinct implementations.
type Selector int

const (
	// SystemSSHSelector launches the host's ssh(1) binary inside a
	// pseudo-terminal.
	SystemSSHSelector Selector = iota
	// NativeSSHSelector drives an in-process SSH client.
	NativeSSHSelector
	// TelnetSelector opens a raw TCP connection and negotiates Telnet IAC
	// options.
	TelnetSelector
	// CooperativeSSHSelector is an alias for NativeSSHSelector: a goroutine
	// blocked in Read/Write already yields to the Go scheduler, so there is
	// no separate non-blocking implementation to instantiate.
	CooperativeSSHSelector
	// CooperativeTelnetSelector is an alias for TelnetSelector, for the same
	// reason as CooperativeSSHSelector.
	CooperativeTelnetSelector
)

// String implements fmt.Stringer.
func (s Selector) String() string {
	switch s {
	case SystemSSHSelector:
		return "system-pty-ssh"
	case NativeSSHSelector:
		return "native-ssh"
	case TelnetSelector:
		return "telnet"
	case CooperativeSSHSelector:
		return "cooperative-ssh"
	case CooperativeTelnetSelector:
		return "cooperative-telnet"
	default:
		return "unknown"
	}
}

// Resolved collapses the cooperative aliases onto their blocking
// counterpart, since this port has one implementation per wire protocol.
func (s Selector) Resolved() Selector {
	switch s {
	case CooperativeSSHSelector:
		return NativeSSHSelector
	case CooperativeTelnetSelector:
		return TelnetSelector
	default:
		return s
	}
}

// ParseSelector accepts the string form of any Selector, plus a bare "ssh"
// alias for the system PTY variant.
func ParseSelector(s string) (Selector, error) {
	switch strings.ToLower(s) {
	case "system-pty-ssh", "systemssh", "system_ssh", "ssh":
		return SystemSSHSelector, nil
	case "native-ssh", "nativessh":
		return NativeSSHSelector, nil
	case "telnet":
		return TelnetSelector, nil
	case "cooperative-ssh":
		return CooperativeSSHSelector, nil
	case "cooperative-telnet":
		return CooperativeTelnetSelector, nil
	default:
		return 0, fmt.Errorf("transport: unknown selector %q", s)
	}
}

// Transport is the byte pipe to a device. Implementations: SystemSSH,
// NativeSSH, Telnet.
//
// A Transport is not safe for concurrent use; the channel package serializes
// access with its own lock when the caller asks for one.
type Transport interface {
	// Open establishes the byte pipe, honoring the configured socket
	// timeout. It does not guarantee the device has authenticated the
	// session; for SystemSSH and Telnet that happens in-band and is the
	// channel's job.
	Open() error

	// Close releases OS resources. Idempotent.
	Close() error

	// IsAlive is a best-effort liveness check. It never blocks on I/O.
	IsAlive() bool

	// Read returns whatever bytes are currently buffered, possibly none. It
	// never blocks past the current read deadline and returns
	// ErrConnectionLost on EOF.
	Read() ([]byte, error)

	// Write writes all of b or returns an error. Returns ErrConnectionLost
	// if the pipe is gone, ErrNotOpened if Open was never called.
	Write(b []byte) (int, error)

	// SetTimeout adjusts the read deadline used by subsequent Read calls.
	SetTimeout(d time.Duration) error
}

// Options carries the transport-specific knobs the driver exposes as an
// opaque bag. Only the fields relevant to the selected Selector are
// consulted.
type Options struct {
	Host string
	Port int

	// Common auth/timeout fields, duplicated here (rather than imported from
	// driver) to keep this package import-free of the driver package.
	Username             string
	Password             string
	PrivateKeyPath       string
	PrivateKeyPassphrase string
	StrictKeyChecking    bool
	KnownHostsPath       string
	TimeoutSocket        time.Duration
	TimeoutTransport     time.Duration

	// SSHConfigPath is the path to an OpenSSH client config file consulted
	// by SystemSSH, or "" (use the OS default) / "-" (ignore entirely).
	SSHConfigPath string

	// PTYRows/PTYCols set the pseudo-terminal geometry for SystemSSH.
	// A wide default (see DefaultPTYCols) keeps devices from line-wrapping
	// long output and corrupting prompt matching.
	PTYRows int
	PTYCols int

	// ExtraSSHArgs are appended verbatim to the system ssh(1) invocation.
	ExtraSSHArgs []string

	// CipherSuites/KexAlgorithms are passed through to NativeSSH's
	// ssh.ClientConfig unmodified; the underlying library negotiates them.
	CipherSuites  []string
	KexAlgorithms []string
}

// DefaultPTYRows and DefaultPTYCols are intentionally wide: a narrow
// terminal causes devices to wrap long lines, which corrupts prompt
// matching.
const (
	DefaultPTYRows = 80
	DefaultPTYCols = 256
)

func (o Options) ptySize() (rows, cols int) {
	rows, cols = o.PTYRows, o.PTYCols
	if rows <= 0 {
		rows = DefaultPTYRows
	}
	if cols <= 0 {
		cols = DefaultPTYCols
	}
	return rows, cols
}

// isClosedConnErr classifies common OS-level "the pipe is gone" strings,
// since not every I/O error wraps a typed sentinel.
func isClosedConnErr(err error) bool {
	if err == nil {
		return false
	}
	s := strings.ToLower(err.Error())
	for _, needle := range []string{
		"connection reset",
		"broken pipe",
		"use of closed network connection",
		"eof",
		"no route to host",
		"connection refused",
	} {
		if strings.Contains(s, needle) {
			return true
		}
	}
	return false
}

// isTimeoutErr reports whether err is a deadline-exceeded style error from
// net or os, as opposed to a connection-lost error.
func isTimeoutErr(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	ne, ok := err.(net.Error)
	return ok && ne.Timeout()
}
