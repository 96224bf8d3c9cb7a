package transport

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/creack/pty"
)

// SystemSSH launches the host's ssh(1) binary inside a pseudo-terminal and
// drives its stdin/stdout as the byte pipe. Credentials typed in response to
// a password or passphrase prompt are the channel's responsibility
// (channel.Channel.AuthenticateSSH). This transport only guarantees the
// process is running and the PTY is attached: Open succeeds once the pipe
// is ready for I/O, not once the device has authenticated the session.
//
// Row x column geometry defaults wide (DefaultPTYRows x DefaultPTYCols) so
// long device output is not wrapped by the remote terminal, which would
// otherwise corrupt prompt matching.
type SystemSSH struct {
	opts Options

	mu       sync.Mutex
	cmd      *exec.Cmd
	ptyFile  *os.File
	deadline time.Duration
	closed   bool
}

// NewSystemSSH constructs a SystemSSH transport. Call Open to launch ssh(1).
func NewSystemSSH(opts Options) *SystemSSH {
	return &SystemSSH{opts: opts, deadline: opts.TimeoutTransport}
}

func (t *SystemSSH) buildArgs() []string {
	args := []string{
		"-tt", // force PTY allocation even though stdin isn't a terminal
		"-p", fmt.Sprintf("%d", portOrDefaultInt(t.opts.Port, 22)),
		"-l", t.opts.Username,
	}
	switch t.opts.SSHConfigPath {
	case "-":
		args = append(args, "-F", "/dev/null")
	case "":
		// use the OS default ssh_config
	default:
		args = append(args, "-F", t.opts.SSHConfigPath)
	}
	if !t.opts.StrictKeyChecking {
		args = append(args, "-o", "StrictHostKeyChecking=no", "-o", "UserKnownHostsFile=/dev/null")
	} else if t.opts.KnownHostsPath != "" {
		args = append(args, "-o", "UserKnownHostsFile="+t.opts.KnownHostsPath)
	}
	if t.opts.PrivateKeyPath != "" {
		args = append(args, "-i", t.opts.PrivateKeyPath)
	}
	args = append(args, t.opts.ExtraSSHArgs...)
	args = append(args, t.opts.Host)
	return args
}

// Open starts the ssh(1) child process attached to a new PTY.
func (t *SystemSSH) Open() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.cmd != nil {
		return nil
	}

	cmd := exec.Command("ssh", t.buildArgs()...)
	rows, cols := t.opts.ptySize()
	ptmx, err := pty.StartWithSize(cmd, &pty.Winsize{Rows: uint16(rows), Cols: uint16(cols)})
	if err != nil {
		return fmt.Errorf("%w: start ssh under pty: %w", ErrTimeout, err)
	}

	t.cmd = cmd
	t.ptyFile = ptmx
	return nil
}

// Close terminates the child process and releases the PTY. Idempotent.
func (t *SystemSSH) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closeLocked()
}

func (t *SystemSSH) closeLocked() error {
	if t.closed {
		return nil
	}
	t.closed = true
	var firstErr error
	if t.ptyFile != nil {
		if err := t.ptyFile.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if t.cmd != nil && t.cmd.Process != nil {
		_ = t.cmd.Process.Kill()
		_ = t.cmd.Wait()
	}
	return firstErr
}

// IsAlive reports whether the ssh(1) child process is still running.
func (t *SystemSSH) IsAlive() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed || t.cmd == nil || t.cmd.Process == nil {
		return false
	}
	// Signal 0 checks for existence without affecting the process.
	return t.cmd.Process.Signal(syscallSig0()) == nil
}

// Read returns whatever bytes are currently available from the PTY master,
// bounded by the configured deadline.
func (t *SystemSSH) Read() ([]byte, error) {
	t.mu.Lock()
	f := t.ptyFile
	closed := t.closed
	deadline := t.deadline
	t.mu.Unlock()

	if closed || f == nil {
		return nil, ErrNotOpened
	}

	if deadline > 0 {
		_ = f.SetReadDeadline(time.Now().Add(deadline))
	} else {
		_ = f.SetReadDeadline(time.Time{})
	}

	buf := make([]byte, 64*1024)
	n, err := f.Read(buf)
	if err != nil {
		if isTimeoutErr(err) {
			return buf[:n], nil
		}
		if err == io.EOF || isClosedConnErr(err) {
			return buf[:n], fmt.Errorf("%w: %w", ErrConnectionLost, err)
		}
		return buf[:n], err
	}
	return buf[:n], nil
}

// Write writes b to the PTY master (i.e. to ssh(1)'s stdin).
func (t *SystemSSH) Write(b []byte) (int, error) {
	t.mu.Lock()
	f := t.ptyFile
	closed := t.closed
	t.mu.Unlock()

	if closed || f == nil {
		return 0, ErrNotOpened
	}
	n, err := f.Write(b)
	if err != nil && isClosedConnErr(err) {
		return n, fmt.Errorf("%w: %w", ErrConnectionLost, err)
	}
	return n, err
}

// SetTimeout adjusts the per-Read deadline.
func (t *SystemSSH) SetTimeout(d time.Duration) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.deadline = d
	return nil
}

func portOrDefaultInt(port, fallback int) int {
	if port <= 0 {
		return fallback
	}
	return port
}
