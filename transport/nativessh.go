package transport

import (
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"
)

// NativeSSH drives an in-process SSH client session through a shell
// channel. Authentication (password or private key) is handled by
// golang.org/x/crypto/ssh itself; a failure there surfaces as
// ErrAuthFailed.
type NativeSSH struct {
	opts Options

	mu      sync.Mutex
	client  *ssh.Client
	session *ssh.Session
	stdin   io.WriteCloser

	// chunks is fed by a single pump goroutine started at Open. A
	// per-Read goroutine would lose any chunk that arrives after the
	// deadline fires, since nothing would be left waiting for it.
	chunks  chan []byte
	pumpErr chan error
	termErr error

	deadline time.Duration
	closed   bool
}

// NewNativeSSH constructs a NativeSSH transport. Call Open to connect.
func NewNativeSSH(opts Options) *NativeSSH {
	return &NativeSSH{opts: opts, deadline: opts.TimeoutTransport}
}

func (t *NativeSSH) authMethods() ([]ssh.AuthMethod, error) {
	var methods []ssh.AuthMethod
	if t.opts.PrivateKeyPath != "" {
		keyBytes, err := os.ReadFile(t.opts.PrivateKeyPath)
		if err != nil {
			return nil, fmt.Errorf("transport: read private key: %w", err)
		}
		var signer ssh.Signer
		if t.opts.PrivateKeyPassphrase != "" {
			signer, err = ssh.ParsePrivateKeyWithPassphrase(keyBytes, []byte(t.opts.PrivateKeyPassphrase))
		} else {
			signer, err = ssh.ParsePrivateKey(keyBytes)
		}
		if err != nil {
			return nil, fmt.Errorf("transport: parse private key: %w", err)
		}
		methods = append(methods, ssh.PublicKeys(signer))
	}
	if t.opts.Password != "" {
		methods = append(methods, ssh.Password(t.opts.Password))
	}
	if len(methods) == 0 {
		return nil, fmt.Errorf("transport: no auth method configured (need password or private key)")
	}
	return methods, nil
}

func (t *NativeSSH) hostKeyCallback() ssh.HostKeyCallback {
	if t.opts.StrictKeyChecking && t.opts.KnownHostsPath != "" {
		cb, err := knownHostsCallback(t.opts.KnownHostsPath)
		if err == nil {
			return cb
		}
	}
	return ssh.InsecureIgnoreHostKey()
}

// Open dials the SSH server, opens a session, requests a wide PTY (so long
// lines are not wrapped by the device), and starts the remote shell.
func (t *NativeSSH) Open() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.client != nil {
		return nil
	}

	methods, err := t.authMethods()
	if err != nil {
		return err
	}

	cfg := &ssh.ClientConfig{
		User:            t.opts.Username,
		Auth:            methods,
		HostKeyCallback: t.hostKeyCallback(),
		Timeout:         nonZero(t.opts.TimeoutSocket, 10*time.Second),
	}
	if len(t.opts.CipherSuites) > 0 {
		cfg.Ciphers = t.opts.CipherSuites
	}
	if len(t.opts.KexAlgorithms) > 0 {
		cfg.KeyExchanges = t.opts.KexAlgorithms
	}

	addr := net.JoinHostPort(t.opts.Host, portOrDefault(t.opts.Port, 22))
	client, err := ssh.Dial("tcp", addr, cfg)
	if err != nil {
		if isAuthErr(err) {
			return fmt.Errorf("%w: %w", ErrAuthFailed, err)
		}
		return fmt.Errorf("%w: dial %s: %w", ErrTimeout, addr, err)
	}

	session, err := client.NewSession()
	if err != nil {
		client.Close()
		return fmt.Errorf("transport: new session: %w", err)
	}

	rows, cols := t.opts.ptySize()
	modes := ssh.TerminalModes{
		ssh.ECHO:          1,
		ssh.TTY_OP_ISPEED: 14400,
		ssh.TTY_OP_OSPEED: 14400,
	}
	if err := session.RequestPty("xterm", rows, cols, modes); err != nil {
		session.Close()
		client.Close()
		return fmt.Errorf("transport: request pty: %w", err)
	}

	stdin, err := session.StdinPipe()
	if err != nil {
		session.Close()
		client.Close()
		return fmt.Errorf("transport: stdin pipe: %w", err)
	}
	stdout, err := session.StdoutPipe()
	if err != nil {
		session.Close()
		client.Close()
		return fmt.Errorf("transport: stdout pipe: %w", err)
	}
	if err := session.Shell(); err != nil {
		session.Close()
		client.Close()
		return fmt.Errorf("transport: start shell: %w", err)
	}

	t.client = client
	t.session = session
	t.stdin = stdin
	t.chunks = make(chan []byte, 64)
	t.pumpErr = make(chan error, 1)
	go pump(stdout, t.chunks, t.pumpErr)
	return nil
}

// pump copies stdout into chunks until the stream ends, then parks the
// terminal error in errCh for the next Read to report.
func pump(r io.Reader, chunks chan<- []byte, errCh chan<- error) {
	for {
		buf := make([]byte, 64*1024)
		n, err := r.Read(buf)
		if n > 0 {
			chunks <- buf[:n]
		}
		if err != nil {
			errCh <- err
			close(chunks)
			return
		}
	}
}

// Close is idempotent.
func (t *NativeSSH) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closeLocked()
}

func (t *NativeSSH) closeLocked() error {
	if t.closed {
		return nil
	}
	t.closed = true
	var firstErr error
	if t.session != nil {
		if err := t.session.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if t.client != nil {
		if err := t.client.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// IsAlive is best-effort: it reports whether the client handle is present
// and has not been closed.
func (t *NativeSSH) IsAlive() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.client != nil && !t.closed
}

// Read returns the next chunk the pump goroutine has buffered, or nil if
// nothing arrives before the configured read deadline.
func (t *NativeSSH) Read() ([]byte, error) {
	t.mu.Lock()
	chunks := t.chunks
	closed := t.closed
	deadline := t.deadline
	t.mu.Unlock()

	if closed || chunks == nil {
		return nil, ErrNotOpened
	}

	var timer *time.Timer
	var timerCh <-chan time.Time
	if deadline > 0 {
		timer = time.NewTimer(deadline)
		timerCh = timer.C
		defer timer.Stop()
	}

	select {
	case chunk, ok := <-chunks:
		if !ok {
			t.mu.Lock()
			if t.termErr == nil {
				t.termErr = <-t.pumpErr
			}
			err := t.termErr
			t.mu.Unlock()
			if err == io.EOF || isClosedConnErr(err) {
				return nil, fmt.Errorf("%w: %w", ErrConnectionLost, err)
			}
			return nil, err
		}
		return chunk, nil
	case <-timerCh:
		return nil, nil
	}
}

// Write writes b to the remote shell's stdin.
func (t *NativeSSH) Write(b []byte) (int, error) {
	t.mu.Lock()
	stdin := t.stdin
	closed := t.closed
	t.mu.Unlock()

	if closed {
		return 0, ErrNotOpened
	}
	if stdin == nil {
		return 0, ErrNotOpened
	}
	n, err := stdin.Write(b)
	if err != nil {
		if isClosedConnErr(err) {
			return n, fmt.Errorf("%w: %w", ErrConnectionLost, err)
		}
		return n, err
	}
	return n, nil
}

// SetTimeout adjusts the per-Read deadline.
func (t *NativeSSH) SetTimeout(d time.Duration) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.deadline = d
	return nil
}

func nonZero(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}

func portOrDefault(port int, fallback int) string {
	if port <= 0 {
		port = fallback
	}
	return fmt.Sprintf("%d", port)
}

func isAuthErr(err error) bool {
	if err == nil {
		return false
	}
	if _, ok := err.(*ssh.ExitError); ok {
		return false
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "unable to authenticate") || strings.Contains(s, "handshake failed")
}
