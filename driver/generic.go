// Package driver composes the transport, channel, and privilege packages
// into the caller-facing operations: GenericDriver (open/close,
// SendCommand(s), SendInteractive, SendAndRead, ReadCallback) and
// NetworkDriver (adds privilege awareness on top).
package driver

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/opsgrid/netcli/channel"
	"github.com/opsgrid/netcli/response"
	"github.com/opsgrid/netcli/transport"
)

// Hook is a user callback invoked at a driver lifecycle point. It receives
// the driver so it can issue its own operations (e.g. send a banner-ack
// command on open).
type Hook func(context.Context, *GenericDriver) error

// Option configures a GenericDriver at construction time.
type Option func(*GenericDriver)

// WithOnInit registers a hook run at the start of Open, before the
// transport is dialed.
func WithOnInit(h Hook) Option { return func(d *GenericDriver) { d.onInit = h } }

// WithOnOpen registers a hook run after the channel is up and any in-band
// authentication has succeeded.
func WithOnOpen(h Hook) Option { return func(d *GenericDriver) { d.onOpen = h } }

// WithOnClose registers a hook run before the channel and transport are
// torn down.
func WithOnClose(h Hook) Option { return func(d *GenericDriver) { d.onClose = h } }

// WithChannelLock enables FIFO serialization of concurrent Channel calls on
// this driver.
func WithChannelLock() Option { return func(d *GenericDriver) { d.useLock = true } }

// WithLog attaches a channel-log sink; see internal/log.ChannelLog for the
// coalescing adapter this is meant to be wrapped in.
func WithLog(w io.Writer) Option {
	return func(d *GenericDriver) { d.log = w }
}

// WithLoggingID tags every structured log record this driver emits with a
// caller-chosen correlation id.
func WithLoggingID(id string) Option {
	return func(d *GenericDriver) { d.loggingID = id }
}

// GenericDriver owns exactly one Transport and one Channel for its
// lifetime.
type GenericDriver struct {
	Host string

	tr transport.Transport
	ch *channel.Channel

	auth     AuthConfig
	timeouts TimeoutsConfig
	selector transport.Selector

	onInit  Hook
	onOpen  Hook
	onClose Hook
	useLock bool
	log     io.Writer

	loggingID string
	slogger   *slog.Logger
	// logMu guards slogger. It is separate from mu because Open and Close
	// log while holding mu.
	logMu sync.Mutex

	mu     sync.Mutex
	opened bool
}

// LoggingID returns this driver's correlation id: whatever WithLoggingID
// supplied, or a uuid generated at construction time if none was given.
func (d *GenericDriver) LoggingID() string {
	return d.loggingID
}

// SetSlogLogger sets the structured logger used by this driver's logf/
// logInfo/logWarn/logError helpers. Passing nil silences logging (the
// default).
func (d *GenericDriver) SetSlogLogger(logger *slog.Logger) {
	d.logMu.Lock()
	defer d.logMu.Unlock()
	if logger == nil {
		d.slogger = nil
		return
	}
	attrs := []any{"component", "driver", "host", d.Host}
	if d.loggingID != "" {
		attrs = append(attrs, "logging_id", d.loggingID)
	}
	d.slogger = logger.With(attrs...)
}

func (d *GenericDriver) logger() *slog.Logger {
	d.logMu.Lock()
	defer d.logMu.Unlock()
	return d.slogger
}

// logf logs a debug message if a logger is configured.
func (d *GenericDriver) logf(format string, v ...interface{}) {
	if l := d.logger(); l != nil {
		l.Debug(fmt.Sprintf(format, v...))
	}
}

// logInfo logs an informational message (normal operations).
func (d *GenericDriver) logInfo(format string, v ...interface{}) {
	if l := d.logger(); l != nil {
		l.Info(fmt.Sprintf(format, v...))
	}
}

// logWarn logs a warning message (potential issues, recoverable).
func (d *GenericDriver) logWarn(format string, v ...interface{}) {
	if l := d.logger(); l != nil {
		l.Warn(fmt.Sprintf(format, v...))
	}
}

// logError logs an error message (failures that affect function).
func (d *GenericDriver) logError(format string, v ...interface{}) {
	if l := d.logger(); l != nil {
		l.Error(fmt.Sprintf(format, v...))
	}
}

// NewGeneric constructs a GenericDriver. The transport is not opened until
// Open is called.
func NewGeneric(host string, tr transport.Transport, chCfg channel.Config, auth AuthConfig, timeouts TimeoutsConfig, opts ...Option) *GenericDriver {
	d := &GenericDriver{
		Host:     host,
		tr:       tr,
		auth:     auth,
		timeouts: timeouts,
	}
	d.ch = channel.New(tr, chCfg)
	for _, o := range opts {
		o(d)
	}
	if d.log != nil {
		d.ch.Log = d.log
	}
	if d.loggingID == "" {
		d.loggingID = uuid.New().String()
	}
	return d
}

// Open opens the transport, opens the channel (driving in-channel auth if
// the transport requires it), and invokes the on_open hook. Idempotent.
func (d *GenericDriver) Open(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.opened {
		return nil
	}

	if d.onInit != nil {
		if err := d.onInit(ctx, d); err != nil {
			return err
		}
	}

	d.logInfo("opening transport")
	if err := d.tr.Open(); err != nil {
		d.logError("transport open failed: %v", err)
		return classify(err)
	}

	if !d.auth.BypassInChannelAuth {
		if err := d.authenticateInChannel(ctx); err != nil {
			d.logError("in-channel authentication failed: %v", err)
			_ = d.tr.Close()
			return classify(err)
		}
	}

	d.opened = true
	d.logInfo("driver open")
	if d.onOpen != nil {
		if err := d.onOpen(ctx, d); err != nil {
			d.logError("on_open hook failed: %v", err)
			return err
		}
	}
	return nil
}

// authenticateInChannel dispatches to Channel.AuthenticateTelnet or
// AuthenticateSSH based on the transport selector; SystemSSH and Telnet
// type credentials into the terminal, NativeSSH authenticates at dial time
// and has nothing further to do here.
func (d *GenericDriver) authenticateInChannel(ctx context.Context) error {
	switch d.selector.Resolved() {
	case transport.TelnetSelector:
		return d.ch.AuthenticateTelnet(ctx, d.auth.Username, d.auth.Password)
	case transport.SystemSSHSelector:
		return d.ch.AuthenticateSSH(ctx, d.auth.Password, d.auth.PrivateKeyPassphrase)
	default:
		return nil
	}
}

// SetSelector records which Transport variant is in use, so Open knows
// which in-channel authentication conversation (if any) to drive.
func (d *GenericDriver) SetSelector(s transport.Selector) {
	d.selector = s
}

// Close invokes the on_close hook, then closes the channel and transport.
// Idempotent.
func (d *GenericDriver) Close(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.opened {
		return nil
	}
	if d.onClose != nil {
		if err := d.onClose(ctx, d); err != nil {
			d.logWarn("on_close hook failed: %v", err)
			return err
		}
	}
	d.opened = false
	d.logInfo("driver closed")
	return classify(d.tr.Close())
}

// IsAlive reports whether the underlying transport believes it is still
// connected.
func (d *GenericDriver) IsAlive() bool {
	return d.tr.IsAlive()
}

// opTimeout resolves the effective per-call timeout: override if positive,
// otherwise the driver default.
func (d *GenericDriver) opTimeout(override time.Duration) time.Duration {
	if override > 0 {
		return override
	}
	return d.timeouts.TimeoutOps
}

// withOpTimeout returns a context bounded by the effective operation
// timeout and a cancel func the caller must defer. This is how
// timeout_ops's "always restored on every exit path" guarantee is
// satisfied: the override only ever affects the derived context, never any
// stored driver state.
func (d *GenericDriver) withOpTimeout(ctx context.Context, override time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, d.opTimeout(override))
}

func (d *GenericDriver) lockIfNeeded(ctx context.Context) error {
	if !d.useLock {
		return nil
	}
	return d.ch.Lock(ctx, d.timeouts.TimeoutOps)
}

func (d *GenericDriver) unlockIfNeeded() {
	if d.useLock {
		d.ch.Unlock()
	}
}

// SendCommand sends cmd, waits for the prompt, and returns a finalized
// Response. failed is set if any failedWhenContains substring appears in
// the decoded result.
func (d *GenericDriver) SendCommand(ctx context.Context, cmd string, failedWhenContains []string, timeoutOps time.Duration) (*response.Response, error) {
	if cmd == "" {
		return nil, ErrInvalidArgument
	}
	opCtx, cancel := d.withOpTimeout(ctx, timeoutOps)
	defer cancel()

	if err := d.lockIfNeeded(opCtx); err != nil {
		return nil, classify(err)
	}
	defer d.unlockIfNeeded()

	resp := response.New(d.Host, cmd, time.Now())
	raw, processed, err := d.ch.SendInput(opCtx, cmd, true, false)
	if err != nil {
		d.logError("send_command %q failed: %v", cmd, err)
		_ = d.tr.Close()
		resp.FinishFailed(time.Now(), raw)
		return resp, classify(err)
	}
	resp.Finish(time.Now(), raw, string(processed), failedWhenContains)
	if resp.Failed {
		d.logWarn("send_command %q matched a failed_when_contains marker", cmd)
	} else {
		d.logf("send_command %q completed in %s", cmd, resp.Elapsed())
	}
	return resp, nil
}

// SendCommands sends each of cmds in order. If eager, all but the last are
// sent without waiting for their own prompt. If stopOnFailed, the loop
// aborts and returns the partial MultiResponse as soon as any element is
// Failed.
func (d *GenericDriver) SendCommands(ctx context.Context, cmds []string, failedWhenContains []string, stopOnFailed, eager bool, timeoutOps time.Duration) (response.MultiResponse, error) {
	if len(cmds) == 0 {
		return nil, ErrInvalidArgument
	}
	opCtx, cancel := d.withOpTimeout(ctx, timeoutOps)
	defer cancel()

	if err := d.lockIfNeeded(opCtx); err != nil {
		return nil, classify(err)
	}
	defer d.unlockIfNeeded()

	var out response.MultiResponse
	for i, cmd := range cmds {
		thisEager := eager && i < len(cmds)-1
		resp := response.New(d.Host, cmd, time.Now())
		raw, processed, err := d.ch.SendInput(opCtx, cmd, true, thisEager)
		if err != nil {
			_ = d.tr.Close()
			resp.FinishFailed(time.Now(), raw)
			return append(out, resp), classify(err)
		}
		resp.Finish(time.Now(), raw, string(processed), failedWhenContains)
		out = append(out, resp)
		if stopOnFailed && resp.Failed {
			break
		}
	}
	return out, nil
}

// SendInteractive drives an interactive event sequence and captures the
// whole conversation in a single Response.
func (d *GenericDriver) SendInteractive(ctx context.Context, events []channel.InteractEvent, completionPatterns []*regexp.Regexp, failedWhenContains []string, timeoutOps time.Duration) (*response.Response, error) {
	if len(events) == 0 {
		return nil, ErrInvalidArgument
	}
	opCtx, cancel := d.withOpTimeout(ctx, timeoutOps)
	defer cancel()

	if err := d.lockIfNeeded(opCtx); err != nil {
		return nil, classify(err)
	}
	defer d.unlockIfNeeded()

	label := events[0].Input
	resp := response.New(d.Host, label, time.Now())
	raw, err := d.ch.SendInputsInteract(opCtx, events, completionPatterns)
	if err != nil {
		_ = d.tr.Close()
		resp.FinishFailed(time.Now(), raw)
		return resp, classify(err)
	}
	resp.Finish(time.Now(), raw, string(raw), failedWhenContains)
	return resp, nil
}

// SendAndRead sends text and terminates on the prompt, any of
// expectedOutputs, or readDuration elapsed, whichever comes first.
func (d *GenericDriver) SendAndRead(ctx context.Context, text string, expectedOutputs []*regexp.Regexp, readDuration time.Duration, failedWhenContains []string, timeoutOps time.Duration) (*response.Response, error) {
	if text == "" {
		return nil, ErrInvalidArgument
	}
	opCtx, cancel := d.withOpTimeout(ctx, timeoutOps)
	defer cancel()

	if err := d.lockIfNeeded(opCtx); err != nil {
		return nil, classify(err)
	}
	defer d.unlockIfNeeded()

	resp := response.New(d.Host, text, time.Now())
	raw, processed, err := d.ch.SendInputAndRead(opCtx, text, true, expectedOutputs, readDuration)
	if err != nil {
		_ = d.tr.Close()
		resp.FinishFailed(time.Now(), raw)
		return resp, classify(err)
	}
	resp.Finish(time.Now(), raw, string(processed), failedWhenContains)
	return resp, nil
}

// Callback is one trigger/handler pair for ReadCallback's event-loop mode.
// Exactly one of Trigger and TriggerContains should be set.
type Callback struct {
	// Trigger fires when it matches the accumulated output.
	Trigger *regexp.Regexp

	// TriggerContains fires when it occurs as a substring of the
	// accumulated output.
	TriggerContains string
	// OneShot callbacks are removed from consideration once fired.
	OneShot bool
	// Complete ends the read loop when this callback fires.
	Complete bool
	// ResetOutput clears the accumulated output after this callback fires.
	ResetOutput bool
	// Handler receives the driver and the accumulated output; it may issue
	// its own driver operations.
	Handler func(ctx context.Context, d *GenericDriver, output []byte) error
}

func (cb Callback) triggered(output []byte) bool {
	if cb.Trigger != nil {
		return cb.Trigger.Match(output)
	}
	if cb.TriggerContains != "" {
		return bytes.Contains(output, []byte(cb.TriggerContains))
	}
	return false
}

// ReadCallback continuously reads, firing each Callback whose Trigger
// matches the accumulated output, until a Complete callback fires or
// readTimeout (the driver's TimeoutOps if zero) elapses without any
// callback firing. On that timeout the transport is closed.
func (d *GenericDriver) ReadCallback(ctx context.Context, callbacks []Callback, initialInput string, readTimeout time.Duration) error {
	if len(callbacks) == 0 {
		return ErrInvalidArgument
	}
	opCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	window := d.opTimeout(readTimeout)
	deadline := time.Now().Add(window)

	if err := d.lockIfNeeded(opCtx); err != nil {
		return classify(err)
	}
	defer d.unlockIfNeeded()

	if initialInput != "" {
		if _, _, err := d.ch.SendInput(opCtx, initialInput, false, true); err != nil {
			_ = d.tr.Close()
			return classify(err)
		}
	}

	fired := make(map[int]bool)
	var output []byte
	for {
		select {
		case <-opCtx.Done():
			_ = d.tr.Close()
			return classify(fmt.Errorf("%w: %w", ErrOperationTimeout, opCtx.Err()))
		default:
		}
		if time.Now().After(deadline) {
			_ = d.tr.Close()
			return classify(fmt.Errorf("%w: %w", ErrOperationTimeout, context.DeadlineExceeded))
		}

		chunk, err := d.ch.ReadChunk()
		if err != nil {
			_ = d.tr.Close()
			return classify(err)
		}
		if len(chunk) > 0 {
			output = append(output, chunk...)
		}

		for i, cb := range callbacks {
			if cb.OneShot && fired[i] {
				continue
			}
			if !cb.triggered(output) {
				continue
			}
			fired[i] = true
			deadline = time.Now().Add(window)
			if cb.Handler != nil {
				if err := cb.Handler(opCtx, d, output); err != nil {
					return err
				}
			}
			if cb.ResetOutput {
				output = nil
			}
			if cb.Complete {
				return nil
			}
		}
	}
}
