// Package channel implements the prompt-matching, input-echo, and
// in-channel authentication state machine that sits between a raw byte
// Transport and a driver. It is single-threaded from the perspective of a
// single call: all state (the read buffer, the prompt pattern) belongs to one
// Channel value used by one caller at a time, unless the optional lock is
// used to serialize concurrent callers.
package channel

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"regexp"
	"time"

	"github.com/opsgrid/netcli/transport"
)

// pollInterval bounds how long a single Transport.Read blocks before the
// read loop re-checks ctx cancellation. Reads are short-poll, never
// lock-stepped to a message boundary.
const pollInterval = 200 * time.Millisecond

var whitespaceRun = regexp.MustCompile(`\s+`)

// InteractEvent is one step of an interactive exchange driven by
// SendInputsInteract: send Input, then read until Expect matches (or any
// completion pattern ends the whole sequence). Hidden inputs (password
// fields) skip echo verification since the device never echoes them.
type InteractEvent struct {
	Input  string
	Expect *regexp.Regexp
	Hidden bool
}

// Channel drives a Transport through the prompt-aware read/write protocol.
// Not safe for concurrent use unless every caller goes through Lock/Unlock.
type Channel struct {
	t   transport.Transport
	cfg Config

	// Log, if non-nil, receives every raw chunk read from the transport
	// verbatim. internal/log.ChannelLog wraps an io.Writer to coalesce
	// adjacent reads into single records; the Channel itself does no
	// coalescing.
	Log io.Writer

	// EchoWaitAttempts bounds how many read iterations SendInput will wait
	// for an echo to appear before giving up and proceeding anyway (devices
	// that tab-complete or otherwise diverge from the literal input).
	EchoWaitAttempts int

	lock *channelLock
}

// New constructs a Channel over an already-open Transport.
func New(t transport.Transport, cfg Config) *Channel {
	return &Channel{
		t:                t,
		cfg:              cfg,
		EchoWaitAttempts: 50,
		lock:             newChannelLock(),
	}
}

// Lock acquires the channel lock, serializing this call against any other
// goroutine also calling Lock on the same Channel. Callers that don't need
// serialization simply never call Lock/Unlock.
func (c *Channel) Lock(ctx context.Context, timeout time.Duration) error {
	return c.lock.Acquire(ctx, timeout)
}

// Unlock releases a lock acquired by Lock.
func (c *Channel) Unlock() {
	c.lock.Release()
}

// SetPromptPattern replaces the active prompt pattern. The driver calls
// this after the privilege map's combined pattern is recomputed (a
// configuration session was registered or torn down) so subsequent reads
// match against the updated alternation. Callers must not invoke it while
// another Channel operation is in flight.
func (c *Channel) SetPromptPattern(p *regexp.Regexp) {
	c.cfg.PromptPattern = p
}

// read pulls one chunk from the transport, mirroring it to Log if set.
func (c *Channel) read() ([]byte, error) {
	chunk, err := c.t.Read()
	if len(chunk) > 0 && c.Log != nil {
		_, _ = c.Log.Write(chunk)
	}
	return chunk, err
}

// ReadChunk exposes a single raw transport read to callers driving their
// own event loop (driver.ReadCallback). It applies no prompt matching or
// post-processing.
func (c *Channel) ReadChunk() ([]byte, error) {
	if err := c.t.SetTimeout(pollInterval); err != nil {
		return nil, err
	}
	return c.read()
}

// readUntil accumulates bytes from the transport until pattern matches the
// trailing PromptSearchDepth-byte window, ctx is done, or a transport error
// occurs. It returns everything accumulated, including the matched text.
func (c *Channel) readUntil(ctx context.Context, pattern *regexp.Regexp) ([]byte, error) {
	if err := c.t.SetTimeout(pollInterval); err != nil {
		return nil, err
	}
	depth := c.cfg.searchDepth()
	var buf []byte
	for {
		select {
		case <-ctx.Done():
			return buf, fmt.Errorf("%w: %w", ErrPromptTimeout, ctx.Err())
		default:
		}

		chunk, err := c.read()
		if err != nil {
			return buf, err
		}
		if len(chunk) == 0 {
			continue
		}
		buf = append(buf, chunk...)

		window := buf
		if len(window) > depth {
			window = window[len(window)-depth:]
		}
		if pattern.Find(window) != nil {
			return buf, nil
		}
	}
}

// readUntilAny is readUntil generalized to several patterns; it reports
// which index matched.
func (c *Channel) readUntilAny(ctx context.Context, patterns []*regexp.Regexp) ([]byte, int, error) {
	if err := c.t.SetTimeout(pollInterval); err != nil {
		return nil, -1, err
	}
	depth := c.cfg.searchDepth()
	var buf []byte
	for {
		select {
		case <-ctx.Done():
			return buf, -1, fmt.Errorf("%w: %w", ErrPromptTimeout, ctx.Err())
		default:
		}

		chunk, err := c.read()
		if err != nil {
			return buf, -1, err
		}
		if len(chunk) == 0 {
			continue
		}
		buf = append(buf, chunk...)

		window := buf
		if len(window) > depth {
			window = window[len(window)-depth:]
		}
		for i, p := range patterns {
			if p == nil {
				continue
			}
			if p.Find(window) != nil {
				return buf, i, nil
			}
		}
	}
}

// waitForEcho reads until the normalized input text appears in the
// normalized accumulated buffer, or until EchoWaitAttempts reads have
// produced no match (tab-completing devices never echo the literal text).
func (c *Channel) waitForEcho(ctx context.Context, input string) ([]byte, error) {
	if err := c.t.SetTimeout(pollInterval); err != nil {
		return nil, err
	}
	want := normalizeWhitespace(input)
	var buf []byte
	for attempt := 0; attempt < c.EchoWaitAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return buf, fmt.Errorf("%w: %w", ErrPromptTimeout, ctx.Err())
		default:
		}

		chunk, err := c.read()
		if err != nil {
			return buf, err
		}
		if len(chunk) > 0 {
			buf = append(buf, chunk...)
			if bytes.Contains([]byte(normalizeWhitespace(string(buf))), []byte(want)) {
				return buf, nil
			}
		}
	}
	return buf, nil
}

// normalizeWhitespace collapses runs of whitespace to a single space and
// trims the ends, so device-side wrapping or padding doesn't break echo
// comparison.
func normalizeWhitespace(s string) string {
	return string(bytes.TrimSpace(whitespaceRun.ReplaceAll([]byte(s), []byte(" "))))
}

// GetPrompt writes the return character and reads until the prompt
// pattern matches, returning the last line of the collected reply verbatim.
func (c *Channel) GetPrompt(ctx context.Context) (string, error) {
	if _, err := c.t.Write([]byte(c.cfg.returnChar())); err != nil {
		return "", err
	}
	buf, err := c.readUntil(ctx, c.cfg.PromptPattern)
	if err != nil {
		return "", err
	}
	return lastLine(buf), nil
}

// SendInput writes text, waits for the device to echo it, sends the return
// character, and (unless eager) waits for the prompt to reappear. It
// returns the raw collected bytes and the post-processed result.
func (c *Channel) SendInput(ctx context.Context, text string, stripPrompt, eager bool) (raw, processed []byte, err error) {
	if _, err = c.t.Write([]byte(text)); err != nil {
		return nil, nil, err
	}
	echoed, err := c.waitForEcho(ctx, text)
	if err != nil {
		return echoed, nil, err
	}
	if _, err = c.t.Write([]byte(c.cfg.returnChar())); err != nil {
		return echoed, nil, err
	}

	if eager {
		return echoed, nil, nil
	}

	rest, err := c.readUntil(ctx, c.cfg.PromptPattern)
	if err != nil {
		return append(echoed, rest...), nil, err
	}
	raw = append(echoed, rest...)
	processed = c.postProcess(raw, text, stripPrompt)
	return raw, processed, nil
}

// SendInputAndRead is SendInput with three possible terminations: the
// prompt reappears, one of expectedOutputs matches the trailing window, or
// readDuration elapses.
func (c *Channel) SendInputAndRead(ctx context.Context, text string, stripPrompt bool, expectedOutputs []*regexp.Regexp, readDuration time.Duration) (raw, processed []byte, err error) {
	if _, err = c.t.Write([]byte(text)); err != nil {
		return nil, nil, err
	}
	echoed, err := c.waitForEcho(ctx, text)
	if err != nil {
		return echoed, nil, err
	}
	if _, err = c.t.Write([]byte(c.cfg.returnChar())); err != nil {
		return echoed, nil, err
	}

	deadlineCtx := ctx
	var cancel context.CancelFunc
	if readDuration > 0 {
		deadlineCtx, cancel = context.WithTimeout(ctx, readDuration)
		defer cancel()
	}

	patterns := append([]*regexp.Regexp{c.cfg.PromptPattern}, expectedOutputs...)
	rest, _, rerr := c.readUntilAny(deadlineCtx, patterns)
	raw = append(echoed, rest...)
	if rerr != nil {
		if readDuration > 0 && deadlineCtx.Err() != nil && ctx.Err() == nil {
			// read_duration elapsed on its own terms, not a real timeout failure.
			processed = c.postProcess(raw, text, stripPrompt)
			return raw, processed, nil
		}
		return raw, nil, rerr
	}
	processed = c.postProcess(raw, text, stripPrompt)
	return raw, processed, nil
}

// SendInputsInteract drives an ordered interactive exchange. Hidden events
// skip echo verification. The sequence ends early if any completion
// pattern matches, even mid-event.
func (c *Channel) SendInputsInteract(ctx context.Context, events []InteractEvent, completionPatterns []*regexp.Regexp) ([]byte, error) {
	var raw []byte
	for _, ev := range events {
		if ev.Hidden {
			if _, err := c.t.Write([]byte(ev.Input + c.cfg.returnChar())); err != nil {
				return raw, err
			}
		} else {
			if _, err := c.t.Write([]byte(ev.Input)); err != nil {
				return raw, err
			}
			echoed, err := c.waitForEcho(ctx, ev.Input)
			raw = append(raw, echoed...)
			if err != nil {
				return raw, err
			}
			if _, err := c.t.Write([]byte(c.cfg.returnChar())); err != nil {
				return raw, err
			}
		}

		patterns := append([]*regexp.Regexp{ev.Expect}, completionPatterns...)
		chunk, idx, err := c.readUntilAny(ctx, patterns)
		raw = append(raw, chunk...)
		if err != nil {
			return raw, err
		}
		if idx > 0 {
			// A completion pattern fired before this event's own expected
			// response did; the sequence is done.
			return raw, nil
		}
	}
	return raw, nil
}

// postProcess runs the reply cleanup: ANSI strip, optional
// echo strip, optional trailing-prompt strip. Decoding falls back to
// ISO-8859-1 only when the bytes are not valid UTF-8.
func (c *Channel) postProcess(raw []byte, input string, stripPrompt bool) []byte {
	out := stripANSI(raw)

	normInput := normalizeWhitespace(input)
	if idx := indexNormalized(string(out), normInput); idx >= 0 {
		out = out[idx:]
	}

	if stripPrompt {
		if loc := c.cfg.PromptPattern.FindIndex(out); loc != nil && loc[1] == len(out) {
			out = out[:loc[0]]
		}
	}

	return decodeBestEffort(out)
}

// indexNormalized finds where, in raw, the whitespace-normalized prefix
// stops matching want, and returns the byte offset in raw just past the
// echoed input (so callers can slice it off). Returns -1 if want never
// appears at the start.
func indexNormalized(raw, want string) int {
	if want == "" {
		return -1
	}
	normRaw := normalizeWhitespace(raw)
	if !bytesHasPrefix(normRaw, want) {
		return -1
	}
	// Walk raw, consuming bytes until we've matched len(want) worth of
	// normalized characters. Leading whitespace in raw corresponds to
	// nothing in the trimmed want, so skip it first.
	consumed := 0
	rawIdx := 0
	for rawIdx < len(raw) && isSpaceByte(raw[rawIdx]) {
		rawIdx++
	}
	for rawIdx < len(raw) && consumed < len(want) {
		c := raw[rawIdx]
		if isSpaceByte(c) {
			// Skip the whole run in raw, counted as exactly one space in want.
			for rawIdx < len(raw) && isSpaceByte(raw[rawIdx]) {
				rawIdx++
			}
			consumed++
			continue
		}
		rawIdx++
		consumed++
	}
	return rawIdx
}

func bytesHasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}

func isSpaceByte(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\r', '\v', '\f':
		return true
	default:
		return false
	}
}

// lastLine returns the final non-empty line of buf, trimmed of its line
// terminator.
func lastLine(buf []byte) string {
	lines := bytes.Split(buf, []byte("\n"))
	for i := len(lines) - 1; i >= 0; i-- {
		line := bytes.TrimRight(lines[i], "\r")
		if len(line) > 0 {
			return string(line)
		}
	}
	return ""
}
