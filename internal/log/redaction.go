package log

import (
	"context"
	"log/slog"
	"strings"
)

// secretMarkers lists the substrings that mark an attribute key as carrying
// a device credential. Matching is case-insensitive. The set covers what a
// scraping session actually handles: login and enable passwords, SSH
// private keys and their passphrases, SNMP community strings, and the odd
// API token an on_open hook might log.
var secretMarkers = []string{
	"password",
	"passphrase",
	"private_key",
	"secret",
	"token",
	"community",
	"key",
}

func isSecretKey(key string) bool {
	k := strings.ToLower(key)
	for _, m := range secretMarkers {
		if strings.Contains(k, m) {
			return true
		}
	}
	return false
}

const redacted = "<redacted>"

// RedactingHandler wraps another slog.Handler and blanks any attribute
// whose key names a credential, so a hook that logs its AuthConfig by
// mistake never lands plaintext secrets in a session log.
type RedactingHandler struct {
	inner slog.Handler
}

// NewRedactingHandler wraps inner.
func NewRedactingHandler(inner slog.Handler) *RedactingHandler {
	return &RedactingHandler{inner: inner}
}

// Enabled implements slog.Handler.
func (h *RedactingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

// Handle implements slog.Handler, scrubbing record attributes before they
// reach the wrapped handler.
func (h *RedactingHandler) Handle(ctx context.Context, r slog.Record) error {
	scrubbed := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)
	r.Attrs(func(a slog.Attr) bool {
		scrubbed.AddAttrs(scrub(a))
		return true
	})
	return h.inner.Handle(ctx, scrubbed)
}

// WithAttrs implements slog.Handler. Pre-bound attributes are scrubbed
// here, once, rather than on every record.
func (h *RedactingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		out[i] = scrub(a)
	}
	return &RedactingHandler{inner: h.inner.WithAttrs(out)}
}

// WithGroup implements slog.Handler.
func (h *RedactingHandler) WithGroup(name string) slog.Handler {
	return &RedactingHandler{inner: h.inner.WithGroup(name)}
}

// scrub blanks secret-keyed attributes, descending into groups.
func scrub(a slog.Attr) slog.Attr {
	if a.Value.Kind() == slog.KindGroup {
		members := a.Value.Group()
		out := make([]any, len(members))
		for i, m := range members {
			out[i] = scrub(m)
		}
		return slog.Group(a.Key, out...)
	}
	if isSecretKey(a.Key) {
		return slog.String(a.Key, redacted)
	}
	return a
}
