package log

import (
	"log/slog"
	"sync"
	"time"
)

// ChannelLog adapts a slog.Logger into the io.Writer a Channel writes its
// raw transport reads to. A device can dribble output across dozens of
// small reads; logging each one as its own record would bury everything
// else the session logs. ChannelLog instead coalesces adjacent writes into
// a single "channel read" record, flushed after a short quiet period.
type ChannelLog struct {
	mu    sync.Mutex
	buf   []byte
	log   *slog.Logger
	host  string
	quiet time.Duration
	timer *time.Timer
}

// NewChannelLog returns a ChannelLog flushing out after quiet elapses
// since the last Write. A quiet of 0 defaults to 200ms.
func NewChannelLog(out *slog.Logger, host string, quiet time.Duration) *ChannelLog {
	if quiet <= 0 {
		quiet = 200 * time.Millisecond
	}
	return &ChannelLog{log: out, host: host, quiet: quiet}
}

// Write implements io.Writer. It never fails; logging is best-effort and
// must not interfere with the channel's own read loop.
func (c *ChannelLog) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.buf = append(c.buf, p...)
	if c.timer != nil {
		c.timer.Stop()
	}
	c.timer = time.AfterFunc(c.quiet, c.flush)
	return len(p), nil
}

func (c *ChannelLog) flush() {
	c.mu.Lock()
	out := c.buf
	c.buf = nil
	c.mu.Unlock()

	if len(out) == 0 {
		return
	}
	c.log.Debug("channel read", slog.String("host", c.host), slog.String("data", string(out)))
}

// Close flushes any buffered bytes immediately and stops the coalescing
// timer. Safe to call more than once.
func (c *ChannelLog) Close() error {
	c.mu.Lock()
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.mu.Unlock()
	c.flush()
	return nil
}
