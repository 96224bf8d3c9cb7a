package driver

import (
	"io"
	"log/slog"

	ilog "github.com/opsgrid/netcli/internal/log"
)

// DefaultLogger builds the default console logger: colorized output with
// credential redaction. Pass the result to SetSlogLogger.
func DefaultLogger(w io.Writer, level slog.Level) *slog.Logger {
	return ilog.NewConsoleLogger(w, level)
}

// channelLogSink pairs the coalescing adapter with the session file
// underneath it so one Close tears down both.
type channelLogSink struct {
	*ilog.ChannelLog
	file *ilog.SessionFile
}

func (s *channelLogSink) Close() error {
	if err := s.ChannelLog.Close(); err != nil {
		return err
	}
	return s.file.Close()
}

// NewChannelLogSink builds the default on-disk channel-log sink for a
// driver: a size-capped session transcript behind a redacting JSON
// handler, fronted by the coalescing adapter so a device dribbling output
// across many reads produces one record per burst. Pass the result to
// WithLog and Close it after the driver is closed.
func NewChannelLogSink(path, host string, capBytes int64, keep int) (io.WriteCloser, error) {
	sf, err := ilog.NewSessionFile(path, capBytes, keep)
	if err != nil {
		return nil, err
	}
	handler := ilog.NewRedactingHandler(slog.NewJSONHandler(sf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return &channelLogSink{
		ChannelLog: ilog.NewChannelLog(slog.New(handler), host, 0),
		file:       sf,
	}, nil
}
