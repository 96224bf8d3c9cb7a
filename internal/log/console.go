package log

import (
	"io"
	"log/slog"
	"time"

	"github.com/lmittmann/tint"
)

// NewConsoleLogger builds the default logger: a tint handler for readable
// colorized output, wrapped in RedactingHandler so credentials never reach
// w even if a caller logs a raw attribute by mistake.
func NewConsoleLogger(w io.Writer, level slog.Level) *slog.Logger {
	handler := tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: time.TimeOnly,
	})
	return slog.New(NewRedactingHandler(handler))
}
