package log

import (
	"io"
	"log/slog"
	"sync"
)

// ConsoleAppenderName is the name the console appender registers under.
const ConsoleAppenderName = "console"

// ConsoleAppender writes events to a writer through a text or JSON slog handler.
type ConsoleAppender struct {
	mu    sync.Mutex
	inner slog.Handler
}

// NewConsoleAppender creates an appender that writes to the given writer.
// Format can be "text" or "json".
func NewConsoleAppender(w io.Writer, cfg *Config) *ConsoleAppender {
	return &ConsoleAppender{inner: newFormatHandler(w, cfg.Format)}
}

// Name returns the appender name.
func (a *ConsoleAppender) Name() string {
	return ConsoleAppenderName
}

// Append formats the event to the underlying writer.
func (a *ConsoleAppender) Append(e *Event) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.inner.Handle(recordContext, e.Record())
}

// newFormatHandler builds the slog handler used to render events. Level
// filtering already happened in the hierarchy, so the handler admits all.
func newFormatHandler(w io.Writer, format string) slog.Handler {
	opts := &slog.HandlerOptions{
		Level:       LevelAll,
		ReplaceAttr: replaceLevelName,
	}
	if format == "json" {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

func replaceLevelName(groups []string, a slog.Attr) slog.Attr {
	if len(groups) == 0 && a.Key == slog.LevelKey {
		if level, ok := a.Value.Any().(slog.Level); ok {
			return slog.String(slog.LevelKey, LevelName(level))
		}
	}
	return a
}
