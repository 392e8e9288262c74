package watcher

import (
	"log/slog"
	"sync/atomic"

	"github.com/markb/logwatch/internal/log"
)

// SinkName is the appender name the capture sink registers under.
const SinkName = "WatcherSink"

// Sink is the appender that feeds captured events into a History. The
// threshold filter is swapped atomically; the backend holds whichever
// filter was current at its last refresh.
type Sink struct {
	history   *History
	filter    atomic.Pointer[log.ThresholdFilter]
	onCapture func(e *log.Event, evicted bool)
}

func newSink(history *History, threshold slog.Level, onCapture func(*log.Event, bool)) *Sink {
	s := &Sink{history: history, onCapture: onCapture}
	s.filter.Store(log.NewThresholdFilter(threshold))
	return s
}

// Name implements log.Appender.
func (s *Sink) Name() string {
	return SinkName
}

// Append stores e in the history.
func (s *Sink) Append(e *log.Event) error {
	evicted := s.history.Add(e)
	if s.onCapture != nil {
		s.onCapture(e, evicted)
	}
	return nil
}

// Filter returns the current threshold filter.
func (s *Sink) Filter() *log.ThresholdFilter {
	return s.filter.Load()
}

// Threshold returns the current minimum captured level.
func (s *Sink) Threshold() slog.Level {
	return s.filter.Load().Level()
}

// History returns the ring the sink writes to.
func (s *Sink) History() *History {
	return s.history
}

// swapThreshold installs a new filter and returns the previous level.
func (s *Sink) swapThreshold(level slog.Level) slog.Level {
	return s.filter.Swap(log.NewThresholdFilter(level)).Level()
}
