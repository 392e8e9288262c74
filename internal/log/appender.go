package log

import "log/slog"

// Appender receives every event that passes the level and filter of the
// appender reference it is attached through. Append runs on the goroutine
// that emitted the log call and must not block for long.
type Appender interface {
	Name() string
	Append(e *Event) error
}

// Filter decides whether an attached appender sees an event.
type Filter interface {
	Accept(e *Event) bool
}

// ThresholdFilter accepts events at or above a fixed level.
type ThresholdFilter struct {
	level slog.Level
}

// NewThresholdFilter creates a filter accepting events at or above level.
func NewThresholdFilter(level slog.Level) *ThresholdFilter {
	return &ThresholdFilter{level: level}
}

// Level returns the filter's minimum level.
func (f *ThresholdFilter) Level() slog.Level {
	return f.level
}

// Accept reports whether e is at or above the threshold.
func (f *ThresholdFilter) Accept(e *Event) bool {
	return e.Level >= f.level
}

// Closeable interface for appenders that need cleanup.
type Closeable interface {
	Close() error
}
