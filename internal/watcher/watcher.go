// Package watcher captures recent log events into a bounded history and
// manages logger levels at runtime.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel/metric"

	"github.com/markb/logwatch/internal/log"
	"github.com/markb/logwatch/internal/observability"
)

// LoggerName is the logger the watcher reports its own actions on.
const LoggerName = "watcher"

var (
	// ErrAlreadyRegistered is returned by Register on an instance that
	// already has a listener.
	ErrAlreadyRegistered = errors.New("history already registered")

	// ErrNotRegistered is returned when the threshold or history is used
	// before Register.
	ErrNotRegistered = errors.New("no listener registered, call Register first")
)

// ListenerConfig configures the capture listener.
type ListenerConfig struct {
	// Size is the history capacity. Zero means DefaultHistorySize.
	Size int
	// Threshold is the minimum captured level name. Empty means WARN.
	Threshold string
}

// Watcher captures events from a Backend and exposes its logger levels.
type Watcher struct {
	backend Backend
	logger  *slog.Logger
	metrics *observability.Metrics
	stream  *Broadcaster

	mu   sync.RWMutex // serialises registration and threshold swaps
	sink *Sink
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithLogger sets the logger used for operational messages.
func WithLogger(l *slog.Logger) Option {
	return func(w *Watcher) {
		w.logger = l
	}
}

// WithMetrics records capture counters on m.
func WithMetrics(m *observability.Metrics) Option {
	return func(w *Watcher) {
		w.metrics = m
	}
}

// New creates a Watcher over backend. Nothing is captured until Register.
func New(backend Backend, opts ...Option) *Watcher {
	w := &Watcher{
		backend: backend,
		stream:  NewBroadcaster(),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = log.Named(LoggerName)
	}
	return w
}

// Name identifies the logging backend.
func (w *Watcher) Name() string {
	return "slog"
}

// Stream returns the broadcaster that receives every captured document.
func (w *Watcher) Stream() *Broadcaster {
	return w.stream
}

// Register installs the capture sink on the backend's root logger. It may
// be called once per Watcher.
func (w *Watcher) Register(cfg ListenerConfig) error {
	threshold := log.LevelWarn
	if cfg.Threshold != "" {
		lvl, err := log.ParseLevel(cfg.Threshold)
		if err != nil {
			return fmt.Errorf("register listener: %w", err)
		}
		threshold = lvl
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.sink != nil {
		return ErrAlreadyRegistered
	}

	sink := newSink(NewHistory(cfg.Size), threshold, w.captured)
	w.backend.AddAppender(sink, threshold, sink.Filter())
	w.backend.Refresh()
	w.sink = sink
	return nil
}

// Registered reports whether Register has succeeded.
func (w *Watcher) Registered() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.sink != nil
}

// SetThreshold changes the minimum captured level. The sink is detached
// and re-attached with the new filter before a single refresh, so other
// appenders on the root are unaffected.
func (w *Watcher) SetThreshold(level string) error {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("set threshold: %w", err)
	}

	w.mu.Lock()
	sink := w.sink
	if sink == nil {
		w.mu.Unlock()
		return ErrNotRegistered
	}
	prev := sink.swapThreshold(lvl)
	w.backend.RemoveAppender(sink.Name())
	w.backend.AddAppender(sink, lvl, sink.Filter())
	w.backend.Refresh()
	w.mu.Unlock()

	w.logger.Info(fmt.Sprintf("Updated watcher threshold from %s to %s", log.LevelName(prev), log.LevelName(lvl)))
	return nil
}

// Threshold returns the current minimum captured level name.
func (w *Watcher) Threshold() (string, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.sink == nil {
		return "", ErrNotRegistered
	}
	return log.LevelName(w.sink.Threshold()), nil
}

// SetLogLevel sets the explicit level of a logger. An empty, "unset" or
// "null" level turns the logger OFF rather than clearing its level.
// Unknown loggers and invalid levels are logged and otherwise ignored.
func (w *Watcher) SetLogLevel(category, level string) {
	node, ok := w.lookup(category)
	if !ok {
		w.logger.Warn(fmt.Sprintf("Cannot set level to '%s' for category: %s; no logger config found", level, category))
		return
	}

	var lvl slog.Level
	switch level {
	case "", "unset", "null":
		lvl = log.LevelOff
	default:
		parsed, err := log.ParseLevel(level)
		if err != nil {
			w.logger.Error(fmt.Sprintf("%s is not a valid log level! Valid values are: %v", level, w.AllLevels()))
			return
		}
		lvl = parsed
	}

	node.SetLevel(lvl)
	w.backend.Refresh()
	w.logger.Info(fmt.Sprintf("Set log level to '%s' for category: %s", log.LevelName(lvl), category))
}

// Known reports whether category resolves to a logger configuration. It
// does not create configuration nodes.
func (w *Watcher) Known(category string) bool {
	if category == RootName || category == log.RootName {
		return true
	}
	return w.backend.Exists(category)
}

func (w *Watcher) lookup(category string) (Node, bool) {
	if category == RootName || category == log.RootName {
		return w.backend.Root(), true
	}
	return w.backend.Lookup(category)
}

// AllLevels returns the level names from least to most severe, ending
// with OFF.
func (w *Watcher) AllLevels() []string {
	return log.Levels()
}

// AllLoggers returns a point-in-time view of the logger naming tree.
func (w *Watcher) AllLoggers() []LoggerInfo {
	return loggerTree(w.backend.Loggers(), w.backend.Root())
}

// History returns the captured events at or after since (epoch
// milliseconds) as documents, oldest first, and whether earlier matching
// events may have been evicted.
func (w *Watcher) History(since int64) ([]Document, bool, error) {
	p, err := w.Page(since)
	if err != nil {
		return nil, false, err
	}
	return p.Documents, p.PossiblyIncomplete, nil
}

// Page is one poll of the history.
type Page struct {
	Documents          []Document
	PossiblyIncomplete bool
	// Newest is the time of the newest returned event in epoch
	// milliseconds, or the requested since when nothing matched.
	Newest int64
	// Next is the since to pass on the following poll so events already
	// returned are not repeated.
	Next int64
}

// Page returns the captured events at or after since together with the
// cursor for the next poll. Timestamps come from the events themselves,
// not from the projected documents.
func (w *Watcher) Page(since int64) (Page, error) {
	w.mu.RLock()
	sink := w.sink
	w.mu.RUnlock()
	if sink == nil {
		return Page{}, ErrNotRegistered
	}

	events, incomplete := sink.History().Since(since)
	p := Page{
		Documents:          make([]Document, len(events)),
		PossiblyIncomplete: incomplete,
		Newest:             since,
		Next:               since,
	}
	for i, e := range events {
		p.Documents[i] = Project(e)
		if ms := e.Millis(); ms >= p.Newest {
			p.Newest = ms
			p.Next = ms + 1
		}
	}
	return p, nil
}

// captured runs on the emitting goroutine for every event the sink stores.
// It must not log.
func (w *Watcher) captured(e *log.Event, evicted bool) {
	ctx := context.Background()
	if w.metrics != nil {
		w.metrics.LogEventsCaptured.Add(ctx, 1,
			metric.WithAttributes(observability.AttrLogLevel.String(log.LevelName(e.Level))))
		if evicted {
			w.metrics.LogEventsEvicted.Add(ctx, 1)
		}
	}

	if w.stream.Len() == 0 {
		return
	}
	if dropped := w.stream.Broadcast(Project(e)); dropped > 0 && w.metrics != nil {
		w.metrics.StreamDropped.Add(ctx, int64(dropped))
	}
}
