package log

import (
	"context"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"time"
)

// Event is one log call as seen by appenders. It is built once per record
// during dispatch and never modified afterwards, so appenders may retain it.
type Event struct {
	Time    time.Time
	Level   slog.Level
	Logger  string // dotted logger name, "" for the root logger
	Message string
	Err     error             // first error-valued attribute, if any
	Context map[string]string // remaining attributes, groups joined with "."
}

// Millis returns the event timestamp in milliseconds since the epoch.
func (e *Event) Millis() int64 {
	return e.Time.UnixMilli()
}

// newEvent flattens a record plus the handler's accumulated attributes.
func newEvent(logger string, attrs []groupedAttr, groups []string, r slog.Record) *Event {
	e := &Event{
		Time:    r.Time,
		Level:   r.Level,
		Logger:  logger,
		Message: r.Message,
	}
	if e.Time.IsZero() {
		e.Time = time.Now()
	}

	for _, ga := range attrs {
		e.addAttr(ga.prefix, ga.attr)
	}
	prefix := strings.Join(groups, ".")
	r.Attrs(func(a slog.Attr) bool {
		e.addAttr(prefix, a)
		return true
	})
	return e
}

func (e *Event) addAttr(prefix string, a slog.Attr) {
	v := a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}

	key := a.Key
	if prefix != "" && key != "" {
		key = prefix + "." + key
	} else if key == "" {
		key = prefix
	}

	if v.Kind() == slog.KindGroup {
		for _, ga := range v.Group() {
			e.addAttr(key, ga)
		}
		return
	}
	if key == "" {
		return
	}

	if err, ok := v.Any().(error); ok && v.Kind() == slog.KindAny && e.Err == nil {
		e.Err = err
		return
	}

	if e.Context == nil {
		e.Context = make(map[string]string)
	}
	e.Context[key] = v.String()
}

// Record rebuilds a slog.Record for appenders that format through a slog
// handler. The logger name and error travel as regular attributes.
func (e *Event) Record() slog.Record {
	r := slog.NewRecord(e.Time, e.Level, e.Message, 0)
	if e.Logger != "" {
		r.AddAttrs(slog.String("logger", e.Logger))
	}
	for _, k := range slices.Sorted(maps.Keys(e.Context)) {
		r.AddAttrs(slog.String(k, e.Context[k]))
	}
	if e.Err != nil {
		r.AddAttrs(slog.String("error", e.Err.Error()))
	}
	return r
}

// groupedAttr is an attribute added through WithAttrs together with the
// group path that was open at the time.
type groupedAttr struct {
	prefix string
	attr   slog.Attr
}

// recordContext is the context handed to slog handlers used by appenders.
var recordContext = context.Background()
