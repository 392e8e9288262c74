package log

import (
	"context"
	"log/slog"
	"strings"
)

// handler is the slog.Handler behind every named logger. It resolves the
// logger's route from the live snapshot and hands one Event to each
// matching appender.
type handler struct {
	h      *Hierarchy
	name   string
	attrs  []groupedAttr
	groups []string
}

// Enabled reports whether the logger's effective level admits level.
func (l *handler) Enabled(_ context.Context, level slog.Level) bool {
	return l.h.live.Load().route(l.name).enabled(level)
}

// Handle dispatches the record. The first appender error is returned after
// every appender has been offered the event.
func (l *handler) Handle(_ context.Context, r slog.Record) error {
	rt := l.h.live.Load().route(l.name)
	if !rt.enabled(r.Level) {
		return nil
	}

	var e *Event
	var firstErr error
	for _, ref := range rt.refs {
		if r.Level < ref.level {
			continue
		}
		if e == nil {
			e = newEvent(l.name, l.attrs, l.groups, r)
		}
		if ref.filter != nil && !ref.filter.Accept(e) {
			continue
		}
		if err := ref.appender.Append(e); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// WithAttrs returns a new handler with the given attributes.
func (l *handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return l
	}
	prefix := strings.Join(l.groups, ".")
	next := l.clone()
	for _, a := range attrs {
		next.attrs = append(next.attrs, groupedAttr{prefix: prefix, attr: a})
	}
	return next
}

// WithGroup returns a new handler with the given group.
func (l *handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return l
	}
	next := l.clone()
	next.groups = append(next.groups, name)
	return next
}

func (l *handler) clone() *handler {
	return &handler{
		h:      l.h,
		name:   l.name,
		attrs:  append([]groupedAttr(nil), l.attrs...),
		groups: append([]string(nil), l.groups...),
	}
}
