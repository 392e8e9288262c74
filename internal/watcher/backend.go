package watcher

import (
	"log/slog"

	"github.com/markb/logwatch/internal/log"
)

// Node is one logger configuration in a backend.
type Node interface {
	// Level returns the explicit level and whether one is set.
	Level() (slog.Level, bool)
	SetLevel(level slog.Level)
}

// LoggerRef is a logger known to a backend.
type LoggerRef struct {
	Name     string
	Level    slog.Level
	LevelSet bool
}

// Backend is the part of a logging backend the watcher drives. Appender
// changes are staged until Refresh.
type Backend interface {
	// Lookup returns the configuration node for a dotted logger name,
	// creating it when the name is in the naming tree.
	Lookup(name string) (Node, bool)
	// Exists reports whether Lookup would succeed, without side effects.
	Exists(name string) bool
	// Root returns the root logger configuration.
	Root() Node
	// Loggers lists every known logger except the root.
	Loggers() []LoggerRef
	// AddAppender attaches a to the root configuration.
	AddAppender(a log.Appender, level slog.Level, filter log.Filter)
	// RemoveAppender detaches the named appender from the root configuration.
	RemoveAppender(name string)
	// Refresh makes staged configuration changes live.
	Refresh()
}

// hierarchyBackend adapts a log.Hierarchy.
type hierarchyBackend struct {
	h *log.Hierarchy
}

// NewBackend returns a Backend over h.
func NewBackend(h *log.Hierarchy) Backend {
	return &hierarchyBackend{h: h}
}

func (b *hierarchyBackend) Lookup(name string) (Node, bool) {
	c := b.h.LoggerConfig(name)
	if c == nil {
		return nil, false
	}
	return c, true
}

func (b *hierarchyBackend) Exists(name string) bool {
	return b.h.HasLogger(name)
}

func (b *hierarchyBackend) Root() Node {
	return b.h.Root()
}

func (b *hierarchyBackend) Loggers() []LoggerRef {
	statuses := b.h.Loggers()
	refs := make([]LoggerRef, len(statuses))
	for i, st := range statuses {
		refs[i] = LoggerRef{Name: st.Name, Level: st.Level, LevelSet: st.LevelSet}
	}
	return refs
}

func (b *hierarchyBackend) AddAppender(a log.Appender, level slog.Level, filter log.Filter) {
	b.h.Root().AddAppender(a, level, filter)
}

func (b *hierarchyBackend) RemoveAppender(name string) {
	b.h.Root().RemoveAppender(name)
}

func (b *hierarchyBackend) Refresh() {
	b.h.UpdateLoggers()
}
