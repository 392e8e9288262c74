package log

import (
	"errors"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
)

// RootName is the configuration name of the root logger.
const RootName = ""

// appenderRef attaches an appender to a logger configuration.
type appenderRef struct {
	appender Appender
	level    slog.Level
	filter   Filter
}

// LoggerConfig is one node of the logger configuration tree. Changes are
// staged until Hierarchy.UpdateLoggers publishes them.
type LoggerConfig struct {
	name string
	h    *Hierarchy

	// guarded by h.mu
	level    slog.Level
	levelSet bool
	refs     map[string]appenderRef
}

// Name returns the dotted name of the node, RootName for the root.
func (c *LoggerConfig) Name() string {
	return c.name
}

// Level returns the explicit level of the node and whether one is set.
func (c *LoggerConfig) Level() (slog.Level, bool) {
	c.h.mu.RLock()
	defer c.h.mu.RUnlock()
	return c.level, c.levelSet
}

// SetLevel sets an explicit level on the node.
func (c *LoggerConfig) SetLevel(level slog.Level) {
	c.h.mu.Lock()
	defer c.h.mu.Unlock()
	c.level = level
	c.levelSet = true
}

// ClearLevel removes the explicit level so the node inherits from its
// ancestors. The root always keeps its level.
func (c *LoggerConfig) ClearLevel() {
	if c.name == RootName {
		return
	}
	c.h.mu.Lock()
	defer c.h.mu.Unlock()
	c.levelSet = false
}

// AddAppender attaches a to the node. An appender with the same name is
// replaced.
func (c *LoggerConfig) AddAppender(a Appender, level slog.Level, filter Filter) {
	c.h.mu.Lock()
	defer c.h.mu.Unlock()
	c.refs[a.Name()] = appenderRef{appender: a, level: level, filter: filter}
}

// RemoveAppender detaches the named appender from the node.
func (c *LoggerConfig) RemoveAppender(name string) {
	c.h.mu.Lock()
	defer c.h.mu.Unlock()
	delete(c.refs, name)
}

// Appenders returns the names of the appenders attached to the node.
func (c *LoggerConfig) Appenders() []string {
	c.h.mu.RLock()
	defer c.h.mu.RUnlock()
	names := make([]string, 0, len(c.refs))
	for name := range c.refs {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// LoggerStatus describes a logger known to the hierarchy.
type LoggerStatus struct {
	Name     string
	Level    slog.Level
	LevelSet bool
}

// Hierarchy is the logger configuration tree. Loggers are addressed by
// dotted names; an event is offered to the appenders of its logger's
// nearest configuration and every ancestor up to the root.
type Hierarchy struct {
	mu      sync.RWMutex
	configs map[string]*LoggerConfig
	known   map[string]struct{}

	live atomic.Pointer[snapshot]
}

// NewHierarchy creates a hierarchy whose root logs at rootLevel and has no
// appenders.
func NewHierarchy(rootLevel slog.Level) *Hierarchy {
	h := &Hierarchy{
		configs: make(map[string]*LoggerConfig),
		known:   make(map[string]struct{}),
	}
	root := h.newConfig(RootName)
	root.level = rootLevel
	root.levelSet = true
	h.configs[RootName] = root
	h.UpdateLoggers()
	return h
}

func (h *Hierarchy) newConfig(name string) *LoggerConfig {
	return &LoggerConfig{name: name, h: h, refs: make(map[string]appenderRef)}
}

// Root returns the root logger configuration.
func (h *Hierarchy) Root() *LoggerConfig {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.configs[RootName]
}

// Configure returns the configuration node for name, creating it if needed.
func (h *Hierarchy) Configure(name string) *LoggerConfig {
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.configs[name]
	if !ok {
		c = h.newConfig(name)
		h.configs[name] = c
	}
	return c
}

// LoggerConfig returns the configuration node for name if the name belongs
// to the naming tree: a configured node, a known logger or an ancestor of
// one. Nodes for known names are created on first lookup. Names outside the
// tree return nil.
func (h *Hierarchy) LoggerConfig(name string) *LoggerConfig {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c, ok := h.configs[name]; ok {
		return c
	}
	if !h.inTree(name) {
		return nil
	}
	c := h.newConfig(name)
	h.configs[name] = c
	return c
}

// HasLogger reports whether name belongs to the naming tree without
// creating a node for it. The root name always does.
func (h *Hierarchy) HasLogger(name string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.configs[name]; ok {
		return true
	}
	return h.inTree(name)
}

func (h *Hierarchy) inTree(name string) bool {
	prefix := name + "."
	for k := range h.known {
		if k == name || strings.HasPrefix(k, prefix) {
			return true
		}
	}
	return false
}

// Logger returns a slog.Logger bound to the dotted name and records the
// name as known.
func (h *Hierarchy) Logger(name string) *slog.Logger {
	if name != RootName {
		h.mu.Lock()
		h.known[name] = struct{}{}
		h.mu.Unlock()
	}
	return slog.New(&handler{h: h, name: name})
}

// Loggers lists every known logger and every configured node except the
// root, sorted by name. Level is the explicit level of the logger's own
// node when LevelSet is true.
func (h *Hierarchy) Loggers() []LoggerStatus {
	h.mu.RLock()
	defer h.mu.RUnlock()
	names := make(map[string]struct{}, len(h.known)+len(h.configs))
	for name := range h.known {
		names[name] = struct{}{}
	}
	for name := range h.configs {
		if name != RootName {
			names[name] = struct{}{}
		}
	}

	out := make([]LoggerStatus, 0, len(names))
	for name := range names {
		st := LoggerStatus{Name: name}
		if c, ok := h.configs[name]; ok && c.levelSet {
			st.Level = c.level
			st.LevelSet = true
		}
		out = append(out, st)
	}
	slices.SortFunc(out, func(a, b LoggerStatus) int {
		return strings.Compare(a.Name, b.Name)
	})
	return out
}

// EffectiveLevel returns the live level applied to records from name.
func (h *Hierarchy) EffectiveLevel(name string) slog.Level {
	return h.live.Load().route(name).level
}

// UpdateLoggers makes all staged configuration changes live. The new state
// is published in one step, so dispatch sees either the old or the new
// configuration, never a mix.
func (h *Hierarchy) UpdateLoggers() {
	h.mu.Lock()
	defer h.mu.Unlock()
	s := &snapshot{nodes: make(map[string]nodeState, len(h.configs))}
	for name, c := range h.configs {
		st := nodeState{level: c.level, levelSet: c.levelSet}
		for _, ref := range c.refs {
			st.refs = append(st.refs, ref)
		}
		slices.SortFunc(st.refs, func(a, b appenderRef) int {
			return strings.Compare(a.appender.Name(), b.appender.Name())
		})
		s.nodes[name] = st
	}
	h.live.Store(s)
}

// Close closes every attached appender that holds resources.
func (h *Hierarchy) Close() error {
	h.mu.RLock()
	seen := make(map[Appender]bool)
	var closers []Closeable
	for _, c := range h.configs {
		for _, ref := range c.refs {
			if seen[ref.appender] {
				continue
			}
			seen[ref.appender] = true
			if cl, ok := ref.appender.(Closeable); ok {
				closers = append(closers, cl)
			}
		}
	}
	h.mu.RUnlock()

	var errs []error
	for _, cl := range closers {
		if err := cl.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type nodeState struct {
	level    slog.Level
	levelSet bool
	refs     []appenderRef
}

// snapshot is an immutable copy of the configuration tree. Routes are
// resolved lazily and cached per snapshot.
type snapshot struct {
	nodes  map[string]nodeState
	routes sync.Map // logger name -> *route
}

type route struct {
	level slog.Level
	refs  []appenderRef
}

func (r *route) enabled(level slog.Level) bool {
	return len(r.refs) > 0 && level >= r.level
}

func (s *snapshot) route(name string) *route {
	if r, ok := s.routes.Load(name); ok {
		return r.(*route)
	}
	rt := &route{level: LevelOff}
	levelFound := false
	for n := name; ; n = parentName(n) {
		if st, ok := s.nodes[n]; ok {
			if !levelFound && st.levelSet {
				rt.level = st.level
				levelFound = true
			}
			rt.refs = append(rt.refs, st.refs...)
		}
		if n == RootName {
			break
		}
	}
	actual, _ := s.routes.LoadOrStore(name, rt)
	return actual.(*route)
}

// parentName strips the last dotted segment; top-level names map to the root.
func parentName(name string) string {
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return name[:i]
	}
	return RootName
}
