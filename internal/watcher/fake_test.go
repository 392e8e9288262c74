package watcher

import (
	"log/slog"
	"sync"
	"time"

	"github.com/markb/logwatch/internal/log"
)

type fakeNode struct {
	level slog.Level
	set   bool
}

func (n *fakeNode) Level() (slog.Level, bool) { return n.level, n.set }

func (n *fakeNode) SetLevel(level slog.Level) {
	n.level = level
	n.set = true
}

type fakeRef struct {
	appender log.Appender
	level    slog.Level
	filter   log.Filter
}

// fakeBackend is an in-memory Backend. Appender changes are staged and
// only reach emit after Refresh.
type fakeBackend struct {
	mu        sync.Mutex
	root      *fakeNode
	nodes     map[string]*fakeNode
	staged    map[string]fakeRef
	live      map[string]fakeRef
	refreshes int
}

func newFakeBackend(loggers ...string) *fakeBackend {
	b := &fakeBackend{
		root:   &fakeNode{},
		nodes:  make(map[string]*fakeNode),
		staged: make(map[string]fakeRef),
		live:   make(map[string]fakeRef),
	}
	for _, name := range loggers {
		b.nodes[name] = &fakeNode{}
	}
	return b
}

func (b *fakeBackend) Lookup(name string) (Node, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	n, ok := b.nodes[name]
	if !ok {
		return nil, false
	}
	return n, true
}

func (b *fakeBackend) Exists(name string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.nodes[name]
	return ok
}

func (b *fakeBackend) Root() Node { return b.root }

func (b *fakeBackend) Loggers() []LoggerRef {
	b.mu.Lock()
	defer b.mu.Unlock()
	var refs []LoggerRef
	for name, n := range b.nodes {
		refs = append(refs, LoggerRef{Name: name, Level: n.level, LevelSet: n.set})
	}
	return refs
}

func (b *fakeBackend) AddAppender(a log.Appender, level slog.Level, filter log.Filter) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.staged[a.Name()] = fakeRef{appender: a, level: level, filter: filter}
}

func (b *fakeBackend) RemoveAppender(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.staged, name)
}

func (b *fakeBackend) Refresh() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.live = make(map[string]fakeRef, len(b.staged))
	for k, v := range b.staged {
		b.live[k] = v
	}
	b.refreshes++
}

func (b *fakeBackend) emit(e *log.Event) {
	b.mu.Lock()
	refs := make([]fakeRef, 0, len(b.live))
	for _, r := range b.live {
		refs = append(refs, r)
	}
	b.mu.Unlock()

	for _, r := range refs {
		if e.Level < r.level {
			continue
		}
		if r.filter != nil && !r.filter.Accept(e) {
			continue
		}
		r.appender.Append(e)
	}
}

func newTestEvent(ms int64, level slog.Level, logger, msg string) *log.Event {
	return &log.Event{
		Time:    time.UnixMilli(ms),
		Level:   level,
		Logger:  logger,
		Message: msg,
	}
}
