package log

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
)

type collectAppender struct {
	name   string
	mu     sync.Mutex
	events []*Event
	closed int
}

func (a *collectAppender) Name() string { return a.name }

func (a *collectAppender) Append(e *Event) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, e)
	return nil
}

func (a *collectAppender) Close() error {
	a.closed++
	return nil
}

func (a *collectAppender) messages() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, len(a.events))
	for i, e := range a.events {
		out[i] = e.Message
	}
	return out
}

func TestHierarchy_Additivity(t *testing.T) {
	h := NewHierarchy(LevelInfo)
	root := &collectAppender{name: "root"}
	svc := &collectAppender{name: "svc"}
	h.Root().AddAppender(root, LevelAll, nil)
	h.Configure("svc").AddAppender(svc, LevelAll, nil)
	h.UpdateLoggers()

	h.Logger("svc.db").Info("from child")
	h.Logger("other").Info("from sibling")

	if got := root.messages(); len(got) != 2 {
		t.Errorf("root appender got %v, want both events", got)
	}
	if got := svc.messages(); len(got) != 1 || got[0] != "from child" {
		t.Errorf("svc appender got %v, want only the child event", got)
	}
}

func TestHierarchy_RefLevelAndFilter(t *testing.T) {
	h := NewHierarchy(LevelAll)
	warnRef := &collectAppender{name: "warn-ref"}
	filtered := &collectAppender{name: "filtered"}
	h.Root().AddAppender(warnRef, LevelWarn, nil)
	h.Root().AddAppender(filtered, LevelAll, NewThresholdFilter(LevelError))
	h.UpdateLoggers()

	logger := h.Logger("svc")
	logger.Debug("debug")
	logger.Warn("warn")
	logger.Error("error")

	if got := warnRef.messages(); len(got) != 2 {
		t.Errorf("warn-ref got %v, want warn and error", got)
	}
	if got := filtered.messages(); len(got) != 1 || got[0] != "error" {
		t.Errorf("filtered got %v, want only error", got)
	}
}

func TestHierarchy_StagedUntilUpdate(t *testing.T) {
	h := NewHierarchy(LevelInfo)
	a := &collectAppender{name: "a"}
	h.Root().AddAppender(a, LevelAll, nil)
	h.UpdateLoggers()

	logger := h.Logger("svc")
	h.Configure("svc").SetLevel(LevelError)
	logger.Info("before update")
	h.UpdateLoggers()
	logger.Info("after update")

	if got := a.messages(); len(got) != 1 || got[0] != "before update" {
		t.Errorf("got %v, want only the event logged before UpdateLoggers", got)
	}
	if logger.Enabled(context.Background(), LevelInfo) {
		t.Error("INFO should be disabled after raising svc to ERROR")
	}
}

func TestHierarchy_ClearLevelInherits(t *testing.T) {
	h := NewHierarchy(LevelWarn)
	c := h.Configure("svc")
	c.SetLevel(LevelDebug)
	h.UpdateLoggers()
	if got := h.EffectiveLevel("svc.db"); got != LevelDebug {
		t.Fatalf("effective = %s, want DEBUG", LevelName(got))
	}

	c.ClearLevel()
	h.Root().ClearLevel()
	h.UpdateLoggers()
	if got := h.EffectiveLevel("svc.db"); got != LevelWarn {
		t.Errorf("effective = %s, want WARN from root", LevelName(got))
	}
	if _, set := h.Root().Level(); !set {
		t.Error("root level must stay set")
	}
}

func TestHierarchy_NoAppendersDisabled(t *testing.T) {
	h := NewHierarchy(LevelAll)
	if h.Logger("svc").Enabled(context.Background(), LevelFatal) {
		t.Error("logger without appenders should be disabled")
	}
}

func TestHierarchy_LoggerConfigLookup(t *testing.T) {
	h := NewHierarchy(LevelInfo)
	h.Logger("svc.db.pool")

	if h.LoggerConfig("unknown") != nil {
		t.Error("unknown name should not resolve")
	}
	if h.LoggerConfig("svc.d") != nil {
		t.Error("partial segment should not resolve")
	}
	for _, name := range []string{"svc", "svc.db", "svc.db.pool"} {
		c := h.LoggerConfig(name)
		if c == nil {
			t.Fatalf("LoggerConfig(%q) = nil", name)
		}
		if c.Name() != name {
			t.Errorf("Name() = %q, want %q", c.Name(), name)
		}
	}
	if h.LoggerConfig("svc") != h.LoggerConfig("svc") {
		t.Error("lookup should return the same node")
	}
	if h.LoggerConfig(RootName) != h.Root() {
		t.Error("root lookup should return the root node")
	}
}

func TestHierarchy_HasLoggerDoesNotCreate(t *testing.T) {
	h := NewHierarchy(LevelInfo)
	h.Logger("svc.db.pool")

	for _, name := range []string{RootName, "svc", "svc.db", "svc.db.pool"} {
		if !h.HasLogger(name) {
			t.Errorf("HasLogger(%q) = false, want true", name)
		}
	}
	if h.HasLogger("unknown") || h.HasLogger("svc.d") {
		t.Error("names outside the tree should not exist")
	}

	got := h.Loggers()
	if len(got) != 1 || got[0].Name != "svc.db.pool" {
		t.Errorf("Loggers() = %v, want only svc.db.pool", got)
	}
}

func TestHierarchy_Loggers(t *testing.T) {
	h := NewHierarchy(LevelInfo)
	h.Logger("b")
	h.Logger("a.x")
	h.Logger(RootName)
	h.Configure("b").SetLevel(LevelError)

	got := h.Loggers()
	if len(got) != 2 {
		t.Fatalf("Loggers() = %v, want 2 entries", got)
	}
	if got[0].Name != "a.x" || got[0].LevelSet {
		t.Errorf("first = %+v, want unset a.x", got[0])
	}
	if got[1].Name != "b" || !got[1].LevelSet || got[1].Level != LevelError {
		t.Errorf("second = %+v, want b at ERROR", got[1])
	}
}

func TestHierarchy_EventAttrs(t *testing.T) {
	h := NewHierarchy(LevelInfo)
	a := &collectAppender{name: "a"}
	h.Root().AddAppender(a, LevelAll, nil)
	h.UpdateLoggers()

	boom := errors.New("boom")
	h.Logger("svc").With("core", "c1").WithGroup("req").Info("msg", "id", 7, "error", boom, slog.Group("user", "name", "ann"))

	if len(a.events) != 1 {
		t.Fatalf("got %d events, want 1", len(a.events))
	}
	e := a.events[0]
	if e.Logger != "svc" {
		t.Errorf("Logger = %q", e.Logger)
	}
	if !errors.Is(e.Err, boom) {
		t.Errorf("Err = %v, want boom", e.Err)
	}
	want := map[string]string{"core": "c1", "req.id": "7", "req.user.name": "ann"}
	for k, v := range want {
		if e.Context[k] != v {
			t.Errorf("Context[%q] = %q, want %q", k, e.Context[k], v)
		}
	}
	if _, ok := e.Context["req.error"]; ok {
		t.Error("error attribute should not be copied into context")
	}
}

func TestHierarchy_Close(t *testing.T) {
	h := NewHierarchy(LevelInfo)
	a := &collectAppender{name: "a"}
	h.Root().AddAppender(a, LevelAll, nil)
	h.Configure("svc").AddAppender(a, LevelAll, nil)

	if err := h.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if a.closed != 1 {
		t.Errorf("closed %d times, want 1", a.closed)
	}
}

func TestHierarchy_ConcurrentUpdates(t *testing.T) {
	h := NewHierarchy(LevelInfo)
	a := &collectAppender{name: "a"}
	h.Root().AddAppender(a, LevelAll, nil)
	h.UpdateLoggers()

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			logger := h.Logger("svc")
			for j := 0; j < 200; j++ {
				logger.Warn("tick")
			}
		}()
	}
	for j := 0; j < 50; j++ {
		b := &collectAppender{name: "b"}
		h.Root().AddAppender(b, LevelAll, nil)
		h.UpdateLoggers()
		h.Root().RemoveAppender("b")
		h.UpdateLoggers()
	}
	wg.Wait()

	if got := len(a.messages()); got != 800 {
		t.Errorf("appender a got %d events, want 800", got)
	}
}
