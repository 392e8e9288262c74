// Package log provides configurable, hierarchical logging for logwatch with
// console, file, and database appenders.
package log

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
)

// Config holds all logging configuration.
type Config struct {
	Mode   string // "console", "file", "database"
	Level  string // root level: "trace", "debug", "info", "warn", "error", ...
	Format string // "text", "json" (for console/file only)

	// Per-logger levels applied at startup, keyed by dotted logger name.
	Loggers map[string]string

	// File-specific
	FilePath   string
	MaxSizeMB  int // Rotate when file exceeds this size
	MaxAgeDays int // Delete files older than this
	MaxBackups int // Keep at most this many old files

	// Database-specific
	DBPath        string   // Path to log.db
	RetentionDays int      // Delete entries older than this
	Fields        []string // Optional fields: "request_id", "extra"

	// History capture
	HistorySize      int    // Events kept for the admin history view
	HistoryThreshold string // Minimum level captured into history

	// Output overrides the console destination. Nil means os.Stdout.
	Output io.Writer
}

// DefaultConfig returns the default logging configuration.
func DefaultConfig() *Config {
	return &Config{
		Mode:             "console",
		Level:            "info",
		Format:           "text",
		Loggers:          map[string]string{},
		FilePath:         "logwatch.log",
		MaxSizeMB:        100,
		MaxAgeDays:       7,
		MaxBackups:       3,
		DBPath:           "log.db",
		RetentionDays:    7,
		Fields:           []string{},
		HistorySize:      50,
		HistoryThreshold: "warn",
	}
}

// NewAppender builds the appender selected by cfg.Mode.
func NewAppender(cfg *Config) (Appender, error) {
	switch cfg.Mode {
	case "file":
		return NewFileAppender(cfg)
	case "database":
		return NewDBAppender(cfg)
	case "console", "":
		out := cfg.Output
		if out == nil {
			out = os.Stdout
		}
		return NewConsoleAppender(out, cfg), nil
	default:
		return nil, fmt.Errorf("unknown log mode: %s", cfg.Mode)
	}
}

// NewFromConfig builds a hierarchy with the configured root level, output
// appender and per-logger levels, and makes it live.
func NewFromConfig(cfg *Config) (*Hierarchy, error) {
	rootLevel, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("root level: %w", err)
	}

	h := NewHierarchy(rootLevel)
	for name, lvl := range cfg.Loggers {
		level, err := ParseLevel(lvl)
		if err != nil {
			return nil, fmt.Errorf("level for logger %q: %w", name, err)
		}
		c := h.Root()
		if name != "root" && name != RootName {
			c = h.Configure(name)
		}
		c.SetLevel(level)
	}

	appender, err := NewAppender(cfg)
	if err != nil {
		return nil, err
	}
	h.Root().AddAppender(appender, LevelAll, nil)
	h.UpdateLoggers()
	return h, nil
}

var (
	defaultHierarchy *Hierarchy
	defaultLogger    *slog.Logger
	mu               sync.RWMutex
)

// Init initializes the global hierarchy with the given configuration and
// installs its root logger as the slog default. A previous hierarchy is
// closed.
func Init(cfg *Config) (*Hierarchy, error) {
	h, err := NewFromConfig(cfg)
	if err != nil {
		return nil, err
	}

	mu.Lock()
	prev := defaultHierarchy
	defaultHierarchy = h
	defaultLogger = h.Logger(RootName)
	slog.SetDefault(defaultLogger)
	mu.Unlock()

	if prev != nil {
		prev.Close()
	}
	return h, nil
}

// Default returns the global hierarchy, creating a console one at INFO if
// Init has not been called.
func Default() *Hierarchy {
	mu.RLock()
	h := defaultHierarchy
	mu.RUnlock()
	if h != nil {
		return h
	}

	mu.Lock()
	defer mu.Unlock()
	if defaultHierarchy == nil {
		defaultHierarchy = NewHierarchy(LevelInfo)
		defaultHierarchy.Root().AddAppender(NewConsoleAppender(os.Stderr, &Config{Format: "text"}), LevelAll, nil)
		defaultHierarchy.UpdateLoggers()
		defaultLogger = defaultHierarchy.Logger(RootName)
	}
	return defaultHierarchy
}

// Logger returns the root logger of the global hierarchy.
func Logger() *slog.Logger {
	h := Default()
	mu.RLock()
	defer mu.RUnlock()
	if defaultLogger == nil {
		return h.Logger(RootName)
	}
	return defaultLogger
}

// Named returns a logger bound to the dotted name in the global hierarchy.
func Named(name string) *slog.Logger {
	return Default().Logger(name)
}

// Debug logs at debug level.
func Debug(msg string, args ...any) {
	Logger().Debug(msg, args...)
}

// Info logs at info level.
func Info(msg string, args ...any) {
	Logger().Info(msg, args...)
}

// Warn logs at warn level.
func Warn(msg string, args ...any) {
	Logger().Warn(msg, args...)
}

// Error logs at error level.
func Error(msg string, args ...any) {
	Logger().Error(msg, args...)
}

// With returns a logger with the given attributes.
func With(args ...any) *slog.Logger {
	return Logger().With(args...)
}

// Log logs at the given level.
func Log(ctx context.Context, level slog.Level, msg string, args ...any) {
	Logger().Log(ctx, level, msg, args...)
}
