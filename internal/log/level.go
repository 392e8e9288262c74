package log

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
)

// Severity levels understood by the backend, ordered from least to most severe.
// The four slog built-ins keep their values so plain slog callers line up.
const (
	LevelAll   = slog.Level(math.MinInt32)
	LevelTrace = slog.Level(-8)
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError
	LevelFatal = slog.Level(12)
	LevelOff   = slog.Level(math.MaxInt32)
)

// ErrUnknownLevel is returned by ParseLevel for names outside the level set.
var ErrUnknownLevel = errors.New("unknown log level")

var levelNames = []struct {
	level slog.Level
	name  string
}{
	{LevelAll, "ALL"},
	{LevelTrace, "TRACE"},
	{LevelDebug, "DEBUG"},
	{LevelInfo, "INFO"},
	{LevelWarn, "WARN"},
	{LevelError, "ERROR"},
	{LevelFatal, "FATAL"},
	{LevelOff, "OFF"},
}

// Levels returns every level name from least to most severe, ending with OFF.
func Levels() []string {
	names := make([]string, len(levelNames))
	for i, ln := range levelNames {
		names[i] = ln.name
	}
	return names
}

// ParseLevel converts a level name to its slog.Level. Matching is
// case-insensitive and "warning" is accepted as an alias for WARN.
func ParseLevel(level string) (slog.Level, error) {
	name := strings.ToUpper(strings.TrimSpace(level))
	if name == "WARNING" {
		name = "WARN"
	}
	for _, ln := range levelNames {
		if ln.name == name {
			return ln.level, nil
		}
	}
	return LevelInfo, fmt.Errorf("%w: %q", ErrUnknownLevel, level)
}

// LevelName renders a level using the backend's names. Values that fall
// between two named levels use slog's offset notation (e.g. "INFO+2").
func LevelName(level slog.Level) string {
	for _, ln := range levelNames {
		if ln.level == level {
			return ln.name
		}
	}
	switch {
	case level < LevelDebug:
		return fmt.Sprintf("TRACE%+d", int(level-LevelTrace))
	case level > LevelError:
		return fmt.Sprintf("FATAL%+d", int(level-LevelFatal))
	}
	return level.String()
}
