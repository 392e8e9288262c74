package watcher

import (
	"log/slog"
	"slices"
	"strings"

	"github.com/markb/logwatch/internal/log"
)

// RootName is the name under which the root logger is listed and addressed.
const RootName = "root"

// LoggerInfo describes one node of the logger naming tree. Level is nil
// when the node has no explicit level and inherits from an ancestor.
type LoggerInfo struct {
	Name  string  `json:"name"`
	Level *string `json:"level"`
	Set   bool    `json:"set"`
}

// Ancestors returns the dotted prefixes of name, nearest first. The root is
// not included.
func Ancestors(name string) []string {
	var out []string
	for {
		i := strings.LastIndexByte(name, '.')
		if i < 0 {
			return out
		}
		name = name[:i]
		out = append(out, name)
	}
}

// loggerTree builds the connected naming tree for the known loggers: every
// known logger, a placeholder for each missing ancestor and the root
// entry. The root comes first, the rest sorted by name.
func loggerTree(known []LoggerRef, root Node) []LoggerInfo {
	byName := make(map[string]LoggerInfo, len(known)+1)
	for _, ref := range known {
		if ref.Name == RootName || ref.Name == log.RootName {
			continue
		}
		byName[ref.Name] = newLoggerInfo(ref.Name, ref.Level, ref.LevelSet)
	}
	for _, ref := range known {
		for _, anc := range Ancestors(ref.Name) {
			if _, ok := byName[anc]; !ok {
				byName[anc] = LoggerInfo{Name: anc}
			}
		}
	}

	out := make([]LoggerInfo, 0, len(byName)+1)
	rootLevel, rootSet := root.Level()
	out = append(out, newLoggerInfo(RootName, rootLevel, rootSet))
	names := make([]string, 0, len(byName))
	for name := range byName {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		out = append(out, byName[name])
	}
	return out
}

func newLoggerInfo(name string, level slog.Level, set bool) LoggerInfo {
	info := LoggerInfo{Name: name, Set: set}
	if set {
		s := log.LevelName(level)
		info.Level = &s
	}
	return info
}
