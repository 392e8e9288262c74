package watcher

import (
	"fmt"
	"time"

	"github.com/markb/logwatch/internal/log"
)

// Document is the flat field mapping of one captured event as served to the
// admin UI and to indexers.
type Document map[string]any

// Project maps e to a Document. Fixed fields are time, level, logger and
// message; trace is present only when the event carries an error. Context
// entries are copied verbatim after the fixed fields and win on a key
// collision. core is always present, "" unless the context sets it.
func Project(e *log.Event) Document {
	logger := e.Logger
	if logger == log.RootName {
		logger = RootName
	}

	doc := Document{
		"time":    time.UnixMilli(e.Millis()).UTC(),
		"level":   log.LevelName(e.Level),
		"logger":  logger,
		"message": e.Message,
	}
	if e.Err != nil {
		doc["trace"] = fmt.Sprintf("%+v", e.Err)
	}
	for k, v := range e.Context {
		doc[k] = v
	}
	if _, ok := doc["core"]; !ok {
		doc["core"] = ""
	}
	return doc
}
