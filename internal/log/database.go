package log

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// DBAppenderName is the name the database appender registers under.
const DBAppenderName = "database"

const createLogsTableSQL = `
CREATE TABLE IF NOT EXISTS logs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    timestamp TEXT NOT NULL,
    level TEXT NOT NULL,
    logger TEXT,
    message TEXT NOT NULL,
    request_id TEXT,
    error TEXT,
    extra TEXT
);
CREATE INDEX IF NOT EXISTS idx_logs_timestamp ON logs(timestamp);
CREATE INDEX IF NOT EXISTS idx_logs_level ON logs(level);
CREATE INDEX IF NOT EXISTS idx_logs_logger ON logs(logger);
`

// DBAppender writes events to a SQLite database.
type DBAppender struct {
	mu            sync.Mutex
	db            *sql.DB
	stmt          *sql.Stmt
	retention     int
	fields        map[string]bool
	cleanupTicker *time.Ticker
	done          chan struct{}
}

// NewDBAppender creates a database appender.
func NewDBAppender(cfg *Config) (*DBAppender, error) {
	db, err := sql.Open("sqlite", cfg.DBPath+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open log database: %w", err)
	}

	if _, err := db.Exec(createLogsTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("create logs table: %w", err)
	}

	stmt, err := db.Prepare(`
		INSERT INTO logs (timestamp, level, logger, message, request_id, error, extra)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("prepare insert: %w", err)
	}

	fields := make(map[string]bool)
	for _, f := range cfg.Fields {
		fields[f] = true
	}

	a := &DBAppender{
		db:        db,
		stmt:      stmt,
		retention: cfg.RetentionDays,
		fields:    fields,
		done:      make(chan struct{}),
	}

	a.startCleanup()

	return a, nil
}

// Name returns the appender name.
func (a *DBAppender) Name() string {
	return DBAppenderName
}

// Append writes the event to the database.
func (a *DBAppender) Append(e *Event) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	var logger, requestID, errText, extra sql.NullString

	if e.Logger != "" {
		logger = sql.NullString{String: e.Logger, Valid: true}
	}
	if e.Err != nil {
		errText = sql.NullString{String: e.Err.Error(), Valid: true}
	}

	extraData := make(map[string]string)
	for k, v := range e.Context {
		if k == "request_id" {
			if a.fields["request_id"] {
				requestID = sql.NullString{String: v, Valid: true}
			}
			continue
		}
		if a.fields["extra"] {
			extraData[k] = v
		}
	}

	if len(extraData) > 0 {
		data, _ := json.Marshal(extraData)
		extra = sql.NullString{String: string(data), Valid: true}
	}

	_, err := a.stmt.Exec(
		e.Time.UTC().Format(time.RFC3339Nano),
		LevelName(e.Level),
		logger,
		e.Message,
		requestID,
		errText,
		extra,
	)
	return err
}

// startCleanup starts the background cleanup ticker.
func (a *DBAppender) startCleanup() {
	a.cleanupTicker = time.NewTicker(1 * time.Hour)
	go func() {
		for {
			select {
			case <-a.cleanupTicker.C:
				a.runCleanup()
			case <-a.done:
				return
			}
		}
	}()
}

// runCleanup deletes old log entries.
func (a *DBAppender) runCleanup() {
	a.mu.Lock()
	defer a.mu.Unlock()

	cutoff := time.Now().UTC().AddDate(0, 0, -a.retention)
	a.db.Exec("DELETE FROM logs WHERE timestamp < ?", cutoff.Format(time.RFC3339Nano))
}

// Close stops the cleanup ticker and closes the database.
func (a *DBAppender) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	select {
	case <-a.done:
		return nil
	default:
	}
	close(a.done)
	if a.cleanupTicker != nil {
		a.cleanupTicker.Stop()
	}
	if a.stmt != nil {
		a.stmt.Close()
	}
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}
