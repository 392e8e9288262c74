package log

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// FileAppenderName is the name the file appender registers under.
const FileAppenderName = "file"

// FileAppender writes events to a file with rotation support.
type FileAppender struct {
	mu         sync.Mutex
	file       *os.File
	path       string
	maxSize    int64 // bytes
	maxAge     int   // days
	maxBackups int
	size       int64
	format     string
	inner      slog.Handler
}

// NewFileAppender creates a file appender with rotation.
func NewFileAppender(cfg *Config) (*FileAppender, error) {
	// Ensure directory exists
	dir := filepath.Dir(cfg.FilePath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create log directory: %w", err)
		}
	}

	file, err := os.OpenFile(cfg.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("stat log file: %w", err)
	}

	maxSize := int64(cfg.MaxSizeMB) * 1024 * 1024
	if maxSize < 1024 {
		maxSize = 1024 // minimum 1KB for testing
	}

	return &FileAppender{
		file:       file,
		path:       cfg.FilePath,
		maxSize:    maxSize,
		maxAge:     cfg.MaxAgeDays,
		maxBackups: cfg.MaxBackups,
		size:       info.Size(),
		format:     cfg.Format,
		inner:      newFormatHandler(file, cfg.Format),
	}, nil
}

// Name returns the appender name.
func (a *FileAppender) Name() string {
	return FileAppenderName
}

// Append writes the event to the file, rotating if necessary.
func (a *FileAppender) Append(e *Event) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.size >= a.maxSize {
		if err := a.rotate(); err != nil {
			return err
		}
	}

	// Get current file position before write
	pos, _ := a.file.Seek(0, io.SeekCurrent)

	err := a.inner.Handle(recordContext, e.Record())

	newPos, _ := a.file.Seek(0, io.SeekCurrent)
	a.size += newPos - pos

	return err
}

// rotate closes the current file and creates a new one.
func (a *FileAppender) rotate() error {
	a.file.Close()

	// Rename current file with timestamp
	timestamp := time.Now().Format("2006-01-02T15-04-05.000")
	backupPath := a.path + "." + timestamp
	if err := os.Rename(a.path, backupPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("rename log file: %w", err)
	}

	a.cleanOldBackups()

	file, err := os.OpenFile(a.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("create new log file: %w", err)
	}

	a.file = file
	a.size = 0
	a.inner = newFormatHandler(file, a.format)

	return nil
}

// cleanOldBackups removes backup files exceeding maxBackups or older than maxAge.
func (a *FileAppender) cleanOldBackups() {
	matches, err := filepath.Glob(a.path + ".*")
	if err != nil {
		return
	}

	// Sort by modification time, newest first
	sort.Slice(matches, func(i, j int) bool {
		fi, _ := os.Stat(matches[i])
		fj, _ := os.Stat(matches[j])
		if fi == nil || fj == nil {
			return false
		}
		return fi.ModTime().After(fj.ModTime())
	})

	cutoff := time.Now().AddDate(0, 0, -a.maxAge)

	for i, path := range matches {
		if i >= a.maxBackups {
			os.Remove(path)
			continue
		}

		info, err := os.Stat(path)
		if err == nil && info.ModTime().Before(cutoff) {
			os.Remove(path)
		}
	}
}

// checkRotate checks if rotation is needed and performs it.
func (a *FileAppender) checkRotate() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.size >= a.maxSize {
		a.rotate()
	}
}

// Close closes the file.
func (a *FileAppender) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.file != nil {
		return a.file.Close()
	}
	return nil
}
