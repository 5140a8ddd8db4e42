package coordinator

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Package-level debug logger, shared so batch and pool internals can trace
// without threading a logger through every call.
var (
	pkgLogger   *DebugLogger
	pkgLoggerMu sync.RWMutex
)

func setPackageLogger(l *DebugLogger) {
	pkgLoggerMu.Lock()
	defer pkgLoggerMu.Unlock()
	pkgLogger = l
}

// debugLog writes a line through the package-level logger, if one is set.
func debugLog(format string, args ...any) {
	pkgLoggerMu.RLock()
	l := pkgLogger
	pkgLoggerMu.RUnlock()
	l.Log(format, args...)
}

// DebugLogger appends timestamped trace lines to a file. Nil loggers and the
// zero value are no-ops, so call sites never guard their logging.
type DebugLogger struct {
	mu     sync.Mutex
	file   *os.File
	w      *bufio.Writer
	opened time.Time
	header bool
}

// NewDebugLogger opens a logger appending to path, creating parent
// directories as needed. An empty path yields a no-op logger.
func NewDebugLogger(path string) (*DebugLogger, error) {
	if path == "" {
		return &DebugLogger{}, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	return &DebugLogger{file: f, w: bufio.NewWriter(f), opened: time.Now()}, nil
}

// NopLogger returns a no-op logger.
func NopLogger() *DebugLogger {
	return &DebugLogger{}
}

// Log appends one timestamped line. The first line of a session is preceded
// by a header recording when the logger was opened.
func (l *DebugLogger) Log(format string, args ...any) {
	if l == nil || l.w == nil {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.header {
		fmt.Fprintf(l.w, "--- conductor debug session %s ---\n", l.opened.Format(time.RFC3339))
		l.header = true
	}
	fmt.Fprintf(l.w, "[%s] ", time.Now().Format("15:04:05.000"))
	fmt.Fprintf(l.w, format, args...)
	l.w.WriteByte('\n')
	l.w.Flush()
}

// Close flushes buffered lines and closes the file. Safe on nil and no-op
// loggers.
func (l *DebugLogger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.w.Flush()
	return l.file.Close()
}
