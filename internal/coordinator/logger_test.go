package coordinator

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDebugLoggerWritesLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "debug.log")

	logger, err := NewDebugLogger(path)
	if err != nil {
		t.Fatalf("NewDebugLogger: %v", err)
	}
	logger.Log("task %s: %d skills", "t1", 2)
	logger.Log("second line")
	if err := logger.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	out := string(data)

	if !strings.HasPrefix(out, "--- conductor debug session ") {
		t.Errorf("missing session header:\n%s", out)
	}
	if !strings.Contains(out, "task t1: 2 skills") || !strings.Contains(out, "second line") {
		t.Errorf("lines missing:\n%s", out)
	}
	if got := strings.Count(out, "\n"); got != 3 {
		t.Errorf("line count = %d, want 3 (header + 2 entries)", got)
	}
}

func TestDebugLoggerNoOpPaths(t *testing.T) {
	// Nil receiver, empty path, and NopLogger must all be safe.
	var nilLogger *DebugLogger
	nilLogger.Log("ignored")
	if err := nilLogger.Close(); err != nil {
		t.Errorf("nil Close: %v", err)
	}

	empty, err := NewDebugLogger("")
	if err != nil {
		t.Fatalf("NewDebugLogger(\"\"): %v", err)
	}
	empty.Log("ignored")
	if err := empty.Close(); err != nil {
		t.Errorf("empty-path Close: %v", err)
	}

	NopLogger().Log("ignored")
}

func TestDebugLoggerAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "debug.log")

	for i := 0; i < 2; i++ {
		logger, err := NewDebugLogger(path)
		if err != nil {
			t.Fatalf("NewDebugLogger: %v", err)
		}
		logger.Log("session %d", i)
		logger.Close()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), "session 0") || !strings.Contains(string(data), "session 1") {
		t.Errorf("append lost a session:\n%s", data)
	}
}
