package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := map[string]Level{
		"DEBUG":   DEBUG,
		"debug":   DEBUG,
		"warn":    WARN,
		"WARNING": WARN,
		"ERROR":   ERROR,
		"":        INFO,
		"bogus":   INFO,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestLoggerFiltersByLevel(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	l, err := New(Config{Level: WARN, Output: &buf})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	l.Info("hidden")
	l.Warn("shown", F("task", "t1"))

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("Expected INFO line to be filtered, got %q", out)
	}
	if !strings.Contains(out, "WARN") || !strings.Contains(out, "shown | task=t1") {
		t.Errorf("Expected WARN line with field, got %q", out)
	}
	if !strings.Contains(out, "logger_test.go:") {
		t.Errorf("Expected caller to point at the test file, got %q", out)
	}
}

func TestWithFieldsSharesOutputs(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	l, err := New(Config{Level: DEBUG, Output: &buf})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	child := l.WithFields(F("user", "u1"))
	child.Debug("loaded", F("tasks", 3))

	if got := buf.String(); !strings.Contains(got, "user=u1 tasks=3") {
		t.Errorf("Expected preset and call fields in order, got %q", got)
	}
}

func TestLoggerWritesFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "logs", "taskdeck.log")
	l, err := New(Config{Level: INFO, FilePath: path, MaxBackups: 2})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	l.Error("boom", F("err", "timeout"))
	if err := l.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if !strings.Contains(string(data), "ERROR") || !strings.Contains(string(data), "err=timeout") {
		t.Errorf("Unexpected log file contents: %q", data)
	}
}
