package utils

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoggerWritesTimestampedLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "panel.log")
	logger := NewLogger(path)
	logger.Writef("hello %s", "world")
	logger.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.HasSuffix(strings.TrimSpace(string(data)), ": hello world") {
		t.Fatalf("unexpected log contents %q", data)
	}
}

func TestWriterLoggerAndNil(t *testing.T) {
	var buf bytes.Buffer
	NewWriterLogger(&buf).Write("line")
	if !strings.Contains(buf.String(), ": line") {
		t.Fatalf("expected line in buffer, got %q", buf.String())
	}

	var nilLogger *Logger
	nilLogger.Writef("ignored %d", 1)
	nilLogger.Close()
}

func TestPathsLayout(t *testing.T) {
	p := NewPaths("/tmp/panel")
	if got := p.CredentialsFile(); got != filepath.Join("/tmp/panel", "credentials.json") {
		t.Fatalf("unexpected credentials path %q", got)
	}
	if got := p.LogFile(); got != filepath.Join("/tmp/panel", "logs", "srvpanel.log") {
		t.Fatalf("unexpected log path %q", got)
	}
}
