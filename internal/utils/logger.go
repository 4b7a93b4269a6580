package utils

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const logTimeLayout = "2006-01-02 15:04:05"

// Logger writes timestamped lines to a log file, or to a fallback writer when
// the file cannot be opened.
type Logger struct {
	mu        sync.Mutex
	writeFile *os.File
	fallback  io.Writer
}

// NewLogger opens the given log file for appending. An empty path selects
// the default log file under the panel state directory. If the file cannot
// be opened, lines go to stdout.
func NewLogger(logFile string) *Logger {
	logger := &Logger{fallback: os.Stdout}
	if logFile == "" {
		logFile = DefaultPaths().LogFile()
	}

	_ = os.MkdirAll(filepath.Dir(logFile), 0o755)

	f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: Error opening log file (%s): %v\n", time.Now().Format(logTimeLayout), logFile, err)
		return logger
	}
	logger.writeFile = f
	return logger
}

// NewWriterLogger logs to w instead of a file. Used by tests and by the
// line-oriented watch mode.
func NewWriterLogger(w io.Writer) *Logger {
	return &Logger{fallback: w}
}

// Write appends a timestamped message to the log.
func (l *Logger) Write(message string) {
	if l == nil {
		return
	}
	line := fmt.Sprintf("%s: %s\n", time.Now().Format(logTimeLayout), message)
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.writeFile != nil {
		l.writeFile.WriteString(line)
		l.writeFile.Sync()
		return
	}
	if l.fallback != nil {
		io.WriteString(l.fallback, line)
	}
}

// Writef formats and writes a message.
func (l *Logger) Writef(format string, args ...any) {
	if l == nil {
		return
	}
	l.Write(fmt.Sprintf(format, args...))
}

// Close closes the underlying file handle.
func (l *Logger) Close() {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.writeFile != nil {
		l.writeFile.Close()
		l.writeFile = nil
	}
}

// File returns the underlying write file handle when available.
func (l *Logger) File() *os.File {
	if l == nil {
		return nil
	}
	return l.writeFile
}
