// Package console keeps the capped console log and tracks the console
// stream's connection notices.
package console

import (
	"strings"
	"sync"
)

// MaxLines is the console history kept in memory.
const MaxLines = 500

// LogBuffer is an append-only list of lines capped at max entries; the
// oldest lines are evicted first.
type LogBuffer struct {
	mu    sync.RWMutex
	lines []string
	max   int
}

// NewLogBuffer returns a buffer holding at most max lines (MaxLines when
// max <= 0).
func NewLogBuffer(max int) *LogBuffer {
	if max <= 0 {
		max = MaxLines
	}
	return &LogBuffer{max: max}
}

// Append adds lines and returns how many old lines were evicted.
func (b *LogBuffer) Append(lines ...string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lines = append(b.lines, lines...)
	evicted := len(b.lines) - b.max
	if evicted <= 0 {
		return 0
	}
	kept := make([]string, b.max)
	copy(kept, b.lines[evicted:])
	b.lines = kept
	return evicted
}

// Len returns the number of lines held.
func (b *LogBuffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.lines)
}

// Lines returns a copy of the lines, oldest first.
func (b *LogBuffer) Lines() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]string, len(b.lines))
	copy(out, b.lines)
	return out
}

// String joins the buffer into one renderable blob.
func (b *LogBuffer) String() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return strings.Join(b.lines, "\n")
}
