package console

import "strings"

// ScrollState reports whether the log view currently shows the newest line.
type ScrollState interface {
	AtBottom() bool
}

// ScrollFunc adapts a function to ScrollState.
type ScrollFunc func() bool

func (f ScrollFunc) AtBottom() bool { return f() }

// Update is published after each append.
type Update struct {
	Appended []string
	Text     string
	// WasAtBottom is the scroll state sampled before the append; the view
	// should follow new output only when it was true.
	WasAtBottom bool
}

// Consumer appends console text to a LogBuffer.
type Consumer struct {
	buf     *LogBuffer
	scroll  ScrollState
	publish func(Update)
}

// NewConsumer builds a consumer. A nil scroll state counts as at bottom.
func NewConsumer(buf *LogBuffer, scroll ScrollState, publish func(Update)) *Consumer {
	return &Consumer{buf: buf, scroll: scroll, publish: publish}
}

// Buffer returns the underlying log.
func (c *Consumer) Buffer() *LogBuffer {
	return c.buf
}

// HandleMessage is a stream.Hooks Message function. Payloads are raw text;
// a payload holding several lines is split.
func (c *Consumer) HandleMessage(data []byte) error {
	lines := splitLines(string(data))
	wasAtBottom := c.scroll == nil || c.scroll.AtBottom()
	c.buf.Append(lines...)
	if c.publish != nil {
		c.publish(Update{Appended: lines, Text: c.buf.String(), WasAtBottom: wasAtBottom})
	}
	return nil
}

// splitLines drops one trailing line break. An empty payload is a blank line.
func splitLines(text string) []string {
	text = strings.TrimSuffix(text, "\n")
	text = strings.TrimSuffix(text, "\r")
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}
