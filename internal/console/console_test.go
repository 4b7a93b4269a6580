package console

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestLogBufferCapsAt500(t *testing.T) {
	b := NewLogBuffer(0)
	evicted := 0
	for i := 1; i <= 501; i++ {
		evicted += b.Append(fmt.Sprintf("line %d", i))
	}
	if b.Len() != MaxLines {
		t.Fatalf("expected %d lines, got %d", MaxLines, b.Len())
	}
	if evicted != 1 {
		t.Fatalf("expected one eviction, got %d", evicted)
	}
	lines := b.Lines()
	if lines[0] != "line 2" {
		t.Fatalf("oldest line should be evicted, first is %q", lines[0])
	}
	if lines[len(lines)-1] != "line 501" {
		t.Fatalf("newest line must be kept verbatim, got %q", lines[len(lines)-1])
	}
}

func TestLogBufferBulkAppend(t *testing.T) {
	b := NewLogBuffer(3)
	if n := b.Append("a", "b", "c", "d", "e"); n != 2 {
		t.Fatalf("expected 2 evictions, got %d", n)
	}
	if b.String() != "c\nd\ne" {
		t.Fatalf("unexpected blob %q", b.String())
	}
}

func TestConsumerSamplesScrollBeforeAppend(t *testing.T) {
	atBottom := true
	var updates []Update
	buf := NewLogBuffer(10)
	c := NewConsumer(buf, ScrollFunc(func() bool {
		if buf.Len() != 0 && buf.Len() != 1 {
			t.Fatalf("scroll state sampled after append")
		}
		return atBottom
	}), func(u Update) { updates = append(updates, u) })

	if err := c.HandleMessage([]byte("[INFO] Done (3.2s)!\n")); err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	atBottom = false
	if err := c.HandleMessage([]byte("player joined")); err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}

	if len(updates) != 2 {
		t.Fatalf("expected 2 updates, got %d", len(updates))
	}
	if !updates[0].WasAtBottom || updates[1].WasAtBottom {
		t.Fatalf("unexpected scroll samples %+v", updates)
	}
	if updates[1].Text != "[INFO] Done (3.2s)!\nplayer joined" {
		t.Fatalf("unexpected blob %q", updates[1].Text)
	}
}

func TestConsumerSplitsMultiLinePayload(t *testing.T) {
	buf := NewLogBuffer(10)
	c := NewConsumer(buf, nil, nil)
	if err := c.HandleMessage([]byte("one\r\ntwo\n")); err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if strings.Join(buf.Lines(), "|") != "one|two" {
		t.Fatalf("unexpected lines %v", buf.Lines())
	}
}

func TestConsumerKeepsBlankLines(t *testing.T) {
	buf := NewLogBuffer(10)
	var updates []Update
	c := NewConsumer(buf, nil, func(u Update) { updates = append(updates, u) })

	for _, payload := range []string{"", "\n", "tail\n\n"} {
		if err := c.HandleMessage([]byte(payload)); err != nil {
			t.Fatalf("HandleMessage(%q): %v", payload, err)
		}
	}
	if got := strings.Join(buf.Lines(), "|"); got != "||tail|" {
		t.Fatalf("unexpected lines %q", got)
	}
	if len(updates) != 3 {
		t.Fatalf("expected an update per message, got %d", len(updates))
	}
}

func TestSessionFirstOpenRequestsListing(t *testing.T) {
	listed := make(chan struct{}, 2)
	var notices []Notice
	s := NewSession(context.Background(), func(context.Context) (string, error) {
		listed <- struct{}{}
		return "sent /list!", nil
	}, func(n Notice) { notices = append(notices, n) }, nil)

	s.HandleOpen(true)
	select {
	case <-listed:
	case <-time.After(2 * time.Second):
		t.Fatalf("listing was not requested")
	}
	if len(notices) != 1 || notices[0] != NoticeConnected {
		t.Fatalf("unexpected notices %v", notices)
	}
}

func TestSessionReconnectNoticeReverts(t *testing.T) {
	var notices []Notice
	var pending func()
	var delay time.Duration
	listCalls := 0
	s := NewSession(context.Background(), func(context.Context) (string, error) {
		listCalls++
		return "", nil
	}, func(n Notice) { notices = append(notices, n) }, nil)
	s.afterFunc = func(d time.Duration, f func()) func() bool {
		delay = d
		pending = f
		return func() bool { pending = nil; return true }
	}

	s.HandleOpen(false)
	if delay != ReconnectNoticeTTL {
		t.Fatalf("expected revert after %v, got %v", ReconnectNoticeTTL, delay)
	}
	if pending == nil {
		t.Fatalf("expected a scheduled revert")
	}
	pending()
	if len(notices) != 2 || notices[0] != NoticeReconnected || notices[1] != NoticeConnected {
		t.Fatalf("unexpected notices %v", notices)
	}
	if listCalls != 0 {
		t.Fatalf("reconnects must not request a listing")
	}
}

func TestSessionCloseCancelsRevert(t *testing.T) {
	var notices []Notice
	stopped := false
	s := NewSession(context.Background(), nil, func(n Notice) { notices = append(notices, n) }, nil)
	s.afterFunc = func(time.Duration, func()) func() bool {
		return func() bool { stopped = true; return true }
	}

	s.HandleOpen(false)
	s.HandleClosed(nil)
	if !stopped {
		t.Fatalf("pending revert should be cancelled on close")
	}
	if notices[len(notices)-1] != NoticeDisconnected {
		t.Fatalf("expected disconnected notice, got %v", notices)
	}
}
