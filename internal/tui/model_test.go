package tui

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"srvpanel/internal/actions"
	"srvpanel/internal/console"
	"srvpanel/internal/stream"
	"srvpanel/internal/telemetry"

	tea "github.com/charmbracelet/bubbletea"
)

type fakeCommander struct {
	mu    sync.Mutex
	ran   []string
	execs []string
}

func (f *fakeCommander) Run(_ context.Context, cmd actions.Command) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ran = append(f.ran, cmd.Name)
	return "ok", nil
}

func (f *fakeCommander) List(context.Context) (string, error) { return "sent /list!", nil }

func (f *fakeCommander) Exec(_ context.Context, command string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.execs = append(f.execs, command)
	if command == "boom" {
		return "", errors.New("server not on!")
	}
	return "executed command!", nil
}

func newReadyModel(t *testing.T, c Commander) Model {
	t.Helper()
	m := NewModel(context.Background(), c, &atomic.Bool{})
	next, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	return next.(Model)
}

func key(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestCommandKeyRunsCommand(t *testing.T) {
	c := &fakeCommander{}
	m := newReadyModel(t, c)

	_, cmd := m.Update(key("s"))
	if cmd == nil {
		t.Fatalf("expected a command for start")
	}
	cmd()
	if len(c.ran) != 1 || c.ran[0] != "start" {
		t.Fatalf("unexpected commands %v", c.ran)
	}
}

func TestRepeatedKeyBeforeBusyHook(t *testing.T) {
	c := &fakeCommander{}
	m := newReadyModel(t, c)

	next, first := m.Update(key("s"))
	m = next.(Model)
	if first == nil {
		t.Fatalf("expected a command for start")
	}
	if _, cmd := m.Update(key("s")); cmd != nil {
		t.Fatalf("second start must be ignored while the first is pending")
	}

	done := first()
	next, _ = m.Update(done)
	m = next.(Model)
	if m.busy["start"] {
		t.Fatalf("start should be idle once the command returned")
	}
	if _, cmd := m.Update(key("s")); cmd == nil {
		t.Fatalf("start key should work again once idle")
	}
}

func TestBusyCommandIgnoresKey(t *testing.T) {
	c := &fakeCommander{}
	m := newReadyModel(t, c)

	next, _ := m.Update(busyMsg{command: "stop", busy: true})
	m = next.(Model)
	if _, cmd := m.Update(key("x")); cmd != nil {
		t.Fatalf("stop key should be ignored while stop is busy")
	}
	if !strings.Contains(m.View(), m.spinner.View()) {
		t.Fatalf("expected spinner while busy")
	}

	next, _ = m.Update(busyMsg{command: "stop", busy: false})
	m = next.(Model)
	if _, cmd := m.Update(key("x")); cmd == nil {
		t.Fatalf("stop key should work once idle")
	}
}

func TestStatusExpiresAfterTTL(t *testing.T) {
	m := newReadyModel(t, nil)

	next, cmd := m.Update(statusMsg{status: actions.Status{Text: "Server started: ran!", TTL: time.Millisecond}})
	m = next.(Model)
	if cmd == nil {
		t.Fatalf("expected expiry tick")
	}
	if !strings.Contains(m.View(), "Server started: ran!") {
		t.Fatalf("status not rendered")
	}

	expiry := cmd()
	next, _ = m.Update(statusMsg{status: actions.Status{Text: "Server IP: 1.2.3.4"}})
	m = next.(Model)
	next, _ = m.Update(expiry)
	m = next.(Model)
	if m.status.Text != "Server IP: 1.2.3.4" {
		t.Fatalf("stale expiry must not clear a newer status, got %q", m.status.Text)
	}

	next, _ = m.Update(statusExpiredMsg{seq: m.statusSeq})
	m = next.(Model)
	if m.status.Text != "" {
		t.Fatalf("expected status cleared, got %q", m.status.Text)
	}
}

func TestPromptSubmitAndCancel(t *testing.T) {
	m := newReadyModel(t, nil)
	reply := make(chan promptReply, 1)

	next, _ := m.Update(promptRequestMsg{title: "Password to start the server", reply: reply})
	m = next.(Model)
	if !strings.Contains(m.View(), "Password to start the server") {
		t.Fatalf("prompt not rendered")
	}
	if strings.Contains(m.View(), "hunter2") {
		t.Fatalf("secret must not be echoed")
	}

	for _, r := range "hunter2" {
		next, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
		m = next.(Model)
	}
	if strings.Contains(m.View(), "hunter2") {
		t.Fatalf("secret must be masked")
	}
	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(Model)
	got := <-reply
	if !got.ok || got.secret != "hunter2" {
		t.Fatalf("unexpected reply %+v", got)
	}
	if m.promptReply != nil {
		t.Fatalf("prompt should close after submit")
	}

	reply2 := make(chan promptReply, 1)
	next, _ = m.Update(promptRequestMsg{title: "again", reply: reply2})
	m = next.(Model)
	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	m = next.(Model)
	if got := <-reply2; got.ok {
		t.Fatalf("esc must cancel, got %+v", got)
	}
}

func TestPromptKeysDoNotTriggerCommands(t *testing.T) {
	c := &fakeCommander{}
	m := newReadyModel(t, c)
	next, _ := m.Update(promptRequestMsg{title: "pw", reply: make(chan promptReply, 1)})
	m = next.(Model)

	next, _ = m.Update(key("s"))
	m = next.(Model)
	if m.prompt.Value() != "s" {
		t.Fatalf("key should go to the prompt, value %q", m.prompt.Value())
	}
	if len(c.ran) != 0 {
		t.Fatalf("typing in the prompt must not run commands, ran %v", c.ran)
	}
}

func TestExecInput(t *testing.T) {
	c := &fakeCommander{}
	m := newReadyModel(t, c)

	next, _ := m.Update(key(":"))
	m = next.(Model)
	for _, r := range "say hi" {
		next, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
		m = next.(Model)
	}
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(Model)
	if cmd == nil {
		t.Fatalf("expected exec command")
	}
	done := cmd().(commandDoneMsg)
	if len(c.execs) != 1 || c.execs[0] != "say hi" {
		t.Fatalf("unexpected execs %v", c.execs)
	}
	next, _ = m.Update(done)
	m = next.(Model)
	if m.status.Text != "executed command!" || m.status.IsError {
		t.Fatalf("unexpected status %+v", m.status)
	}

	next, _ = m.Update(commandDoneMsg{label: "exec boom", err: errors.New("server not on!")})
	m = next.(Model)
	if !m.status.IsError {
		t.Fatalf("expected error status")
	}
}

func TestConsoleFollowsOnlyWhenAtBottom(t *testing.T) {
	m := newReadyModel(t, nil)
	long := strings.Repeat("line\n", 200)

	next, _ := m.Update(consoleMsg{update: console.Update{Text: long + "last", WasAtBottom: true}})
	m = next.(Model)
	if !m.console.AtBottom() {
		t.Fatalf("expected view to follow output")
	}
	if !m.atBottom.Load() {
		t.Fatalf("shared scroll state should be at bottom")
	}

	m.console.GotoTop()
	next, _ = m.Update(consoleMsg{update: console.Update{Text: long + "last\nmore", WasAtBottom: false}})
	m = next.(Model)
	if m.console.AtBottom() {
		t.Fatalf("view must not jump when the user scrolled up")
	}
	if m.atBottom.Load() {
		t.Fatalf("shared scroll state should report scrolled up")
	}
}

func TestTelemetryAndHealthRender(t *testing.T) {
	m := newReadyModel(t, nil)
	c := telemetry.NewConsumer(func(u telemetry.Update) {
		next, _ := m.Update(telemetryMsg{update: u})
		m = next.(Model)
	})
	if err := c.HandleMessage([]byte(`{"cpu_usages":[90,90],"ram_used":100,"ram_free":300}`)); err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	next, _ := m.Update(healthMsg{stream: "stats", health: stream.Health{Status: stream.HealthStale, State: stream.StateOpen, ElapsedSeconds: 4}})
	m = next.(Model)
	next, _ = m.Update(noticeMsg{notice: console.NoticeReconnected})
	m = next.(Model)

	view := m.View()
	for _, want := range []string{"90.00%", "N/A", "no data for 4s", "Reconnected to console"} {
		if !strings.Contains(view, want) {
			t.Fatalf("view missing %q:\n%s", want, view)
		}
	}
}

func TestBridgePrompt(t *testing.T) {
	b := &Bridge{}
	b.AttachFunc(func(msg tea.Msg) {
		req, ok := msg.(promptRequestMsg)
		if !ok {
			return
		}
		req.reply <- promptReply{secret: "s3cret", ok: true}
	})
	secret, ok, err := b.Prompt(context.Background(), "pw")
	if err != nil || !ok || secret != "s3cret" {
		t.Fatalf("unexpected prompt result %q %v %v", secret, ok, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	quiet := &Bridge{}
	if _, _, err := quiet.Prompt(ctx, "pw"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context error, got %v", err)
	}
}

type refusingDialer struct{}

func (refusingDialer) Dial(context.Context, string) (stream.Conn, error) {
	return nil, errors.New("connection refused")
}

func TestOnlyStatsStreamIsWatched(t *testing.T) {
	var (
		mu      sync.Mutex
		streams = map[string]int{}
	)
	bridge := &Bridge{}
	bridge.AttachFunc(func(msg tea.Msg) {
		if h, ok := msg.(healthMsg); ok {
			mu.Lock()
			streams[h.stream]++
			mu.Unlock()
		}
	})

	statsChannel := stream.NewChannel("stats", "ws://127.0.0.1:1/api/stats", refusingDialer{}, stream.Hooks{})
	consoleChannel := stream.NewChannel("console", "ws://127.0.0.1:1/api/console", refusingDialer{}, stream.Hooks{})

	ctx, cancel := context.WithTimeout(context.Background(), stream.WatchInterval+500*time.Millisecond)
	defer cancel()
	wait := startBackground(ctx, backgroundTasks(statsChannel, consoleChannel, bridge))
	wait()

	mu.Lock()
	defer mu.Unlock()
	if streams["stats"] == 0 {
		t.Fatalf("expected health readings for stats, got %v", streams)
	}
	if len(streams) != 1 {
		t.Fatalf("only stats should report health, got %v", streams)
	}
}
