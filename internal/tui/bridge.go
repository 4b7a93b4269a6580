package tui

import (
	"context"
	"sync"

	"srvpanel/internal/actions"
	"srvpanel/internal/console"
	"srvpanel/internal/stream"
	"srvpanel/internal/telemetry"

	tea "github.com/charmbracelet/bubbletea"
)

// Bridge forwards events from stream, watchdog and client goroutines into
// the running program. Messages sent before Attach are dropped.
type Bridge struct {
	mu   sync.RWMutex
	send func(tea.Msg)
}

// Attach routes messages to p.
func (b *Bridge) Attach(p *tea.Program) {
	b.AttachFunc(p.Send)
}

// AttachFunc routes messages to send.
func (b *Bridge) AttachFunc(send func(tea.Msg)) {
	b.mu.Lock()
	b.send = send
	b.mu.Unlock()
}

// Send delivers msg to the program.
func (b *Bridge) Send(msg tea.Msg) {
	b.mu.RLock()
	send := b.send
	b.mu.RUnlock()
	if send != nil {
		send(msg)
	}
}

// ActionHooks reports busy and status changes of the action client.
func (b *Bridge) ActionHooks() actions.Hooks {
	return actions.Hooks{
		Busy:   func(command string, busy bool) { b.Send(busyMsg{command: command, busy: busy}) },
		Status: func(s actions.Status) { b.Send(statusMsg{status: s}) },
	}
}

func (b *Bridge) Telemetry(u telemetry.Update) { b.Send(telemetryMsg{update: u}) }

func (b *Bridge) Console(u console.Update) { b.Send(consoleMsg{update: u}) }

func (b *Bridge) Notice(n console.Notice) { b.Send(noticeMsg{notice: n}) }

// Health returns a watchdog report function tagged with the stream name.
func (b *Bridge) Health(name string) func(stream.Health) {
	return func(h stream.Health) { b.Send(healthMsg{stream: name, health: h}) }
}

// Prompt implements authgate.Prompter with the panel's modal dialog. It
// blocks until the user submits or cancels, or ctx ends.
func (b *Bridge) Prompt(ctx context.Context, title string) (string, bool, error) {
	reply := make(chan promptReply, 1)
	b.Send(promptRequestMsg{title: title, reply: reply})
	select {
	case r := <-reply:
		return r.secret, r.ok, nil
	case <-ctx.Done():
		return "", false, ctx.Err()
	}
}
