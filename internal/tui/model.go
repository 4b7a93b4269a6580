// Package tui is the interactive terminal panel: telemetry readouts, the
// live console, command keys and the modal credential prompt.
package tui

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"srvpanel/internal/actions"
	"srvpanel/internal/console"
	"srvpanel/internal/stream"
	"srvpanel/internal/telemetry"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Commander is the subset of the action client the panel drives.
type Commander interface {
	Run(ctx context.Context, cmd actions.Command) (string, error)
	List(ctx context.Context) (string, error)
	Exec(ctx context.Context, command string) (string, error)
}

type telemetryMsg struct{ update telemetry.Update }

type consoleMsg struct{ update console.Update }

type noticeMsg struct{ notice console.Notice }

type healthMsg struct {
	stream string
	health stream.Health
}

type busyMsg struct {
	command string
	busy    bool
}

type statusMsg struct{ status actions.Status }

type statusExpiredMsg struct{ seq int }

type promptReply struct {
	secret string
	ok     bool
}

type promptRequestMsg struct {
	title string
	reply chan<- promptReply
}

// commandDoneMsg carries the result of commands that bypass the client's
// status hooks (list, exec).
type commandDoneMsg struct {
	label string
	text  string
	err   error
}

var commandKeys = map[string]actions.Command{
	"s": actions.Start,
	"x": actions.Stop,
	"w": actions.Wake,
	"i": actions.IP,
}

type Model struct {
	ctx       context.Context
	commander Commander

	ready  bool
	width  int
	height int

	console   viewport.Model
	atBottom  *atomic.Bool
	spinner   spinner.Model
	prompt    textinput.Model
	execInput textinput.Model

	busy map[string]bool

	status    actions.Status
	statusSeq int

	notice  console.Notice
	health  map[string]stream.Health
	display telemetry.Display
	band    telemetry.Band
	slots   []telemetry.Slot
	hasData bool

	promptTitle string
	promptReply chan<- promptReply
	execOpen    bool
}

// NewModel builds the panel. atBottom is shared with the console consumer
// so it can sample the scroll position before each append.
func NewModel(ctx context.Context, commander Commander, atBottom *atomic.Bool) Model {
	if atBottom == nil {
		atBottom = &atomic.Bool{}
	}
	atBottom.Store(true)

	vp := viewport.New(80, 12)
	vp.SetContent(mutedStyle.Render("Waiting for console output..."))

	spin := spinner.New()
	spin.Spinner = spinner.MiniDot
	spin.Style = lipgloss.NewStyle().Foreground(accentSecondary)

	prompt := textinput.New()
	prompt.Prompt = "> "
	prompt.EchoMode = textinput.EchoPassword
	prompt.EchoCharacter = '•'
	prompt.CharLimit = 256
	prompt.Width = 40

	execInput := textinput.New()
	execInput.Prompt = ": "
	execInput.Placeholder = "console command"
	execInput.CharLimit = 512
	execInput.Width = 60

	return Model{
		ctx:       ctx,
		commander: commander,
		console:   vp,
		atBottom:  atBottom,
		spinner:   spin,
		prompt:    prompt,
		execInput: execInput,
		busy:      map[string]bool{},
		health:    map[string]stream.Health{},
		notice:    console.NoticeConnecting,
	}
}

func (m Model) Init() tea.Cmd {
	return m.spinner.Tick
}

func runCommandCmd(ctx context.Context, c Commander, cmd actions.Command) tea.Cmd {
	return func() tea.Msg {
		// Outcome is reported through the client's status hook.
		_, _ = c.Run(ctx, cmd)
		return busyMsg{command: cmd.Name, busy: false}
	}
}

func listCmd(ctx context.Context, c Commander) tea.Cmd {
	return func() tea.Msg {
		text, err := c.List(ctx)
		return commandDoneMsg{label: "list", text: text, err: err}
	}
}

func execCmd(ctx context.Context, c Commander, command string) tea.Cmd {
	return func() tea.Msg {
		text, err := c.Exec(ctx, command)
		return commandDoneMsg{label: "exec " + command, text: text, err: err}
	}
}

func expireStatusCmd(seq int, ttl time.Duration) tea.Cmd {
	return tea.Tick(ttl, func(time.Time) tea.Msg { return statusExpiredMsg{seq: seq} })
}

func (m *Model) setStatus(s actions.Status) tea.Cmd {
	if s.TTL <= 0 {
		s.TTL = actions.StatusTTL
	}
	m.status = s
	m.statusSeq++
	return expireStatusCmd(m.statusSeq, s.TTL)
}

func (m Model) anyBusy() bool {
	for _, b := range m.busy {
		if b {
			return true
		}
	}
	return false
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.console.Width = max(20, msg.Width-4)
		m.console.Height = max(4, msg.Height-18)
		m.atBottom.Store(m.console.AtBottom())
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case telemetryMsg:
		m.hasData = true
		m.display = msg.update.Display
		m.band = msg.update.Metrics.CPUBand
		m.slots = msg.update.Slots
		return m, nil

	case consoleMsg:
		m.console.SetContent(msg.update.Text)
		if msg.update.WasAtBottom {
			m.console.GotoBottom()
		}
		m.atBottom.Store(m.console.AtBottom())
		return m, nil

	case noticeMsg:
		m.notice = msg.notice
		return m, nil

	case healthMsg:
		m.health[msg.stream] = msg.health
		return m, nil

	case busyMsg:
		m.busy[msg.command] = msg.busy
		return m, nil

	case statusMsg:
		return m, m.setStatus(msg.status)

	case statusExpiredMsg:
		if msg.seq == m.statusSeq {
			m.status = actions.Status{}
		}
		return m, nil

	case commandDoneMsg:
		if msg.err != nil {
			return m, m.setStatus(actions.Status{Command: msg.label, Text: fmt.Sprintf("%s failed: %v", msg.label, msg.err), IsError: true})
		}
		return m, m.setStatus(actions.Status{Command: msg.label, Text: msg.text})

	case promptRequestMsg:
		if m.promptReply != nil {
			m.promptReply <- promptReply{}
		}
		m.promptTitle = msg.title
		m.promptReply = msg.reply
		m.prompt.SetValue("")
		m.execOpen = false
		m.execInput.Blur()
		return m, m.prompt.Focus()

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	var cmd tea.Cmd
	m.console, cmd = m.console.Update(msg)
	m.atBottom.Store(m.console.AtBottom())
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyCtrlC {
		if m.promptReply != nil {
			m.promptReply <- promptReply{}
			m.promptReply = nil
		}
		return m, tea.Quit
	}

	if m.promptReply != nil {
		switch msg.Type {
		case tea.KeyEnter:
			secret := strings.TrimSpace(m.prompt.Value())
			m.promptReply <- promptReply{secret: secret, ok: secret != ""}
			m.closePrompt()
			return m, nil
		case tea.KeyEsc:
			m.promptReply <- promptReply{}
			m.closePrompt()
			return m, nil
		}
		var cmd tea.Cmd
		m.prompt, cmd = m.prompt.Update(msg)
		return m, cmd
	}

	if m.execOpen {
		switch msg.Type {
		case tea.KeyEnter:
			command := strings.TrimSpace(m.execInput.Value())
			m.execOpen = false
			m.execInput.Blur()
			m.execInput.SetValue("")
			if command == "" || m.commander == nil {
				return m, nil
			}
			return m, execCmd(m.ctx, m.commander, command)
		case tea.KeyEsc:
			m.execOpen = false
			m.execInput.Blur()
			m.execInput.SetValue("")
			return m, nil
		}
		var cmd tea.Cmd
		m.execInput, cmd = m.execInput.Update(msg)
		return m, cmd
	}

	key := msg.String()
	switch key {
	case "q":
		return m, tea.Quit
	case ":":
		m.execOpen = true
		return m, m.execInput.Focus()
	case "l":
		if m.commander == nil {
			return m, nil
		}
		return m, listCmd(m.ctx, m.commander)
	}
	if cmd, ok := commandKeys[key]; ok {
		if m.busy[cmd.Name] || m.commander == nil {
			return m, nil
		}
		m.busy[cmd.Name] = true
		return m, runCommandCmd(m.ctx, m.commander, cmd)
	}

	var cmd tea.Cmd
	m.console, cmd = m.console.Update(msg)
	m.atBottom.Store(m.console.AtBottom())
	return m, cmd
}

func (m *Model) closePrompt() {
	m.promptReply = nil
	m.promptTitle = ""
	m.prompt.SetValue("")
	m.prompt.Blur()
}

func (m Model) renderTelemetry() string {
	if !m.hasData {
		return mutedStyle.Render("Waiting for stats...")
	}
	lines := []string{
		"System RAM  " + m.display.SystemRAM,
		"Average CPU " + bandStyle(m.band).Render(m.display.AverageCPU),
		"Server CPU  " + m.display.ServerCPU,
		"Server RAM  " + m.display.ServerRAM,
		"Server disk " + m.display.ServerDisk,
	}
	cores := make([]string, 0, len(m.slots))
	for _, s := range m.slots {
		cores = append(cores, bandStyle(s.Band).Render(fmt.Sprintf("%2d:%7s", s.Index, s.Text)))
	}
	const perRow = 4
	for i := 0; i < len(cores); i += perRow {
		end := min(i+perRow, len(cores))
		lines = append(lines, strings.Join(cores[i:end], "  "))
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderHealth() string {
	if len(m.health) == 0 {
		return ""
	}
	names := make([]string, 0, len(m.health))
	for name := range m.health {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		h := m.health[name]
		text := name + ": " + h.String()
		if h.Status == stream.HealthStale {
			parts = append(parts, errorStyle.Render(text))
			continue
		}
		parts = append(parts, mutedStyle.Render(text+" ("+h.State.String()+")"))
	}
	return strings.Join(parts, "  ")
}

func (m Model) View() string {
	if !m.ready {
		return "Starting panel..."
	}
	width := max(40, m.width-4)

	header := headerStyle.Render("Server Panel") + " " + mutedStyle.Render(m.notice.String())
	parts := []string{header}
	if h := m.renderHealth(); h != "" {
		parts = append(parts, h)
	}
	parts = append(parts,
		renderPanel("Telemetry", m.renderTelemetry(), width),
		renderPanel("Console", m.console.View(), width),
	)

	if m.promptReply != nil {
		parts = append(parts, modalStyle.Render(m.promptTitle+"\n"+m.prompt.View()+"\n"+mutedStyle.Render("enter submit | esc cancel")))
	}
	if m.execOpen {
		parts = append(parts, m.execInput.View())
	}

	statusPrefix := "*"
	if m.anyBusy() {
		statusPrefix = m.spinner.View()
	}
	switch {
	case m.status.Text == "":
		parts = append(parts, statusStyle.Render(statusPrefix+" Ready"))
	case m.status.IsError:
		parts = append(parts, errorStyle.Render(statusPrefix+" "+m.status.Text))
	default:
		parts = append(parts, statusStyle.Render(statusPrefix+" "+m.status.Text))
	}

	parts = append(parts, mutedStyle.Render("s start | x stop | w wake | i ip | l list | : exec | pgup/pgdn scroll | q quit"))
	return strings.Join(parts, "\n")
}
