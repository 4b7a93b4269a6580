package tui

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"srvpanel/internal/actions"
	"srvpanel/internal/authgate"
	"srvpanel/internal/console"
	"srvpanel/internal/credentials"
	"srvpanel/internal/stream"
	"srvpanel/internal/telemetry"
	"srvpanel/internal/utils"
	"srvpanel/internal/version"

	tea "github.com/charmbracelet/bubbletea"
)

// Options configures Run.
type Options struct {
	BaseURL string
	Store   credentials.Store
	Timeout time.Duration
	Logger  *utils.Logger
	// Dialer defaults to a gorilla websocket dialer.
	Dialer stream.Dialer
}

// Run opens both streams and drives the panel until the user quits or ctx
// ends.
func Run(ctx context.Context, opts Options) error {
	if opts.Store == nil {
		return errors.New("credential store is required")
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	bridge := &Bridge{}
	gate := authgate.New(opts.Store, bridge, opts.Logger)
	client, err := actions.NewClient(opts.BaseURL, gate,
		actions.WithTimeout(opts.Timeout),
		actions.WithHooks(bridge.ActionHooks()),
		actions.WithLogger(opts.Logger),
	)
	if err != nil {
		return err
	}

	statsURL, err := stream.WebsocketURL(client.BaseURL(), "/api/stats")
	if err != nil {
		return err
	}
	consoleURL, err := stream.WebsocketURL(client.BaseURL(), "/api/console")
	if err != nil {
		return err
	}
	dialer := opts.Dialer
	if dialer == nil {
		dialer = stream.NewWebsocketDialer(version.UserAgent())
	}

	atBottom := &atomic.Bool{}
	stats := telemetry.NewConsumer(bridge.Telemetry)
	logs := console.NewConsumer(console.NewLogBuffer(console.MaxLines), console.ScrollFunc(atBottom.Load), bridge.Console)
	session := console.NewSession(ctx, client.List, bridge.Notice, opts.Logger)

	statsChannel := stream.NewChannel("stats", statsURL, dialer, stream.Hooks{
		Message: stats.HandleMessage,
	}, stream.WithLogger(opts.Logger))
	consoleChannel := stream.NewChannel("console", consoleURL, dialer, stream.Hooks{
		Open:    session.HandleOpen,
		Message: logs.HandleMessage,
		Closed:  session.HandleClosed,
	}, stream.WithLogger(opts.Logger))

	program := tea.NewProgram(NewModel(ctx, client, atBottom), tea.WithAltScreen(), tea.WithContext(ctx))
	bridge.Attach(program)

	wait := startBackground(ctx, backgroundTasks(statsChannel, consoleChannel, bridge))

	_, runErr := program.Run()
	cancel()
	wait()
	if errors.Is(runErr, tea.ErrProgramKilled) {
		return nil
	}
	return runErr
}

// backgroundTasks lists the loops that feed the panel. Console output is
// sporadic, so only the stats channel is watched for staleness.
func backgroundTasks(stats, console *stream.Channel, bridge *Bridge) []func(context.Context) error {
	return []func(context.Context) error{
		stats.Run,
		console.Run,
		stream.NewWatchdog(stats, bridge.Health(stats.Name())).Run,
	}
}

// startBackground runs each task in its own goroutine; the returned func
// waits for all of them.
func startBackground(ctx context.Context, tasks []func(context.Context) error) func() {
	var wg sync.WaitGroup
	for _, run := range tasks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = run(ctx)
		}()
	}
	return wg.Wait
}
