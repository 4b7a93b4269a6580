package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"srvpanel/internal/actions"
	"srvpanel/internal/apierr"
	"srvpanel/internal/authgate"
	"srvpanel/internal/config"
	"srvpanel/internal/console"
	"srvpanel/internal/credentials"
	"srvpanel/internal/metrics"
	"srvpanel/internal/stream"
	"srvpanel/internal/telemetry"
	"srvpanel/internal/tui"
	"srvpanel/internal/utils"
	"srvpanel/internal/version"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

type options struct {
	configPath  string
	baseURL     string
	timeout     int
	backend     string
	credentials string
	logFile     string
	metricsAddr string
	showVersion bool
}

func parseFlags(args []string, stderr io.Writer) (*flag.FlagSet, *options, error) {
	opts := &options{}
	fs := flag.NewFlagSet("srvpanel", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.configPath, "config", "", "Path to config.json (default: user config dir)")
	fs.StringVar(&opts.baseURL, "base-url", "", "Controlling host URL")
	fs.IntVar(&opts.timeout, "timeout", 0, "Request timeout in seconds")
	fs.StringVar(&opts.backend, "backend", "", "Credential backend: file, redis or memory")
	fs.StringVar(&opts.credentials, "credentials", "", "Credentials file for the file backend")
	fs.StringVar(&opts.logFile, "log-file", "", "Log file path")
	fs.StringVar(&opts.metricsAddr, "metrics-addr", "", "Serve prometheus metrics on this address (watch mode)")
	fs.BoolVar(&opts.showVersion, "version", false, "Print version information and exit")
	fs.Usage = func() { usage(stderr, fs) }
	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}
	return fs, opts, nil
}

func usage(w io.Writer, fs *flag.FlagSet) {
	fmt.Fprintln(w, "usage: srvpanel [flags] <command>")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "commands:")
	fmt.Fprintln(w, "  tui            interactive panel (default)")
	fmt.Fprintln(w, "  watch          print telemetry and console output")
	fmt.Fprintln(w, "  start | stop | wake | ip")
	fmt.Fprintln(w, "  ping | list | exec <command>")
	fmt.Fprintln(w, "  forget         clear stored credentials")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "flags:")
	fs.PrintDefaults()
}

func loadConfig(opts *options) (config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return cfg, err
	}
	if opts.baseURL != "" {
		cfg.BaseURL = strings.TrimRight(opts.baseURL, "/")
	}
	if opts.timeout > 0 {
		cfg.TimeoutSeconds = opts.timeout
	}
	if opts.backend != "" {
		cfg.CredentialBackend = opts.backend
	}
	if opts.credentials != "" {
		cfg.CredentialsFile = opts.credentials
	}
	if opts.logFile != "" {
		cfg.LogFile = opts.logFile
	}
	if opts.metricsAddr != "" {
		cfg.MetricsAddr = opts.metricsAddr
	}
	return cfg, cfg.Validate()
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs, opts, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if opts.showVersion {
		fmt.Fprintln(stdout, version.String())
		return 0
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		fmt.Fprintf(stderr, "config error: %v\n", err)
		return 1
	}

	logger := utils.NewLogger(cfg.LogFile)
	defer logger.Close()

	store, err := config.NewStore(cfg, logger)
	if err != nil {
		fmt.Fprintf(stderr, "credential store error: %v\n", err)
		return 1
	}

	rest := fs.Args()
	command := "tui"
	if len(rest) > 0 {
		command = strings.ToLower(rest[0])
		rest = rest[1:]
	}

	switch command {
	case "tui":
		panelLogger := logger
		if logger.File() == nil {
			// The alt screen owns stdout.
			panelLogger = utils.NewWriterLogger(io.Discard)
		}
		if err := tui.Run(ctx, tui.Options{BaseURL: cfg.BaseURL, Store: store, Timeout: cfg.Timeout(), Logger: panelLogger}); err != nil {
			fmt.Fprintf(stderr, "panel exited with error: %v\n", err)
			return 1
		}
		return 0
	case "forget":
		return forget(store, stdout, stderr)
	}

	gate := authgate.New(store, authgate.NewTerminalPrompter(), logger)
	client, err := actions.NewClient(cfg.BaseURL, gate,
		actions.WithTimeout(cfg.Timeout()),
		actions.WithLogger(logger),
	)
	if err != nil {
		fmt.Fprintf(stderr, "%v\n", err)
		return 1
	}

	switch command {
	case "watch":
		return watch(ctx, client, cfg.MetricsAddr, logger, stdout, stderr)
	case "ping":
		if err := client.Ping(ctx); err != nil {
			fmt.Fprintf(stderr, "host unreachable: %s\n", apierr.Detail(err))
			return 1
		}
		fmt.Fprintln(stdout, "pong")
		return 0
	case "list":
		return printResult(client.List(ctx))(stdout, stderr, "list")
	case "exec":
		if len(rest) == 0 {
			fmt.Fprintln(stderr, "exec <command>")
			return 2
		}
		return printResult(client.Exec(ctx, strings.Join(rest, " ")))(stdout, stderr, "exec")
	}

	cmd, ok := actions.Commands[command]
	if !ok {
		usage(stderr, fs)
		return 2
	}
	return runCommand(ctx, client, cmd, stdout, stderr)
}

func printResult(text string, err error) func(stdout, stderr io.Writer, label string) int {
	return func(stdout, stderr io.Writer, label string) int {
		if err != nil {
			fmt.Fprintf(stderr, "%s failed: %s\n", label, apierr.Detail(err))
			return 1
		}
		fmt.Fprintln(stdout, strings.TrimSpace(text))
		return 0
	}
}

// runCommand runs one authenticated command and prints its status message.
// A cancelled prompt exits 0 without output.
func runCommand(ctx context.Context, client *actions.Client, cmd actions.Command, stdout, stderr io.Writer) int {
	text, err := client.Run(ctx, cmd)
	if err != nil {
		fmt.Fprintln(stderr, actions.FailureMessage(cmd, err))
		return 1
	}
	if text != "" {
		fmt.Fprintf(stdout, cmd.SuccessFormat+"\n", text)
	}
	return 0
}

func forget(store credentials.Store, stdout, stderr io.Writer) int {
	for _, purpose := range []credentials.Purpose{credentials.PurposeBasic, credentials.PurposeStop} {
		if err := store.Clear(purpose); err != nil {
			fmt.Fprintf(stderr, "clear %s: %v\n", purpose, err)
			return 1
		}
	}
	fmt.Fprintln(stdout, "stored credentials cleared")
	return 0
}

// watch prints stream output line by line until ctx ends.
func watch(ctx context.Context, client *actions.Client, metricsAddr string, logger *utils.Logger, stdout, stderr io.Writer) int {
	statsURL, err := stream.WebsocketURL(client.BaseURL(), "/api/stats")
	if err != nil {
		fmt.Fprintf(stderr, "%v\n", err)
		return 1
	}
	consoleURL, err := stream.WebsocketURL(client.BaseURL(), "/api/console")
	if err != nil {
		fmt.Fprintf(stderr, "%v\n", err)
		return 1
	}

	var outMu sync.Mutex
	printf := func(format string, args ...any) {
		outMu.Lock()
		defer outMu.Unlock()
		fmt.Fprintf(stdout, format+"\n", args...)
	}

	if metricsAddr != "" {
		srv := &http.Server{Addr: metricsAddr, Handler: metrics.Handler(), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Writef("metrics server failed: %v", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	stats := telemetry.NewConsumer(func(u telemetry.Update) {
		d := u.Display
		printf("[stats] ram %s | cpu %s | server cpu %s ram %s disk %s",
			d.SystemRAM, d.AverageCPU, d.ServerCPU, d.ServerRAM, d.ServerDisk)
	})
	logs := console.NewConsumer(console.NewLogBuffer(console.MaxLines), nil, func(u console.Update) {
		for _, line := range u.Appended {
			printf("[console] %s", line)
		}
	})
	session := console.NewSession(ctx, client.List, func(n console.Notice) {
		printf("[console] -- %s", n)
	}, logger)

	dialer := stream.NewWebsocketDialer(version.UserAgent())
	channels := []*stream.Channel{
		stream.NewChannel("stats", statsURL, dialer, stream.Hooks{Message: stats.HandleMessage}, stream.WithLogger(logger)),
		stream.NewChannel("console", consoleURL, dialer, stream.Hooks{
			Open:    session.HandleOpen,
			Message: logs.HandleMessage,
			Closed:  session.HandleClosed,
		}, stream.WithLogger(logger)),
	}

	var wg sync.WaitGroup
	for _, ch := range channels {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = ch.Run(ctx)
		}()
	}

	// Only telemetry is expected to flow steadily; console silence is normal.
	statsChannel := channels[0]
	last := stream.HealthHealthy
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = stream.NewWatchdog(statsChannel, func(h stream.Health) {
			if h.Status != last {
				printf("[%s] %s", statsChannel.Name(), h)
			}
			last = h.Status
		}).Run(ctx)
	}()
	wg.Wait()
	return 0
}
