package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"srvpanel/internal/config"
	"srvpanel/internal/devhost"
	"srvpanel/internal/stream"
	"srvpanel/internal/telemetry"

	"github.com/gin-gonic/gin"
)

func newHost(t *testing.T) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	s, err := devhost.NewServer(devhost.Config{
		BasicToken:    "basic",
		StopToken:     "stopper",
		RatePerMinute: 6000,
		Burst:         100,
		Resolve:       func(context.Context) (string, error) { return "203.0.113.7", nil },
		Sample: func(context.Context, bool) (telemetry.Wire, error) {
			return telemetry.Wire{}, nil
		},
	}, nil)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	srv := httptest.NewServer(s.Router())
	t.Cleanup(srv.Close)
	return srv
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{config.EnvBaseURL, config.EnvTimeoutSeconds, config.EnvCredentialBackend,
		config.EnvCredentialsFile, config.EnvRedisAddr, config.EnvRedisPassword, config.EnvRedisDB,
		config.EnvLogFile, config.EnvMetricsAddr} {
		t.Setenv(key, "")
	}
}

func baseArgs(t *testing.T, baseURL, credsFile string) []string {
	dir := t.TempDir()
	return []string{
		"-config", filepath.Join(dir, "config.json"),
		"-log-file", filepath.Join(dir, "srvpanel.log"),
		"-base-url", baseURL,
		"-backend", "file",
		"-credentials", credsFile,
	}
}

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestVersionFlag(t *testing.T) {
	code, out, _ := runCLI(t, "-version")
	if code != 0 || strings.TrimSpace(out) == "" {
		t.Fatalf("expected version output, got %d %q", code, out)
	}
}

func TestInvalidConfig(t *testing.T) {
	clearEnv(t)
	args := append(baseArgs(t, "http://localhost:1", filepath.Join(t.TempDir(), "c.json")), "-backend", "vault", "ping")
	if code, _, errOut := runCLI(t, args...); code != 1 || !strings.Contains(errOut, "config error") {
		t.Fatalf("expected config error, got %d %q", code, errOut)
	}
}

func TestStartWithStoredCredential(t *testing.T) {
	clearEnv(t)
	srv := newHost(t)
	creds := filepath.Join(t.TempDir(), "credentials.json")
	if err := os.WriteFile(creds, []byte(`{"basic_token":"basic"}`), 0o600); err != nil {
		t.Fatalf("write credentials: %v", err)
	}

	code, out, errOut := runCLI(t, append(baseArgs(t, srv.URL, creds), "start")...)
	if code != 0 {
		t.Fatalf("start failed: %d %q", code, errOut)
	}
	if strings.TrimSpace(out) != "Server started: ran!" {
		t.Fatalf("unexpected output %q", out)
	}

	code, out, _ = runCLI(t, append(baseArgs(t, srv.URL, creds), "exec", "say", "hi")...)
	if code != 0 || strings.TrimSpace(out) != "executed command!" {
		t.Fatalf("exec: %d %q", code, out)
	}
	code, out, _ = runCLI(t, append(baseArgs(t, srv.URL, creds), "exec", "tp", "@a", "0/64/0")...)
	if code != 0 || strings.TrimSpace(out) != "executed command!" {
		t.Fatalf("exec with slashes: %d %q", code, out)
	}
}

func TestUnauthenticatedCommands(t *testing.T) {
	clearEnv(t)
	srv := newHost(t)
	creds := filepath.Join(t.TempDir(), "credentials.json")

	if code, out, _ := runCLI(t, append(baseArgs(t, srv.URL, creds), "ping")...); code != 0 || strings.TrimSpace(out) != "pong" {
		t.Fatalf("ping: %d %q", code, out)
	}
	code, _, errOut := runCLI(t, append(baseArgs(t, srv.URL, creds), "list")...)
	if code != 1 || !strings.Contains(errOut, "server not on!") {
		t.Fatalf("list while stopped: %d %q", code, errOut)
	}
	if code, _, _ := runCLI(t, append(baseArgs(t, srv.URL, creds), "exec")...); code != 2 {
		t.Fatalf("exec without command should be a usage error, got %d", code)
	}
	if code, _, _ := runCLI(t, append(baseArgs(t, srv.URL, creds), "bogus")...); code != 2 {
		t.Fatalf("unknown command should be a usage error, got %d", code)
	}
}

func TestForget(t *testing.T) {
	clearEnv(t)
	creds := filepath.Join(t.TempDir(), "credentials.json")
	if err := os.WriteFile(creds, []byte(`{"basic_token":"a","stop_token":"b"}`), 0o600); err != nil {
		t.Fatalf("write credentials: %v", err)
	}
	code, _, errOut := runCLI(t, append(baseArgs(t, "http://localhost:1", creds), "forget")...)
	if code != 0 {
		t.Fatalf("forget: %d %q", code, errOut)
	}
	data, err := os.ReadFile(creds)
	if err != nil {
		t.Fatalf("read credentials: %v", err)
	}
	if strings.Contains(string(data), "basic_token") || strings.Contains(string(data), "stop_token") {
		t.Fatalf("credentials not cleared: %s", data)
	}
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func waitForOutput(t *testing.T, b *syncBuffer, want string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !strings.Contains(b.String(), want) {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %q in %q", want, b.String())
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestWatchIgnoresQuietConsole(t *testing.T) {
	if testing.Short() {
		t.Skip("waits past the staleness threshold")
	}
	clearEnv(t)
	gin.SetMode(gin.TestMode)
	host, err := devhost.NewServer(devhost.Config{
		BasicToken:    "basic",
		StopToken:     "stopper",
		RatePerMinute: 6000,
		Burst:         100,
		Sample: func(context.Context, bool) (telemetry.Wire, error) {
			return telemetry.Wire{}, nil
		},
	}, nil)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	hostCtx, stopHost := context.WithCancel(context.Background())
	defer stopHost()
	host.Run(hostCtx)
	srv := httptest.NewServer(host.Router())
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var stdout, stderr syncBuffer
	done := make(chan int, 1)
	args := append(baseArgs(t, srv.URL, filepath.Join(t.TempDir(), "c.json")), "watch")
	go func() { done <- run(ctx, args, &stdout, &stderr) }()

	waitForOutput(t, &stdout, "Connected to console")
	waitForOutput(t, &stdout, "[stats]")
	// Give the hub time to register the console client before it speaks.
	time.Sleep(200 * time.Millisecond)
	host.Runner().Start()
	waitForOutput(t, &stdout, "Done! For help")

	time.Sleep(stream.StaleAfter + stream.WatchInterval)
	cancel()
	<-done

	out := stdout.String()
	if strings.Contains(out, "[console] no data") {
		t.Fatalf("quiet console reported as stale:\n%s", out)
	}
	if strings.Contains(out, "[stats] no data") {
		t.Fatalf("steady stats reported as stale:\n%s", out)
	}
}
