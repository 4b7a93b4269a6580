// Package actions issues the host commands (start, stop, wake, ip) through
// the AuthGate, plus the unauthenticated ping, list and exec calls.
package actions

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"srvpanel/internal/apierr"
	"srvpanel/internal/authgate"
	"srvpanel/internal/credentials"
	"srvpanel/internal/metrics"
	"srvpanel/internal/utils"
	"srvpanel/internal/version"

	"github.com/google/uuid"
)

const (
	// DefaultTimeout bounds every host request.
	DefaultTimeout = 5 * time.Second
	// StatusTTL is how long a status message stays visible.
	StatusTTL = 5 * time.Second
	// TokenHeader carries the raw stored secret.
	TokenHeader = "token"

	maxBodyBytes = 64 << 10

	unavailableMessage = "Server is unavailable right now, try waking it first"
	invalidMessage     = "Invalid password"
)

// Command describes one authenticated host command.
type Command struct {
	Name          string
	Path          string
	Purpose       credentials.Purpose
	PromptTitle   string
	SuccessFormat string
	FailurePrefix string
}

var (
	Start = Command{
		Name:          "start",
		Path:          "/api/start",
		Purpose:       credentials.PurposeBasic,
		PromptTitle:   "Password to start the server",
		SuccessFormat: "Server started: %s",
		FailurePrefix: "Failed to start server",
	}
	Stop = Command{
		Name:          "stop",
		Path:          "/api/stop",
		Purpose:       credentials.PurposeStop,
		PromptTitle:   "Password to stop the server",
		SuccessFormat: "Server stopped: %s",
		FailurePrefix: "Failed to stop server",
	}
	Wake = Command{
		Name:          "wake",
		Path:          "/api/wake",
		Purpose:       credentials.PurposeBasic,
		PromptTitle:   "Password to wake the server",
		SuccessFormat: "Wake requested: %s",
		FailurePrefix: "Failed to wake server",
	}
	IP = Command{
		Name:          "ip",
		Path:          "/api/ip",
		Purpose:       credentials.PurposeBasic,
		PromptTitle:   "Password to view the server IP",
		SuccessFormat: "Server IP: %s",
		FailurePrefix: "Failed to get IP",
	}
)

// Commands lists the authenticated commands by name.
var Commands = map[string]Command{
	Start.Name: Start,
	Stop.Name:  Stop,
	Wake.Name:  Wake,
	IP.Name:    IP,
}

// Status is a transient message for the user.
type Status struct {
	Command string
	Text    string
	IsError bool
	TTL     time.Duration
}

// Hooks receive presentation side effects. Both are optional.
type Hooks struct {
	// Busy is called with true before a command starts and with false on
	// every exit path.
	Busy func(command string, busy bool)
	// Status receives the outcome message of a command.
	Status func(Status)
}

// Client talks to the controlling host.
type Client struct {
	baseURL string
	http    *http.Client
	gate    *authgate.Gate
	timeout time.Duration
	hooks   Hooks
	logger  *utils.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithHooks installs presentation hooks.
func WithHooks(h Hooks) Option {
	return func(c *Client) { c.hooks = h }
}

// WithLogger sets the logger.
func WithLogger(l *utils.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// NewClient validates baseURL and builds a Client.
func NewClient(baseURL string, gate *authgate.Gate, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base url %q must use http or https", baseURL)
	}
	c := &Client{
		baseURL: strings.TrimRight(u.String(), "/"),
		http:    &http.Client{},
		gate:    gate,
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the normalized host URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Run executes cmd through the AuthGate, reporting busy state and the
// outcome status. It returns nil on success and when the user cancels the
// credential prompt.
func (c *Client) Run(ctx context.Context, cmd Command) (string, error) {
	c.setBusy(cmd.Name, true)
	defer c.setBusy(cmd.Name, false)

	started := time.Now()
	var body string
	ran := false
	err := c.gate.Execute(ctx, cmd.Purpose, cmd.PromptTitle, func(ctx context.Context, secret string) error {
		text, err := c.get(ctx, cmd.Name, cmd.Path, secret, true)
		if err == nil {
			body = text
			ran = true
		}
		return err
	})

	outcome := outcomeLabel(err, ran)
	metrics.ObserveAction(cmd.Name, outcome, time.Since(started).Seconds())

	switch {
	case err == nil && ran:
		c.report(Status{Command: cmd.Name, Text: fmt.Sprintf(cmd.SuccessFormat, strings.TrimSpace(body))})
		return strings.TrimSpace(body), nil
	case err == nil:
		return "", nil
	default:
		c.logf("%s failed: %v", cmd.Name, err)
		c.report(Status{Command: cmd.Name, Text: FailureMessage(cmd, err), IsError: true})
		return "", err
	}
}

// FailureMessage renders err for the user.
func FailureMessage(cmd Command, err error) string {
	if errors.Is(err, authgate.ErrInvalidCredential) {
		return invalidMessage
	}
	if apierr.Is(err, apierr.KindServiceUnavailable) {
		return unavailableMessage
	}
	return fmt.Sprintf("%s: %s", cmd.FailurePrefix, apierr.Detail(err))
}

func outcomeLabel(err error, ran bool) string {
	switch {
	case err == nil && ran:
		return "ok"
	case err == nil:
		return "cancelled"
	case errors.Is(err, authgate.ErrInvalidCredential):
		return "invalid_credential"
	default:
		return apierr.KindOf(err).String()
	}
}

func (c *Client) Start(ctx context.Context) (string, error) { return c.Run(ctx, Start) }
func (c *Client) Stop(ctx context.Context) (string, error)  { return c.Run(ctx, Stop) }
func (c *Client) Wake(ctx context.Context) (string, error)  { return c.Run(ctx, Wake) }
func (c *Client) GetIP(ctx context.Context) (string, error) { return c.Run(ctx, IP) }

// Ping probes host liveness.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.get(ctx, "ping", "/api/ping", "", false)
	return err
}

// List asks the host to print its player listing to the console stream.
func (c *Client) List(ctx context.Context) (string, error) {
	return c.get(ctx, "list", "/api/list", "", false)
}

// Exec submits a console command. The command text travels in the path.
func (c *Client) Exec(ctx context.Context, command string) (string, error) {
	command = strings.TrimSpace(command)
	if command == "" {
		return "", errors.New("command is empty")
	}
	return c.get(ctx, "exec", "/api/exec/"+url.PathEscape(command), "", false)
}

func (c *Client) get(ctx context.Context, op, path, secret string, withToken bool) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return "", apierr.New(apierr.KindNetwork, op, err)
	}
	if withToken {
		req.Header.Set(TokenHeader, secret)
	}
	req.Header.Set("User-Agent", version.UserAgent())
	req.Header.Set("X-Request-ID", uuid.NewString())

	resp, err := c.http.Do(req)
	if err != nil {
		if isTimeout(err) {
			return "", apierr.New(apierr.KindTimeout, op, err)
		}
		return "", apierr.New(apierr.KindNetwork, op, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		if isTimeout(err) {
			return "", apierr.New(apierr.KindTimeout, op, err)
		}
		return "", apierr.New(apierr.KindNetwork, op, err)
	}
	text := string(data)

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return text, nil
	case resp.StatusCode == http.StatusUnauthorized:
		return "", apierr.FromStatus(apierr.KindUnauthorized, op, resp.StatusCode, text)
	case resp.StatusCode == http.StatusServiceUnavailable:
		return "", apierr.FromStatus(apierr.KindServiceUnavailable, op, resp.StatusCode, text)
	default:
		if strings.TrimSpace(text) == "" {
			text = resp.Status
		}
		return "", apierr.FromStatus(apierr.KindFailed, op, resp.StatusCode, text)
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func (c *Client) setBusy(command string, busy bool) {
	if c.hooks.Busy != nil {
		c.hooks.Busy(command, busy)
	}
}

func (c *Client) report(s Status) {
	if s.TTL == 0 {
		s.TTL = StatusTTL
	}
	if c.hooks.Status != nil {
		c.hooks.Status(s)
	}
}

func (c *Client) logf(format string, args ...any) {
	if c.logger != nil {
		c.logger.Writef(format, args...)
	}
}
