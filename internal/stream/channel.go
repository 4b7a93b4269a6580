// Package stream keeps a long-lived websocket feed connected. A Channel
// reconnects forever with a constant delay and hands every inbound message
// to its hooks in arrival order.
package stream

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"srvpanel/internal/metrics"
	"srvpanel/internal/utils"

	"github.com/gorilla/websocket"
)

// ReconnectDelay separates a close from the next connect attempt. It is
// constant: the hundredth retry waits exactly as long as the first.
const ReconnectDelay = 1000 * time.Millisecond

// State of a Channel.
type State int

const (
	StateConnecting State = iota
	StateOpen
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Event drives state transitions.
type Event int

const (
	EventDialed Event = iota
	EventDialFailed
	EventClosed
	EventRetry
)

// Transition returns the state after ev. Events that do not apply to s
// leave it unchanged.
func Transition(s State, ev Event) State {
	switch ev {
	case EventDialed:
		if s == StateConnecting {
			return StateOpen
		}
	case EventDialFailed:
		if s == StateConnecting {
			return StateClosed
		}
	case EventClosed:
		if s == StateOpen || s == StateConnecting {
			return StateClosed
		}
	case EventRetry:
		if s == StateClosed {
			return StateConnecting
		}
	}
	return s
}

// Conn is the read side of a websocket connection.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	Close() error
}

// Dialer opens a Conn.
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// WebsocketDialer dials with gorilla/websocket.
type WebsocketDialer struct {
	Dialer *websocket.Dialer
	Header http.Header
}

// NewWebsocketDialer uses a 4s handshake timeout and sends userAgent.
func NewWebsocketDialer(userAgent string) *WebsocketDialer {
	header := http.Header{}
	if userAgent != "" {
		header.Set("User-Agent", userAgent)
	}
	return &WebsocketDialer{
		Dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: 4 * time.Second,
		},
		Header: header,
	}
}

func (d *WebsocketDialer) Dial(ctx context.Context, url string) (Conn, error) {
	conn, resp, err := d.Dialer.DialContext(ctx, url, d.Header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// WebsocketURL maps an http(s) base URL and an endpoint path to ws(s).
func WebsocketURL(baseURL, path string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + path
	return u.String(), nil
}

// Hooks receive channel events. All are optional and run on the channel's
// goroutine.
type Hooks struct {
	// Open fires on every successful connect; first is true only once per
	// Channel lifetime.
	Open func(first bool)
	// Message receives each payload. A returned error is logged as a decode
	// failure and the connection stays up.
	Message func(data []byte) error
	// Closed fires after the connection ends or a dial fails.
	Closed func(err error)
}

// Channel is one reconnecting feed.
type Channel struct {
	name   string
	url    string
	dialer Dialer
	hooks  Hooks
	logger *utils.Logger
	now    func() time.Time
	sleep  func(ctx context.Context, d time.Duration) error

	mu          sync.Mutex
	state       State
	lastMessage time.Time
	opens       int
}

// Option configures a Channel.
type Option func(*Channel)

// WithLogger sets the logger.
func WithLogger(l *utils.Logger) Option {
	return func(c *Channel) { c.logger = l }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Channel) { c.now = now }
}

// WithSleep replaces the reconnect wait.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Channel) { c.sleep = sleep }
}

// NewChannel builds a Channel in StateConnecting. Nothing is dialed until
// Run.
func NewChannel(name, url string, dialer Dialer, hooks Hooks, opts ...Option) *Channel {
	c := &Channel{
		name:   name,
		url:    url,
		dialer: dialer,
		hooks:  hooks,
		now:    time.Now,
		sleep:  sleepContext,
		state:  StateConnecting,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name returns the channel label used in logs and metrics.
func (c *Channel) Name() string { return c.name }

// State returns the current state.
func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Status returns the state and the last activity time together.
func (c *Channel) Status() (State, time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state, c.lastMessage
}

// Run connects and reconnects until ctx ends. It only returns ctx's error.
func (c *Channel) Run(ctx context.Context) error {
	for {
		c.connect(ctx)
		if err := ctx.Err(); err != nil {
			return err
		}
		metrics.IncReconnect(c.name)
		c.logf("%s stream closed, reconnecting in %v", c.name, ReconnectDelay)
		if err := c.sleep(ctx, ReconnectDelay); err != nil {
			return err
		}
		c.apply(EventRetry)
	}
}

func (c *Channel) connect(ctx context.Context) {
	conn, err := c.dialer.Dial(ctx, c.url)
	if err != nil {
		c.logf("%s stream connect failed: %v", c.name, err)
		c.apply(EventDialFailed)
		c.closed(err)
		return
	}

	c.mu.Lock()
	c.state = Transition(c.state, EventDialed)
	c.lastMessage = c.now()
	c.opens++
	first := c.opens == 1
	c.mu.Unlock()

	metrics.SetStreamOpen(c.name, true)
	c.logf("%s stream connected", c.name)
	if c.hooks.Open != nil {
		c.hooks.Open(first)
	}

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	err = c.readLoop(conn)
	stop()
	conn.Close()

	c.apply(EventClosed)
	metrics.SetStreamOpen(c.name, false)
	c.closed(err)
}

func (c *Channel) readLoop(conn Conn) error {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				c.logf("%s stream error: %v", c.name, err)
			}
			return err
		}

		c.mu.Lock()
		c.lastMessage = c.now()
		c.mu.Unlock()
		metrics.IncStreamMessage(c.name)

		if c.hooks.Message == nil {
			continue
		}
		if err := c.hooks.Message(data); err != nil {
			metrics.IncDecodeError(c.name)
			c.logf("%s stream dropped a message: %v", c.name, err)
		}
	}
}

func (c *Channel) apply(ev Event) {
	c.mu.Lock()
	c.state = Transition(c.state, ev)
	c.mu.Unlock()
}

func (c *Channel) closed(err error) {
	if c.hooks.Closed != nil {
		c.hooks.Closed(err)
	}
}

func (c *Channel) logf(format string, args ...any) {
	if c.logger != nil {
		c.logger.Writef(format, args...)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
