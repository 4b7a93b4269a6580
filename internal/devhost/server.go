// Package devhost is a stand-in controlling host: it serves the command
// routes and the stats and console streams the panel talks to, backed by a
// simulated game server.
package devhost

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"srvpanel/internal/metrics"
	"srvpanel/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

// Config holds the devhost settings.
type Config struct {
	BasicToken    string
	StopToken     string
	RatePerMinute int
	Burst         int
	Asleep        bool
	// Resolve overrides the NAT lookup behind /api/ip.
	Resolve IPResolver
	// Sample overrides the gopsutil sampler.
	Sample SampleFunc
}

// Server wires the runner, auth, rate limiting and the two stream hubs.
type Server struct {
	cfg         Config
	basicHash   string
	stopHash    string
	runner      *Runner
	statsHub    *Hub
	consoleHub  *Hub
	auth        *TokenAuth
	rateLimiter *RateLimiter
	logger      *utils.Logger
}

// NewServer hashes the tokens and builds the handlers. Hubs and the stats
// loop start with Run.
func NewServer(cfg Config, logger *utils.Logger) (*Server, error) {
	if cfg.BasicToken == "" || cfg.StopToken == "" {
		return nil, errors.New("basic and stop tokens are required")
	}
	if cfg.RatePerMinute <= 0 {
		cfg.RatePerMinute = 120
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 10
	}
	if cfg.Resolve == nil {
		cfg.Resolve = (&NATResolver{}).Resolve
	}
	if cfg.Sample == nil {
		cfg.Sample = NewSampler().Sample
	}

	basicHash, err := HashToken(cfg.BasicToken)
	if err != nil {
		return nil, fmt.Errorf("hash basic token: %w", err)
	}
	stopHash, err := HashToken(cfg.StopToken)
	if err != nil {
		return nil, fmt.Errorf("hash stop token: %w", err)
	}

	s := &Server{
		cfg:         cfg,
		basicHash:   basicHash,
		stopHash:    stopHash,
		statsHub:    NewHub("stats", websocket.TextMessage, logger),
		consoleHub:  NewHub("console", websocket.TextMessage, logger),
		auth:        NewTokenAuth(),
		rateLimiter: NewRateLimiter(rate.Every(time.Minute/time.Duration(cfg.RatePerMinute)), cfg.Burst),
		logger:      logger,
	}
	s.runner = NewRunner(!cfg.Asleep, func(line string) {
		s.consoleHub.Broadcast([]byte(line))
	})
	return s, nil
}

// Runner exposes the simulated game server.
func (s *Server) Runner() *Runner {
	return s.runner
}

// Run starts the hubs and the stats loop; they stop with ctx.
func (s *Server) Run(ctx context.Context) {
	go s.statsHub.Run(ctx)
	go s.consoleHub.Run(ctx)
	StartStatsLoop(ctx, s.statsHub, s.cfg.Sample, s.runner.Running, s.logger)
	context.AfterFunc(ctx, s.rateLimiter.Stop)
}

func reply(c *gin.Context, r Reply) {
	if r.Body == "" {
		c.Status(r.Status)
		return
	}
	c.String(r.Status, r.Body)
}

// Router builds the gin engine.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithFormatter(func(param gin.LogFormatterParams) string {
		return fmt.Sprintf("%s - [%s] \"%s %s %d %s\"\n",
			param.ClientIP,
			param.TimeStamp.Format(time.RFC1123),
			param.Method,
			param.Path,
			param.StatusCode,
			param.Latency,
		)
	}))

	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	api := r.Group("/api")
	api.Use(s.rateLimiter.Middleware())

	api.GET("/ping", func(c *gin.Context) {
		if !s.runner.Awake() {
			c.Status(http.StatusServiceUnavailable)
			return
		}
		c.String(http.StatusOK, "pong")
	})
	api.GET("/running", func(c *gin.Context) {
		if !s.runner.Awake() {
			c.Status(http.StatusServiceUnavailable)
			return
		}
		c.String(http.StatusOK, fmt.Sprintf("%t", s.runner.Running()))
	})
	api.GET("/list", func(c *gin.Context) { reply(c, s.runner.List()) })
	api.GET("/exec/*cmd", s.handleExec)

	basic := s.auth.Require(s.basicHash)
	api.GET("/start", basic, func(c *gin.Context) { reply(c, s.runner.Start()) })
	api.GET("/wake", basic, func(c *gin.Context) { reply(c, s.runner.Wake()) })
	api.GET("/ip", basic, s.handleIP)
	api.GET("/stop", s.auth.Require(s.stopHash), func(c *gin.Context) { reply(c, s.runner.Stop()) })

	api.GET("/stats", s.statsHub.HandleWebSocket())
	api.GET("/console", s.consoleHub.HandleWebSocket())

	return r
}

// handleExec takes everything after /exec/ so commands may contain slashes.
func (s *Server) handleExec(c *gin.Context) {
	cmd := strings.TrimPrefix(c.Param("cmd"), "/")
	if cmd == "" {
		c.Status(http.StatusNotFound)
		return
	}
	reply(c, s.runner.Exec(cmd))
}

func (s *Server) handleIP(c *gin.Context) {
	if !s.runner.Awake() {
		c.Status(http.StatusServiceUnavailable)
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()
	ip, err := s.cfg.Resolve(ctx)
	if err != nil {
		if s.logger != nil {
			s.logger.Writef("ip lookup failed: %v", err)
		}
		c.String(http.StatusInternalServerError, "failed to get ip")
		return
	}
	c.String(http.StatusOK, ip)
}
