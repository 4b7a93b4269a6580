package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"srvpanel/internal/devhost"
	"srvpanel/internal/utils"

	"github.com/gin-gonic/gin"
)

const (
	envAddr          = "DEVHOST_ADDR"
	envBasicToken    = "DEVHOST_BASIC_TOKEN"
	envStopToken     = "DEVHOST_STOP_TOKEN"
	envRatePerMinute = "DEVHOST_RATE_PER_MINUTE"
	envAsleep        = "DEVHOST_ASLEEP"
	envLogFile       = "DEVHOST_LOG_FILE"
)

func envBool(key string) bool {
	val := os.Getenv(key)
	if val == "" {
		return false
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return false
	}
	return parsed
}

func envInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func envString(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func main() {
	addr := flag.String("addr", envString(envAddr, ":8080"), "Listen address")
	basicToken := flag.String("basic-token", os.Getenv(envBasicToken), "Token for start, wake and ip")
	stopToken := flag.String("stop-token", os.Getenv(envStopToken), "Token for stop")
	ratePerMinute := flag.Int("rate", envInt(envRatePerMinute, 120), "Requests per minute per client")
	asleep := flag.Bool("asleep", envBool(envAsleep), "Start powered off; /api/wake turns it on")
	logFile := flag.String("log-file", os.Getenv(envLogFile), "Log file (default: stdout)")
	flag.Parse()

	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}

	var logger *utils.Logger
	if *logFile != "" {
		logger = utils.NewLogger(*logFile)
	} else {
		logger = utils.NewWriterLogger(os.Stdout)
	}
	defer logger.Close()

	host, err := devhost.NewServer(devhost.Config{
		BasicToken:    *basicToken,
		StopToken:     *stopToken,
		RatePerMinute: *ratePerMinute,
		Asleep:        *asleep,
	}, logger)
	if err != nil {
		log.Fatalf("devhost: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	host.Run(ctx)

	srv := &http.Server{
		Addr:           *addr,
		Handler:        host.Router(),
		ReadTimeout:    10 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		log.Printf("Starting devhost on %s", *addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down devhost...")

	// Closing the hubs ends the websocket handlers so Shutdown can finish.
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}
	log.Println("Devhost exited")
}
