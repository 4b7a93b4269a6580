// Package config loads the panel settings from an optional JSON file and
// the environment.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"srvpanel/internal/credentials"
	"srvpanel/internal/utils"

	"github.com/go-playground/validator/v10"
)

const (
	EnvBaseURL           = "SRVPANEL_BASE_URL"
	EnvTimeoutSeconds    = "SRVPANEL_TIMEOUT_SECONDS"
	EnvCredentialBackend = "SRVPANEL_CREDENTIAL_BACKEND"
	EnvCredentialsFile   = "SRVPANEL_CREDENTIALS_FILE"
	EnvRedisAddr         = "SRVPANEL_REDIS_ADDR"
	EnvRedisPassword     = "SRVPANEL_REDIS_PASSWORD"
	EnvRedisDB           = "SRVPANEL_REDIS_DB"
	EnvLogFile           = "SRVPANEL_LOG_FILE"
	EnvMetricsAddr       = "SRVPANEL_METRICS_ADDR"
)

const (
	BackendFile   = "file"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

const (
	defaultBaseURL        = "http://localhost:8080"
	defaultTimeoutSeconds = 5
)

var validate = validator.New()

type Config struct {
	BaseURL           string `json:"base_url" validate:"required,url"`
	TimeoutSeconds    int    `json:"timeout_seconds" validate:"gte=1,lte=300"`
	CredentialBackend string `json:"credential_backend" validate:"oneof=file redis memory"`
	CredentialsFile   string `json:"credentials_file"`
	RedisAddr         string `json:"redis_addr" validate:"required_if=CredentialBackend redis"`
	RedisPassword     string `json:"redis_password"`
	RedisDB           int    `json:"redis_db" validate:"gte=0"`
	LogFile           string `json:"log_file"`
	MetricsAddr       string `json:"metrics_addr" validate:"omitempty,hostname_port"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		BaseURL:           defaultBaseURL,
		TimeoutSeconds:    defaultTimeoutSeconds,
		CredentialBackend: BackendFile,
	}
}

// Timeout is the per-request action timeout.
func (c Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Validate checks the struct tags.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Load reads path (a missing file is fine), applies environment overrides
// and fills defaults. The result is not validated; flags may still change
// it.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		path = utils.DefaultPaths().ConfigFile()
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return cfg, fmt.Errorf("read %s: %w", path, err)
	}

	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	if cfg.TimeoutSeconds == 0 {
		cfg.TimeoutSeconds = defaultTimeoutSeconds
	}
	if cfg.CredentialBackend == "" {
		cfg.CredentialBackend = BackendFile
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	envString(EnvBaseURL, &cfg.BaseURL)
	envString(EnvCredentialBackend, &cfg.CredentialBackend)
	envString(EnvCredentialsFile, &cfg.CredentialsFile)
	envString(EnvRedisAddr, &cfg.RedisAddr)
	envString(EnvRedisPassword, &cfg.RedisPassword)
	envString(EnvLogFile, &cfg.LogFile)
	envString(EnvMetricsAddr, &cfg.MetricsAddr)
	if err := envInt(EnvTimeoutSeconds, &cfg.TimeoutSeconds); err != nil {
		return err
	}
	return envInt(EnvRedisDB, &cfg.RedisDB)
}

func envString(key string, dst *string) {
	if val, ok := os.LookupEnv(key); ok && strings.TrimSpace(val) != "" {
		*dst = strings.TrimSpace(val)
	}
}

func envInt(key string, dst *int) error {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return nil
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = parsed
	return nil
}

// NewStore opens the configured credential backend.
func NewStore(cfg Config, logger *utils.Logger) (credentials.Store, error) {
	switch cfg.CredentialBackend {
	case BackendMemory:
		return credentials.NewMemoryStore(), nil
	case BackendRedis:
		client := credentials.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		return credentials.NewRedisStore(client, "", logger), nil
	case BackendFile, "":
		path := cfg.CredentialsFile
		if path == "" {
			path = utils.DefaultPaths().CredentialsFile()
		}
		store := credentials.NewFileStore(path)
		if err := store.Load(); err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown credential backend %q", cfg.CredentialBackend)
	}
}
