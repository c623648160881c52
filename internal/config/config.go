// Package config loads runtime configuration from a YAML file with
// environment overrides. A .env file in the working directory is applied
// first, so local development settings need no shell exports.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultServerURL is a placeholder; real deployments set their own.
const DefaultServerURL = "ws://localhost:8765/ws"

// Config is the client runtime configuration.
type Config struct {
	// ServerURL is the assistant endpoint. PRSNL_SERVER_URL overrides it.
	ServerURL string `yaml:"server_url"`
	// Transport selects the variant: "stream" (default) or "loop".
	Transport string `yaml:"transport"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`

	Reconnect Reconnect `yaml:"reconnect"`
	// PingInterval is the keep-alive period.
	PingInterval time.Duration `yaml:"ping_interval"`
}

// Reconnect holds the backoff policy.
type Reconnect struct {
	InitialBackoff time.Duration `yaml:"initial_backoff"`
	MaxBackoff     time.Duration `yaml:"max_backoff"`
	MaxAttempts    int           `yaml:"max_attempts"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		ServerURL: DefaultServerURL,
		Transport: "stream",
		LogLevel:  "info",
		Reconnect: Reconnect{
			InitialBackoff: time.Second,
			MaxBackoff:     30 * time.Second,
			MaxAttempts:    5,
		},
		PingInterval: 30 * time.Second,
	}
}

// Load reads path (when non-empty and present) over the defaults, then
// applies environment overrides.
func Load(path string) (Config, error) {
	// Missing .env is fine; it is a development convenience.
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return Config{}, fmt.Errorf("failed to read config: %w", err)
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	applyEnv(&cfg)
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("PRSNL_SERVER_URL"); v != "" {
		cfg.ServerURL = v
	}
	if v := os.Getenv("PRSNL_TRANSPORT"); v != "" {
		cfg.Transport = v
	}
	if v := os.Getenv("PRSNL_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("PRSNL_RECONNECT_MAX_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Reconnect.MaxAttempts = n
		}
	}
	if v := os.Getenv("PRSNL_RECONNECT_INITIAL_BACKOFF"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Reconnect.InitialBackoff = d
		}
	}
	if v := os.Getenv("PRSNL_RECONNECT_MAX_BACKOFF"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Reconnect.MaxBackoff = d
		}
	}
	if v := os.Getenv("PRSNL_PING_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.PingInterval = d
		}
	}
}

func (c Config) validate() error {
	switch c.Transport {
	case "stream", "loop":
	default:
		return fmt.Errorf("unknown transport %q (want stream or loop)", c.Transport)
	}
	if c.Reconnect.MaxAttempts < 1 {
		return fmt.Errorf("reconnect.max_attempts must be at least 1, got %d", c.Reconnect.MaxAttempts)
	}
	return nil
}
