package config

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joshu-sajeev/queuectl/internal/backoff"
	"github.com/sethvargo/go-envconfig"
)

// Runtime holds process settings for workers and the HTTP surface.
type Runtime struct {
	WorkerCount     int           `env:"WORKER_COUNT,default=1"`
	PollInterval    time.Duration `env:"POLL_INTERVAL,default=500ms"`
	MaxPollInterval time.Duration `env:"MAX_POLL_INTERVAL,default=1s"`
	LeaseTimeout    time.Duration `env:"LEASE_TIMEOUT,default=5m"`
	ReapInterval    time.Duration `env:"REAP_INTERVAL,default=30s"`
	MaxBackoff      time.Duration `env:"MAX_BACKOFF,default=1h"`
	BackoffStrategy string        `env:"BACKOFF_STRATEGY,default=exponential"`
	ExecTimeout     time.Duration `env:"EXEC_TIMEOUT,default=0s"`
	HTTPAddr        string        `env:"HTTP_ADDR,default=:8080"`
	LogLevel        string        `env:"LOG_LEVEL,default=info"`
	LogFormat       string        `env:"LOG_FORMAT,default=text"`
}

// to help with testing
var envProcess = envconfig.Process

func LoadRuntimeFromEnv(ctx context.Context) (*Runtime, error) {
	var cfg Runtime
	if err := envProcess(ctx, &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env config: %w", err)
	}

	if err := validateRuntime(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

func validateRuntime(cfg *Runtime) error {
	var errors []string

	if cfg.WorkerCount < 1 {
		errors = append(errors, "WORKER_COUNT must be at least 1")
	}
	if cfg.PollInterval <= 0 {
		errors = append(errors, "POLL_INTERVAL must be positive")
	}
	if cfg.MaxPollInterval < cfg.PollInterval {
		errors = append(errors, "MAX_POLL_INTERVAL must not be below POLL_INTERVAL")
	}
	if cfg.LeaseTimeout <= 0 {
		errors = append(errors, "LEASE_TIMEOUT must be positive")
	}
	if cfg.ReapInterval <= 0 {
		errors = append(errors, "REAP_INTERVAL must be positive")
	}
	if cfg.MaxBackoff < 0 {
		errors = append(errors, "MAX_BACKOFF must be non-negative")
	}
	if _, err := backoff.New(cfg.BackoffStrategy, cfg.MaxBackoff); err != nil {
		errors = append(errors, "BACKOFF_STRATEGY must be exponential, linear or constant")
	}
	if cfg.ExecTimeout < 0 {
		errors = append(errors, "EXEC_TIMEOUT must be non-negative")
	}

	switch strings.ToLower(cfg.LogFormat) {
	case "text", "json":
	default:
		errors = append(errors, "LOG_FORMAT must be text or json")
	}

	if len(errors) > 0 {
		return fmt.Errorf("%s", strings.Join(errors, "; "))
	}
	return nil
}

// ParseSlogLevel converts LOG_LEVEL into a slog level, defaulting to info.
func ParseSlogLevel(levelStr string) slog.Level {
	switch strings.ToLower(levelStr) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
