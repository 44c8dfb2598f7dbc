package config

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/sethvargo/go-envconfig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadRuntimeFromEnv(t *testing.T) {
	t.Run("defaults from real lookuper", func(t *testing.T) {
		originalEnvProcess := envProcess
		defer func() { envProcess = originalEnvProcess }()

		envProcess = func(ctx context.Context, v any, mus ...envconfig.Mutator) error {
			return envconfig.ProcessWith(ctx, &envconfig.Config{
				Target:   v,
				Lookuper: envconfig.MapLookuper(map[string]string{"WORKER_COUNT": "3", "LOG_FORMAT": "json"}),
			})
		}

		rt, err := LoadRuntimeFromEnv(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 3, rt.WorkerCount)
		assert.Equal(t, 500*time.Millisecond, rt.PollInterval)
		assert.Equal(t, time.Second, rt.MaxPollInterval)
		assert.Equal(t, 5*time.Minute, rt.LeaseTimeout)
		assert.Equal(t, 30*time.Second, rt.ReapInterval)
		assert.Equal(t, time.Hour, rt.MaxBackoff)
		assert.Equal(t, "exponential", rt.BackoffStrategy)
		assert.Equal(t, time.Duration(0), rt.ExecTimeout)
		assert.Equal(t, ":8080", rt.HTTPAddr)
		assert.Equal(t, "json", rt.LogFormat)
	})

	t.Run("env processing error", func(t *testing.T) {
		originalEnvProcess := envProcess
		defer func() { envProcess = originalEnvProcess }()

		envProcess = func(ctx context.Context, v any, mus ...envconfig.Mutator) error {
			return errors.New("env: POLL_INTERVAL: invalid duration")
		}

		_, err := LoadRuntimeFromEnv(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to process env config")
	})
}

func TestValidateRuntime(t *testing.T) {
	valid := func() *Runtime {
		return &Runtime{
			WorkerCount:     1,
			PollInterval:    time.Second,
			MaxPollInterval: 5 * time.Second,
			LeaseTimeout:    time.Minute,
			ReapInterval:    time.Second,
			MaxBackoff:      time.Hour,
			LogFormat:       "text",
		}
	}

	assert.NoError(t, validateRuntime(valid()))

	bad := valid()
	bad.WorkerCount = 0
	bad.MaxPollInterval = time.Millisecond
	bad.LogFormat = "xml"
	bad.BackoffStrategy = "fibonacci"

	err := validateRuntime(bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "WORKER_COUNT must be at least 1")
	assert.Contains(t, err.Error(), "MAX_POLL_INTERVAL must not be below POLL_INTERVAL")
	assert.Contains(t, err.Error(), "LOG_FORMAT must be text or json")
	assert.Contains(t, err.Error(), "BACKOFF_STRATEGY must be exponential, linear or constant")

	linear := valid()
	linear.BackoffStrategy = "linear"
	assert.NoError(t, validateRuntime(linear))
}

func TestParseSlogLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseSlogLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseSlogLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseSlogLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseSlogLevel(""))
}
