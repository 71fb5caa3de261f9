package testsupport

import (
	"path/filepath"
	"testing"

	"capstan/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test,
// with intervals shortened so polling tests finish quickly.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = base
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Workflow.QueuePollInterval = 1
	cfg.Workflow.ErrorRetryInterval = 1
	cfg.Workflow.SweepInterval = 1

	for _, opt := range opts {
		opt(&cfg)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return &cfg
}

// WithHeartbeat overrides the heartbeat interval and timeout in seconds.
func WithHeartbeat(interval, timeout int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Heartbeat.IntervalSeconds = interval
		cfg.Heartbeat.TimeoutSeconds = timeout
	}
}

// WithBreaker overrides the failure threshold and max attempts.
func WithBreaker(threshold, maxAttempts int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Breaker.FailureThreshold = threshold
		cfg.Breaker.MaxAttempts = maxAttempts
		cfg.Breaker.BaseDelayMS = 1
	}
}
