package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DataDir string `toml:"data_dir" env:"CAPSTAN_DATA_DIR"`
	LogDir  string `toml:"log_dir" env:"CAPSTAN_LOG_DIR"`
}

// Queue contains durable queue storage settings.
type Queue struct {
	// MinFreeMB is the free-space floor below which pushes are rejected.
	MinFreeMB int64 `toml:"min_free_mb"`
	// ReclaimAfterSeconds is the claim age after which a sweep returns
	// claimed items to pending.
	ReclaimAfterSeconds int `toml:"reclaim_after_seconds"`
}

// Heartbeat contains worker liveness settings.
type Heartbeat struct {
	IntervalSeconds int `toml:"interval_seconds"`
	TimeoutSeconds  int `toml:"timeout_seconds"`
}

// Monitor contains in-process stall detection settings.
type Monitor struct {
	TaskTimeoutSeconds int `toml:"task_timeout_seconds"`
	RetentionMinutes   int `toml:"retention_minutes"`
}

// Breaker contains retry and circuit-breaker policy settings.
type Breaker struct {
	FailureThreshold   int `toml:"failure_threshold"`
	CooldownSeconds    int `toml:"cooldown_seconds"`
	MaxAttempts        int `toml:"max_attempts"`
	BaseDelayMS        int `toml:"base_delay_ms"`
	CallTimeoutSeconds int `toml:"call_timeout_seconds"`
}

// Workflow contains daemon timing and intervals.
type Workflow struct {
	QueuePollInterval  int `toml:"queue_poll_interval"`
	ErrorRetryInterval int `toml:"error_retry_interval"`
	SweepInterval      int `toml:"sweep_interval"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format" env:"CAPSTAN_LOG_FORMAT"`
	Level  string `toml:"level" env:"CAPSTAN_LOG_LEVEL"`
}

// Config encapsulates all configuration values for capstan.
//
// Configuration sections by subsystem:
//   - Paths: data and log directories
//   - Queue: durable queue free-space floor and reclaim timeout
//   - Heartbeat: worker liveness interval and timeout
//   - Monitor: in-process stall detection
//   - Breaker: retry and circuit-breaker policy
//   - Workflow: polling intervals for consumers and the supervisor
//   - Logging: log format and level
type Config struct {
	Paths     Paths     `toml:"paths"`
	Queue     Queue     `toml:"queue"`
	Heartbeat Heartbeat `toml:"heartbeat"`
	Monitor   Monitor   `toml:"monitor"`
	Breaker   Breaker   `toml:"breaker"`
	Workflow  Workflow  `toml:"workflow"`
	Logging   Logging   `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return ExpandPath("~/.config/capstan/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized. Environment variables
// override file values for the tagged fields.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return nil, "", false, fmt.Errorf("apply environment overrides: %w", err)
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := ExpandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("capstan.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.QueuesDir(), c.HeartbeatDir(), c.CheckpointDir(), c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// QueuesDir returns the directory that holds one subdirectory per named queue.
func (c *Config) QueuesDir() string {
	return filepath.Join(c.Paths.DataDir, "queues")
}

// HeartbeatDir returns the directory that holds one heartbeat file per worker.
func (c *Config) HeartbeatDir() string {
	return filepath.Join(c.Paths.DataDir, "heartbeats")
}

// CheckpointDir returns the directory that holds per-job checkpoint documents.
func (c *Config) CheckpointDir() string {
	return filepath.Join(c.Paths.DataDir, "checkpoints")
}

// HistoryPath returns the path to the outcome history database.
func (c *Config) HistoryPath() string {
	return filepath.Join(c.Paths.DataDir, "history.db")
}

// LockPath returns the daemon lock file path.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.LogDir, "capstand.lock")
}

// MinFreeBytes returns the push free-space floor in bytes.
func (c *Config) MinFreeBytes() uint64 {
	if c.Queue.MinFreeMB <= 0 {
		return 0
	}
	return uint64(c.Queue.MinFreeMB) * 1024 * 1024
}

// ReclaimAfter returns the claim age after which claimed items are requeued.
func (c *Config) ReclaimAfter() time.Duration {
	return time.Duration(c.Queue.ReclaimAfterSeconds) * time.Second
}

// HeartbeatInterval returns the heartbeat write cadence.
func (c *Config) HeartbeatInterval() time.Duration {
	return time.Duration(c.Heartbeat.IntervalSeconds) * time.Second
}

// HeartbeatTimeout returns the age beyond which a heartbeat is considered dead.
func (c *Config) HeartbeatTimeout() time.Duration {
	return time.Duration(c.Heartbeat.TimeoutSeconds) * time.Second
}

// ExpandPath resolves a leading "~" against the current user's home
// directory and returns an absolute path.
func ExpandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// SampleConfig returns the embedded sample configuration file contents.
func SampleConfig() string {
	return sampleConfig
}

// WriteSampleConfig writes the sample config to path, refusing to overwrite.
func WriteSampleConfig(path string) error {
	expanded, err := ExpandPath(path)
	if err != nil {
		return err
	}
	if _, err := os.Stat(expanded); err == nil {
		return fmt.Errorf("config file already exists at %s", expanded)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("stat config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(expanded), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	return os.WriteFile(expanded, []byte(sampleConfig), 0o644)
}
