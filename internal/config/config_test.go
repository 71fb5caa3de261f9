package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"capstan/internal/config"
)

func TestDefaultValidates(t *testing.T) {
	cfg := config.Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if exists {
		t.Fatal("expected exists=false for missing file")
	}
	if resolved != path {
		t.Fatalf("resolved path mismatch: got %q, want %q", resolved, path)
	}
	if cfg.Queue.MinFreeMB != 500 {
		t.Fatalf("expected default min_free_mb, got %d", cfg.Queue.MinFreeMB)
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := strings.Join([]string{
		"[paths]",
		`data_dir = "` + filepath.Join(dir, "data") + `"`,
		`log_dir = "` + filepath.Join(dir, "logs") + `"`,
		"[queue]",
		"reclaim_after_seconds = 120",
		"[heartbeat]",
		"interval_seconds = 2",
		"timeout_seconds = 7",
	}, "\n")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !exists {
		t.Fatal("expected exists=true")
	}
	if cfg.Queue.ReclaimAfterSeconds != 120 {
		t.Fatalf("reclaim_after_seconds: got %d", cfg.Queue.ReclaimAfterSeconds)
	}
	if got := cfg.HeartbeatTimeout().Seconds(); got != 7 {
		t.Fatalf("heartbeat timeout: got %vs", got)
	}
	if cfg.QueuesDir() != filepath.Join(dir, "data", "queues") {
		t.Fatalf("unexpected queues dir %q", cfg.QueuesDir())
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := "[heartbeat]\ninterval_seconds = 10\ntimeout_seconds = 5\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, _, _, err := config.Load(path); err == nil {
		t.Fatal("expected validation error for timeout <= interval")
	}
}

func TestEnvironmentOverride(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("CAPSTAN_DATA_DIR", filepath.Join(dir, "envdata"))
	t.Setenv("CAPSTAN_LOG_LEVEL", "debug")

	cfg, _, _, err := config.Load(filepath.Join(dir, "missing.toml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Paths.DataDir != filepath.Join(dir, "envdata") {
		t.Fatalf("env override not applied: %q", cfg.Paths.DataDir)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("log level override not applied: %q", cfg.Logging.Level)
	}
}

func TestEnsureDirectories(t *testing.T) {
	cfg := config.Default()
	base := t.TempDir()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.QueuesDir(), cfg.HeartbeatDir(), cfg.CheckpointDir(), cfg.Paths.LogDir} {
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			t.Fatalf("expected directory %q: %v", dir, err)
		}
	}
}

func TestWriteSampleConfigRefusesOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := config.WriteSampleConfig(path); err != nil {
		t.Fatalf("first write failed: %v", err)
	}
	if err := config.WriteSampleConfig(path); err == nil {
		t.Fatal("expected error on overwrite")
	}
}
