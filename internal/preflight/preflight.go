package preflight

import (
	"context"

	"capstan/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes every startup check for the given config. The daemon
// refuses to start when any result fails; the CLI renders them for
// operators.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Data directory", cfg.Paths.DataDir),
		CheckDirectoryAccess("Queue directory", cfg.QueuesDir()),
		CheckDirectoryAccess("Heartbeat directory", cfg.HeartbeatDir()),
		CheckDirectoryAccess("Checkpoint directory", cfg.CheckpointDir()),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
		CheckFreeSpace("Free disk space", cfg.Paths.DataDir, cfg.MinFreeBytes()),
	}
	return results
}

// AllPassed reports whether every result succeeded.
func AllPassed(results []Result) bool {
	for _, result := range results {
		if !result.Passed {
			return false
		}
	}
	return true
}
