package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"capstan/internal/config"
	"capstan/internal/logging"
	"capstan/internal/taskmon"
	"capstan/internal/workflow"
)

// Daemon supervises the workflow manager and enforces single-instance
// execution. Beyond running lanes it periodically sweeps every queue for
// orphaned claims and checks worker heartbeats, flagging dead agents in the
// structured log.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	workflow *workflow.Manager

	lockPath string
	lock     *flock.Flock

	sweepInterval time.Duration

	running atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	Processing   bool
	Lanes        []workflow.LaneStatus
	Tasks        taskmon.Summary
	LockFilePath string
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, logger *slog.Logger, wf *workflow.Manager) (*Daemon, error) {
	if cfg == nil || wf == nil {
		return nil, errors.New("daemon requires config and workflow manager")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	lockPath := cfg.LockPath()
	return &Daemon{
		cfg:           cfg,
		logger:        logging.NewComponentLogger(logger, "daemon"),
		workflow:      wf,
		lockPath:      lockPath,
		lock:          flock.New(lockPath),
		sweepInterval: time.Duration(cfg.Workflow.SweepInterval) * time.Second,
	}, nil
}

// Start acquires the daemon lock and launches the workflow manager plus the
// supervisor loop.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another capstan daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	if d.workflow.LaneCount() > 0 {
		if err := d.workflow.Start(runCtx); err != nil {
			_ = d.lock.Unlock()
			cancel()
			return fmt.Errorf("start workflow: %w", err)
		}
	} else {
		// Housekeeping-only mode: sweep queues and watch heartbeats for
		// consumers running in other processes.
		d.logger.Info("no lanes registered; supervising external consumers")
	}
	d.cancel = cancel

	d.wg.Add(1)
	go d.supervise(runCtx)

	d.running.Store(true)
	d.logger.Info("capstan daemon started", logging.String("lock", d.lockPath))
	return nil
}

// Stop stops background processing and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.workflow.Stop()
	d.wg.Wait()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("capstan daemon stopped")
}

// Status returns the current daemon status. Processing reports whether
// consumer lanes are running; in housekeeping-only mode it stays false.
func (d *Daemon) Status() Status {
	return Status{
		Running:      d.running.Load(),
		Processing:   d.workflow.Running(),
		Lanes:        d.workflow.Status(),
		Tasks:        d.workflow.Tasks(),
		LockFilePath: d.lockPath,
	}
}

// LockFilePath returns the single-instance lock location.
func (d *Daemon) LockFilePath() string {
	return d.lockPath
}
