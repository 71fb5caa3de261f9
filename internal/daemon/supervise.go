package daemon

import (
	"context"
	"time"

	"capstan/internal/logging"
	"capstan/internal/queue"
)

// supervise runs the periodic housekeeping loop: sweep every queue on disk
// for orphaned claims and check every heartbeat on record.
func (d *Daemon) supervise(ctx context.Context) {
	defer d.wg.Done()

	ticker := time.NewTicker(d.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.sweepQueues()
			d.checkHeartbeats()
			d.checkHangingTasks()
			d.workflow.ClearFinishedTasks(time.Duration(d.cfg.Monitor.RetentionMinutes) * time.Minute)
		}
	}
}

// sweepQueues reclaims orphaned claims across all queues on disk, not just
// the lanes this process consumes. A queue fed by a crashed external
// producer still gets its claims returned.
func (d *Daemon) sweepQueues() {
	names, err := queue.ListNames(d.cfg.QueuesDir())
	if err != nil {
		d.logger.Warn("failed to list queues for sweep", logging.Error(err))
		return
	}
	for _, name := range names {
		q, err := queue.Open(d.cfg.QueuesDir(), name, queue.WithLogger(d.logger))
		if err != nil {
			d.logger.Warn("failed to open queue for sweep",
				logging.String(logging.FieldQueue, name),
				logging.Error(err),
			)
			continue
		}
		reclaimed, err := q.Sweep(d.cfg.ReclaimAfter())
		if err != nil {
			d.logger.Warn("queue sweep failed",
				logging.String(logging.FieldQueue, name),
				logging.Error(err),
			)
			continue
		}
		if reclaimed > 0 {
			d.logger.Info("sweep reclaimed orphaned claims",
				logging.String(logging.FieldQueue, name),
				logging.Int("count", reclaimed),
			)
		}
	}
}

// checkHangingTasks flags items that exceeded their stall timeout without
// finishing. They keep running; the log line is the signal.
func (d *Daemon) checkHangingTasks() {
	for _, task := range d.workflow.HangingTasks() {
		d.logger.Warn("task exceeded stall timeout",
			logging.String(logging.FieldItemID, task.ID),
			logging.Duration("elapsed", task.Elapsed(time.Now())),
			logging.Alert("task_hanging"),
		)
	}
}

func (d *Daemon) checkHeartbeats() {
	monitor := d.workflow.Heartbeats()
	identities, err := monitor.List()
	if err != nil {
		d.logger.Warn("failed to list heartbeats", logging.Error(err))
		return
	}
	for identity, status := range monitor.CheckAll(identities) {
		if status.Alive() {
			continue
		}
		d.logger.Warn("worker heartbeat lost",
			logging.String(logging.FieldWorker, identity),
			logging.String("reason", string(status.Reason)),
			logging.Duration("age", status.Age),
			logging.Alert("worker_dead"),
		)
	}
}
