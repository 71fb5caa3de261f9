package taskmon

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Status is the lifecycle state of a tracked task.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Task is the in-process record for one unit of work. Tasks are never
// persisted; the tracker exists so a long-lived process can self-diagnose
// which unit is stuck.
type Task struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	Timeout    time.Duration
	Status     Status
	Metadata   map[string]any
	Result     any
	Error      string
}

// Elapsed returns how long the task has been (or was) running.
func (t *Task) Elapsed(now time.Time) time.Duration {
	if t.Status == StatusRunning {
		return now.Sub(t.StartedAt)
	}
	return t.FinishedAt.Sub(t.StartedAt)
}

// Summary counts tasks by state, with hanging called out separately.
type Summary struct {
	Running   int
	Completed int
	Failed    int
	Hanging   int
}

// Tracker records task starts and outcomes and flags tasks that have run
// past their timeout. Complements the cross-process heartbeat monitor for
// work that happens inside a single process.
type Tracker struct {
	defaultTimeout time.Duration
	now            func() time.Time

	mu    sync.Mutex
	tasks map[string]*Task
}

// TaskOption configures one tracked task.
type TaskOption func(*Task)

// WithTimeout overrides the tracker's default timeout for one task.
func WithTimeout(d time.Duration) TaskOption {
	return func(t *Task) {
		if d > 0 {
			t.Timeout = d
		}
	}
}

// New returns a tracker whose tasks hang after defaultTimeout unless
// overridden per task.
func New(defaultTimeout time.Duration) (*Tracker, error) {
	if defaultTimeout <= 0 {
		return nil, errors.New("task tracker requires a positive default timeout")
	}
	return &Tracker{
		defaultTimeout: defaultTimeout,
		now:            time.Now,
		tasks:          make(map[string]*Task),
	}, nil
}

// StartTask registers a running task. Restarting an id that is still running
// is a caller bug; restarting a finished id begins a fresh run.
func (tr *Tracker) StartTask(id string, metadata map[string]any, opts ...TaskOption) error {
	if id == "" {
		return errors.New("task id is required")
	}
	tr.mu.Lock()
	defer tr.mu.Unlock()

	if existing, ok := tr.tasks[id]; ok && existing.Status == StatusRunning {
		return fmt.Errorf("task %s is already running", id)
	}

	task := &Task{
		ID:        id,
		StartedAt: tr.now(),
		Timeout:   tr.defaultTimeout,
		Status:    StatusRunning,
		Metadata:  metadata,
	}
	for _, opt := range opts {
		opt(task)
	}
	tr.tasks[id] = task
	return nil
}

// CompleteTask marks a running task completed with its result.
func (tr *Tracker) CompleteTask(id string, result any) error {
	return tr.finish(id, StatusCompleted, result, "")
}

// FailTask marks a running task failed.
func (tr *Tracker) FailTask(id string, err error) error {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return tr.finish(id, StatusFailed, nil, msg)
}

func (tr *Tracker) finish(id string, status Status, result any, errMsg string) error {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	task, ok := tr.tasks[id]
	if !ok {
		return fmt.Errorf("unknown task %s", id)
	}
	if task.Status != StatusRunning {
		return fmt.Errorf("task %s already finished as %s", id, task.Status)
	}
	task.Status = status
	task.FinishedAt = tr.now()
	task.Result = result
	task.Error = errMsg
	return nil
}

// IsHanging reports whether the task is running and past its timeout.
// Unknown ids are not hanging.
func (tr *Tracker) IsHanging(id string) bool {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	task, ok := tr.tasks[id]
	if !ok {
		return false
	}
	return tr.hangingLocked(task)
}

// HangingTasks returns copies of every hanging task, oldest first.
func (tr *Tracker) HangingTasks() []Task {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	var hanging []Task
	for _, task := range tr.tasks {
		if tr.hangingLocked(task) {
			hanging = append(hanging, *task)
		}
	}
	sort.Slice(hanging, func(i, j int) bool { return hanging[i].StartedAt.Before(hanging[j].StartedAt) })
	return hanging
}

// Get returns a copy of the task record, if tracked.
func (tr *Tracker) Get(id string) (Task, bool) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	task, ok := tr.tasks[id]
	if !ok {
		return Task{}, false
	}
	return *task, true
}

// GetSummary counts tasks by status.
func (tr *Tracker) GetSummary() Summary {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	var summary Summary
	for _, task := range tr.tasks {
		switch task.Status {
		case StatusRunning:
			summary.Running++
			if tr.hangingLocked(task) {
				summary.Hanging++
			}
		case StatusCompleted:
			summary.Completed++
		case StatusFailed:
			summary.Failed++
		}
	}
	return summary
}

// ClearOld discards terminal tasks that finished more than age ago. Running
// tasks are never cleared. Returns the number removed.
func (tr *Tracker) ClearOld(age time.Duration) int {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	cutoff := tr.now().Add(-age)
	removed := 0
	for id, task := range tr.tasks {
		if task.Status == StatusRunning {
			continue
		}
		if task.FinishedAt.Before(cutoff) {
			delete(tr.tasks, id)
			removed++
		}
	}
	return removed
}

func (tr *Tracker) hangingLocked(task *Task) bool {
	return task.Status == StatusRunning && tr.now().Sub(task.StartedAt) > task.Timeout
}
