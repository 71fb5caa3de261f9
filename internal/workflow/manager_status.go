package workflow

import (
	"time"

	"capstan/internal/breaker"
	"capstan/internal/heartbeat"
	"capstan/internal/queue"
	"capstan/internal/taskmon"
)

// LaneStatus is a point-in-time snapshot of one lane.
type LaneStatus struct {
	Queue     string
	Stats     queue.Stats
	Breaker   breaker.Stats
	Heartbeat heartbeat.Status
}

// Status reports every registered lane in registration order. Queue stat
// errors are swallowed per lane so one unreadable directory does not hide
// the rest.
func (m *Manager) Status() []LaneStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()

	statuses := make([]LaneStatus, 0, len(m.laneOrder))
	for _, name := range m.laneOrder {
		lane := m.lanes[name]
		status := LaneStatus{
			Queue:     name,
			Breaker:   lane.executor.Breaker().Stats(),
			Heartbeat: m.heartbeat.Check(name),
		}
		if stats, err := lane.queue.Stats(); err == nil {
			status.Stats = stats
		}
		statuses = append(statuses, status)
	}
	return statuses
}

// Tasks summarizes in-process item tracking: running, finished, and hanging
// counts across all lanes.
func (m *Manager) Tasks() taskmon.Summary {
	return m.tracker.GetSummary()
}

// HangingTasks returns items that have exceeded their stall timeout.
func (m *Manager) HangingTasks() []taskmon.Task {
	return m.tracker.HangingTasks()
}

// ClearFinishedTasks drops finished task records older than age and returns
// the number removed.
func (m *Manager) ClearFinishedTasks(age time.Duration) int {
	return m.tracker.ClearOld(age)
}

// LaneCount returns the number of registered lanes.
func (m *Manager) LaneCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.laneOrder)
}

// Running reports whether lanes are currently processing.
func (m *Manager) Running() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.running
}

// Heartbeats exposes the lane heartbeat monitor for supervisors.
func (m *Manager) Heartbeats() *heartbeat.Monitor {
	return m.heartbeat
}
