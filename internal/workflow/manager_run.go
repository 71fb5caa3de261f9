package workflow

import (
	"context"
	"errors"
	"time"

	"capstan/internal/logging"
)

// Start begins background processing for every registered lane.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("workflow already running")
	}
	if len(m.laneOrder) == 0 {
		m.mu.Unlock()
		return errors.New("workflow lanes not configured")
	}

	lanes := make([]*laneState, 0, len(m.laneOrder))
	for _, name := range m.laneOrder {
		lanes = append(lanes, m.lanes[name])
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.wg.Add(len(lanes))
	m.mu.Unlock()

	for _, lane := range lanes {
		if err := m.heartbeat.Start(lane.name); err != nil {
			lane.logger.Warn("failed to start lane heartbeat", logging.Error(err))
		}
		go m.runLane(runCtx, lane)
	}

	return nil
}

// Stop terminates background processing and waits for lanes to drain.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
	m.heartbeat.StopAll()
}

func (m *Manager) runLane(ctx context.Context, lane *laneState) {
	defer m.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if reclaimed, err := lane.queue.Sweep(m.cfg.ReclaimAfter()); err != nil {
			lane.logger.Warn("reclaim sweep failed; orphaned claims may remain",
				logging.Error(err),
			)
		} else if reclaimed > 0 {
			lane.logger.Info("reclaimed orphaned claims",
				logging.Int("count", reclaimed),
			)
		}

		item, err := lane.queue.Pop()
		if err != nil {
			m.handlePopError(ctx, lane, err)
			continue
		}
		if item == nil {
			m.waitForItemOrShutdown(ctx)
			continue
		}

		if err := m.processItem(ctx, lane, item); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
		}
	}
}

func (m *Manager) handlePopError(ctx context.Context, lane *laneState, err error) {
	m.setLastError(err)
	lane.logger.Error("failed to claim next queue item",
		logging.Error(err),
	)
	select {
	case <-ctx.Done():
	case <-time.After(m.retryInterval):
	}
}

func (m *Manager) waitForItemOrShutdown(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(m.pollInterval):
	}
}
