package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"capstan/internal/breaker"
	"capstan/internal/history"
	"capstan/internal/logging"
	"capstan/internal/queue"
)

func (m *Manager) processItem(ctx context.Context, lane *laneState, item *queue.Item) error {
	start := time.Now()
	itemLogger := lane.logger.With(logging.String(logging.FieldItemID, item.ID))
	itemLogger.Info("item claimed")

	if trackErr := m.tracker.StartTask(item.ID, map[string]any{"queue": lane.name}); trackErr != nil {
		itemLogger.Warn("failed to track item task", logging.Error(trackErr))
	}

	result, err := lane.executor.Execute(ctx, func(callCtx context.Context) (any, error) {
		return lane.handler(callCtx, item)
	})
	if err != nil {
		_ = m.tracker.FailTask(item.ID, err)
		return m.handleItemFailure(ctx, lane, itemLogger, item, start, err)
	}

	if routed, ok := result.(*Result); ok && routed != nil && routed.NextQueue != "" {
		if err := m.forward(lane, item, routed); err != nil {
			_ = m.tracker.FailTask(item.ID, err)
			return m.handleItemFailure(ctx, lane, itemLogger, item, start, err)
		}
	}
	_ = m.tracker.CompleteTask(item.ID, nil)

	if err := lane.queue.Ack(item); err != nil {
		m.setLastError(err)
		itemLogger.Error("failed to acknowledge item", logging.Error(err))
		return err
	}

	m.recordOutcome(ctx, lane, item, history.OutcomeCompleted, "", time.Since(start))
	itemLogger.Info("item completed",
		logging.Duration("duration", time.Since(start)),
	)
	return nil
}

// handleItemFailure leaves the item in claimed so the reclaim sweep returns
// it to pending after the claim ages out. Requeueing immediately would spin
// a poison item through the lane at poll speed.
func (m *Manager) handleItemFailure(ctx context.Context, lane *laneState, itemLogger *slog.Logger, item *queue.Item, start time.Time, err error) error {
	if errors.Is(err, context.Canceled) {
		itemLogger.Debug("item interrupted by shutdown; claim left for reclaim sweep")
		return err
	}
	m.setLastError(err)

	if errors.Is(err, breaker.ErrCircuitOpen) {
		itemLogger.Debug("circuit open; deferring item to reclaim sweep")
		m.waitForItemOrShutdown(ctx)
		return err
	}

	itemLogger.Error("item processing failed",
		logging.Error(err),
		logging.Alert("item_failed"),
	)
	m.recordOutcome(ctx, lane, item, history.OutcomeFailed, err.Error(), time.Since(start))
	return err
}

func (m *Manager) forward(lane *laneState, item *queue.Item, routed *Result) error {
	next, err := queue.Open(
		m.cfg.QueuesDir(),
		routed.NextQueue,
		queue.WithMinFreeBytes(m.cfg.MinFreeBytes()),
		queue.WithLogger(m.logger),
	)
	if err != nil {
		return fmt.Errorf("open downstream queue %s: %w", routed.NextQueue, err)
	}
	payload := routed.Payload
	if payload == nil {
		payload = item.Payload
	}
	if _, err := next.Push(payload); err != nil {
		return fmt.Errorf("forward to queue %s: %w", routed.NextQueue, err)
	}
	return nil
}

func (m *Manager) recordOutcome(ctx context.Context, lane *laneState, item *queue.Item, outcome history.Outcome, errMsg string, elapsed time.Duration) {
	if m.archive == nil {
		return
	}
	entry := history.Entry{
		Queue:    lane.name,
		ItemID:   item.ID,
		Outcome:  outcome,
		Error:    errMsg,
		Duration: elapsed,
	}
	if err := m.archive.Record(ctx, entry); err != nil {
		lane.logger.Warn("failed to archive item outcome", logging.Error(err))
	}
}
