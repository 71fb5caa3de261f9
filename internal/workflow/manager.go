package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"capstan/internal/breaker"
	"capstan/internal/config"
	"capstan/internal/heartbeat"
	"capstan/internal/history"
	"capstan/internal/logging"
	"capstan/internal/queue"
	"capstan/internal/taskmon"
)

// HandlerFunc processes one claimed item. Returning nil routes the item to
// the completed archive; returning a Result additionally forwards a payload
// to a downstream queue.
type HandlerFunc func(ctx context.Context, item *queue.Item) (*Result, error)

// Result describes where a processed item's work goes next.
type Result struct {
	// NextQueue, when non-empty, names the queue that receives Payload.
	NextQueue string
	// Payload is the body pushed downstream. A nil payload forwards the
	// item's original payload.
	Payload map[string]any
}

// Manager coordinates queue consumption across registered lanes.
type Manager struct {
	cfg       *config.Config
	logger    *slog.Logger
	archive   *history.Store
	heartbeat *heartbeat.Monitor
	tracker   *taskmon.Tracker

	pollInterval  time.Duration
	retryInterval time.Duration

	lanes     map[string]*laneState
	laneOrder []string

	mu      sync.RWMutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	lastErr error
}

type laneState struct {
	name     string
	queue    *queue.Queue
	handler  HandlerFunc
	executor *breaker.Executor
	logger   *slog.Logger
}

// NewManager constructs a workflow manager. The archive may be nil when
// outcome history is not wanted.
func NewManager(cfg *config.Config, logger *slog.Logger, archive *history.Store) (*Manager, error) {
	if cfg == nil {
		return nil, fmt.Errorf("workflow manager requires configuration")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	monitor, err := heartbeat.New(
		cfg.HeartbeatDir(),
		cfg.HeartbeatInterval(),
		cfg.HeartbeatTimeout(),
		heartbeat.WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("initialize heartbeat monitor: %w", err)
	}
	tracker, err := taskmon.New(time.Duration(cfg.Monitor.TaskTimeoutSeconds) * time.Second)
	if err != nil {
		return nil, fmt.Errorf("initialize task tracker: %w", err)
	}
	return &Manager{
		cfg:           cfg,
		logger:        logger,
		archive:       archive,
		heartbeat:     monitor,
		tracker:       tracker,
		pollInterval:  time.Duration(cfg.Workflow.QueuePollInterval) * time.Second,
		retryInterval: time.Duration(cfg.Workflow.ErrorRetryInterval) * time.Second,
		lanes:         make(map[string]*laneState),
	}, nil
}

// Register adds a consumer lane for the named queue. Lanes must be
// registered before Start.
func (m *Manager) Register(queueName string, handler HandlerFunc) error {
	if handler == nil {
		return fmt.Errorf("lane %s requires a handler", queueName)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return fmt.Errorf("cannot register lane %s while running", queueName)
	}
	if _, exists := m.lanes[queueName]; exists {
		return fmt.Errorf("lane %s already registered", queueName)
	}

	q, err := queue.Open(
		m.cfg.QueuesDir(),
		queueName,
		queue.WithMinFreeBytes(m.cfg.MinFreeBytes()),
		queue.WithLogger(m.logger),
	)
	if err != nil {
		return fmt.Errorf("open queue for lane %s: %w", queueName, err)
	}

	m.lanes[queueName] = &laneState{
		name:     queueName,
		queue:    q,
		handler:  handler,
		executor: m.newExecutor(),
		logger: m.logger.With(
			logging.String(logging.FieldComponent, "workflow"),
			logging.String(logging.FieldQueue, queueName),
		),
	}
	m.laneOrder = append(m.laneOrder, queueName)
	return nil
}

func (m *Manager) newExecutor() *breaker.Executor {
	policy := m.cfg.Breaker
	b := breaker.New(policy.FailureThreshold, time.Duration(policy.CooldownSeconds)*time.Second)
	return breaker.NewExecutor(
		b,
		breaker.WithMaxAttempts(policy.MaxAttempts),
		breaker.WithBaseDelay(time.Duration(policy.BaseDelayMS)*time.Millisecond),
		breaker.WithCallTimeout(time.Duration(policy.CallTimeoutSeconds)*time.Second),
	)
}

// LastError returns the most recent lane error, if any.
func (m *Manager) LastError() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastErr
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}
