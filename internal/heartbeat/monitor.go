package heartbeat

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"capstan/internal/logging"
)

// State is the liveness verdict for one identity.
type State string

const (
	StateAlive State = "alive"
	StateDead  State = "dead"
)

// Reason explains a dead verdict.
type Reason string

const (
	ReasonTimeout    Reason = "timeout"
	ReasonNoFile     Reason = "no_heartbeat_file"
	ReasonUnreadable Reason = "unreadable"
)

// Record is the persisted heartbeat shape, overwritten on every tick.
type Record struct {
	Agent     string    `json:"agent"`
	Timestamp time.Time `json:"timestamp"`
	PID       int       `json:"pid"`
}

// Status is the result of checking one identity.
type Status struct {
	State  State
	Age    time.Duration
	Reason Reason
}

// Alive reports whether the verdict is alive.
func (s Status) Alive() bool {
	return s.State == StateAlive
}

// Monitor writes and inspects per-identity heartbeat files. Any process can
// check identities it did not start; liveness is judged purely from file
// contents and age. Dead workers leave their last heartbeat behind —
// staleness, not absence, is the detection signal.
type Monitor struct {
	dir      string
	interval time.Duration
	timeout  time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	writers map[string]*writer
}

type writer struct {
	stop chan struct{}
	done chan struct{}
}

// Option configures optional Monitor behavior.
type Option func(*Monitor)

// WithLogger attaches a logger for write failures.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Monitor) {
		if logger != nil {
			m.logger = logging.NewComponentLogger(logger, "heartbeat")
		}
	}
}

// New returns a monitor over dir. interval is the write cadence, timeout the
// age beyond which a heartbeat is judged dead; timeout should cover several
// missed intervals.
func New(dir string, interval, timeout time.Duration, opts ...Option) (*Monitor, error) {
	if interval <= 0 || timeout <= interval {
		return nil, fmt.Errorf("heartbeat monitor requires 0 < interval < timeout (got %v, %v)", interval, timeout)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create heartbeat directory: %w", err)
	}
	m := &Monitor{
		dir:      dir,
		interval: interval,
		timeout:  timeout,
		logger:   logging.NewNop(),
		writers:  make(map[string]*writer),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// ErrInvalidIdentity reports an identity that cannot be used as a heartbeat
// filename.
var ErrInvalidIdentity = errors.New("invalid heartbeat identity")

// validateIdentity rejects identities that would escape the heartbeat
// directory or collide with temp files.
func validateIdentity(identity string) error {
	if identity == "" || identity != strings.TrimSpace(identity) {
		return fmt.Errorf("%w: %q", ErrInvalidIdentity, identity)
	}
	if strings.ContainsAny(identity, `/\`) || identity == "." || identity == ".." || strings.HasPrefix(identity, ".") {
		return fmt.Errorf("%w: %q", ErrInvalidIdentity, identity)
	}
	return nil
}

// Start begins writing heartbeats for identity on the monitor's interval.
// The first heartbeat is written synchronously so a Check immediately after
// Start reports alive. Starting an already-started identity is a no-op.
func (m *Monitor) Start(identity string) error {
	if err := validateIdentity(identity); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, running := m.writers[identity]; running {
		return nil
	}

	if err := m.write(identity); err != nil {
		return err
	}

	w := &writer{stop: make(chan struct{}), done: make(chan struct{})}
	m.writers[identity] = w
	go m.run(identity, w)
	return nil
}

func (m *Monitor) run(identity string, w *writer) {
	defer close(w.done)
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stop:
			return
		case <-ticker.C:
			if err := m.write(identity); err != nil {
				m.logger.Warn("heartbeat write failed",
					logging.String(logging.FieldWorker, identity),
					logging.Error(err),
				)
			}
		}
	}
}

// Stop cancels the periodic write for identity. Idempotent. The last
// heartbeat file is left in place.
func (m *Monitor) Stop(identity string) {
	m.mu.Lock()
	w, ok := m.writers[identity]
	if ok {
		delete(m.writers, identity)
	}
	m.mu.Unlock()

	if ok {
		close(w.stop)
		<-w.done
	}
}

// StopAll cancels every active writer.
func (m *Monitor) StopAll() {
	m.mu.Lock()
	writers := m.writers
	m.writers = make(map[string]*writer)
	m.mu.Unlock()

	for _, w := range writers {
		close(w.stop)
		<-w.done
	}
}

// Check reads the most recent heartbeat for identity and judges liveness
// from its age.
func (m *Monitor) Check(identity string) Status {
	data, err := os.ReadFile(m.path(identity))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Status{State: StateDead, Reason: ReasonNoFile}
		}
		return Status{State: StateDead, Reason: ReasonUnreadable}
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil || rec.Timestamp.IsZero() {
		return Status{State: StateDead, Reason: ReasonUnreadable}
	}

	age := time.Since(rec.Timestamp)
	if age >= m.timeout {
		return Status{State: StateDead, Age: age, Reason: ReasonTimeout}
	}
	return Status{State: StateAlive, Age: age}
}

// CheckAll checks each identity and returns a verdict per identity.
func (m *Monitor) CheckAll(identities []string) map[string]Status {
	results := make(map[string]Status, len(identities))
	for _, identity := range identities {
		results[identity] = m.Check(identity)
	}
	return results
}

// List returns every identity with a heartbeat file, letting a supervisor
// discover workers it did not spawn.
func (m *Monitor) List() ([]string, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return nil, fmt.Errorf("read heartbeat directory: %w", err)
	}
	var identities []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") || strings.HasPrefix(name, ".") {
			continue
		}
		identities = append(identities, strings.TrimSuffix(name, ".json"))
	}
	return identities, nil
}

func (m *Monitor) path(identity string) string {
	return filepath.Join(m.dir, identity+".json")
}

// write refreshes the heartbeat file atomically via temp file and rename, so
// a checker never reads a torn record.
func (m *Monitor) write(identity string) error {
	rec := Record{
		Agent:     identity,
		Timestamp: time.Now().UTC(),
		PID:       os.Getpid(),
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal heartbeat: %w", err)
	}

	tmp := filepath.Join(m.dir, "."+identity+".tmp")
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write heartbeat: %w", err)
	}
	if err := os.Rename(tmp, m.path(identity)); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("publish heartbeat: %w", err)
	}
	return nil
}
