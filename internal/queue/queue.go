package queue

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"capstan/internal/logging"
)

const (
	pendingDir = "pending"
	claimedDir = "claimed"
	deadDir    = "dead"

	sweepLockName = ".sweep.lock"
)

// Queue is a handle to one named queue directory. Handles are cheap; any
// number of processes may hold handles to the same queue concurrently.
type Queue struct {
	name     string
	root     string
	minFree  uint64
	logger   *slog.Logger
	freeFunc func(string) (uint64, error)
}

// Option configures optional Queue behavior.
type Option func(*Queue)

// WithMinFreeBytes sets the push free-space floor. Zero disables the check.
func WithMinFreeBytes(bytes uint64) Option {
	return func(q *Queue) {
		q.minFree = bytes
	}
}

// WithLogger attaches a logger used for quarantine and sweep reporting.
func WithLogger(logger *slog.Logger) Option {
	return func(q *Queue) {
		if logger != nil {
			q.logger = logging.NewComponentLogger(logger, "queue").With(logging.String(logging.FieldQueue, q.name))
		}
	}
}

// Open ensures the directory structure for the named queue exists under
// baseDir and returns a handle. Open is idempotent and safe to call from
// multiple processes.
func Open(baseDir, name string, opts ...Option) (*Queue, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}

	q := &Queue{
		name:     name,
		root:     filepath.Join(baseDir, name),
		logger:   logging.NewNop(),
		freeFunc: freeBytes,
	}
	for _, opt := range opts {
		opt(q)
	}

	for _, dir := range []string{q.root, q.pendingPath(), q.claimedPath(), q.deadPath()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create queue directory %q: %w", dir, err)
		}
	}
	return q, nil
}

// Name returns the queue's name.
func (q *Queue) Name() string {
	return q.name
}

// Root returns the queue's base directory.
func (q *Queue) Root() string {
	return q.root
}

func (q *Queue) pendingPath() string { return filepath.Join(q.root, pendingDir) }
func (q *Queue) claimedPath() string { return filepath.Join(q.root, claimedDir) }
func (q *Queue) deadPath() string    { return filepath.Join(q.root, deadDir) }

func validateName(name string) error {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" || trimmed != name {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	if strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

// ListNames returns the names of all queues under baseDir in sorted order.
func ListNames(baseDir string) ([]string, error) {
	entries, err := os.ReadDir(baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read queues directory: %w", err)
	}
	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	return names, nil
}
