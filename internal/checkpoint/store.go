package checkpoint

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// Status is the recorded outcome of a unit of work.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// ErrNotLoaded reports a Save or IsCompleted call before Load. That ordering
// is a caller bug: saving over an unloaded document would silently discard
// the prior run's progress.
var ErrNotLoaded = errors.New("checkpoint not loaded")

// FailureRecord captures one failed unit.
type FailureRecord struct {
	ID    string    `json:"id"`
	Error string    `json:"error"`
	Time  time.Time `json:"time"`
}

// document is the persisted shape: one JSON file per job.
type document struct {
	StartedAt  time.Time       `json:"started_at"`
	LastUpdate time.Time       `json:"last_update"`
	Completed  []string        `json:"completed"`
	Failed     []FailureRecord `json:"failed"`
}

// Stats aggregates checkpoint counts.
type Stats struct {
	Completed int
	Failed    int
	Total     int
}

// Store tracks completed and failed work units for one job, persisting the
// full document atomically after every save so a restart resumes exactly
// where the job left off. One job process owns one checkpoint file; the store
// serializes its own goroutines but concurrent processes writing the same
// file are a caller error.
type Store struct {
	path string

	mu        sync.Mutex
	loaded    bool
	startedAt time.Time
	completed map[string]struct{}
	failed    map[string]FailureRecord
}

// New returns a store backed by the document at path. Call Load before any
// other method.
func New(path string) *Store {
	return &Store{path: path}
}

// Load reads the checkpoint document, starting empty when none exists.
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.completed = make(map[string]struct{})
	s.failed = make(map[string]FailureRecord)
	s.startedAt = time.Now().UTC()
	s.loaded = false

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.loaded = true
			return nil
		}
		return fmt.Errorf("read checkpoint: %w", err)
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parse checkpoint %s: %w", s.path, err)
	}

	if !doc.StartedAt.IsZero() {
		s.startedAt = doc.StartedAt
	}
	for _, id := range doc.Completed {
		s.completed[id] = struct{}{}
	}
	for _, rec := range doc.Failed {
		if _, done := s.completed[rec.ID]; done {
			continue
		}
		s.failed[rec.ID] = rec
	}
	s.loaded = true
	return nil
}

// IsCompleted reports whether the unit was already recorded as completed.
// Callers skip such units on restart.
func (s *Store) IsCompleted(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		return false, ErrNotLoaded
	}
	_, ok := s.completed[id]
	return ok, nil
}

// Save records the outcome of one unit and persists the whole document
// atomically. Saving completed for an already-completed unit is a no-op; a
// completed unit never moves back to failed.
func (s *Store) Save(id string, status Status, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		return ErrNotLoaded
	}

	switch status {
	case StatusCompleted:
		s.completed[id] = struct{}{}
		delete(s.failed, id)
	case StatusFailed:
		if _, done := s.completed[id]; done {
			return nil
		}
		s.failed[id] = FailureRecord{ID: id, Error: errMsg, Time: time.Now().UTC()}
	default:
		return fmt.Errorf("unknown checkpoint status %q", status)
	}

	return s.persistLocked()
}

// Failed returns failure records sorted by unit id.
func (s *Store) Failed() ([]FailureRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		return nil, ErrNotLoaded
	}
	records := make([]FailureRecord, 0, len(s.failed))
	for _, rec := range s.failed {
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].ID < records[j].ID })
	return records, nil
}

// Stats returns completed/failed/total counts.
func (s *Store) Stats() (Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		return Stats{}, ErrNotLoaded
	}
	return Stats{
		Completed: len(s.completed),
		Failed:    len(s.failed),
		Total:     len(s.completed) + len(s.failed),
	}, nil
}

// Reset discards all recorded outcomes and persists an empty document,
// deliberately starting the job over.
func (s *Store) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		return ErrNotLoaded
	}
	s.completed = make(map[string]struct{})
	s.failed = make(map[string]FailureRecord)
	s.startedAt = time.Now().UTC()
	return s.persistLocked()
}

// Path returns the backing document path.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) persistLocked() error {
	completed := make([]string, 0, len(s.completed))
	for id := range s.completed {
		completed = append(completed, id)
	}
	sort.Strings(completed)

	failed := make([]FailureRecord, 0, len(s.failed))
	for _, rec := range s.failed {
		failed = append(failed, rec)
	}
	sort.Slice(failed, func(i, j int) bool { return failed[i].ID < failed[j].ID })

	doc := document{
		StartedAt:  s.startedAt,
		LastUpdate: time.Now().UTC(),
		Completed:  completed,
		Failed:     failed,
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create checkpoint directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".checkpoint-*")
	if err != nil {
		return fmt.Errorf("create temp checkpoint: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write checkpoint: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("sync checkpoint: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close checkpoint: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("publish checkpoint: %w", err)
	}
	return nil
}
