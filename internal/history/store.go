package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Outcome is the terminal result of a processed queue item.
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeFailed    Outcome = "failed"
)

// Entry is one archived item outcome.
type Entry struct {
	Queue      string
	ItemID     string
	Outcome    Outcome
	Error      string
	Duration   time.Duration
	FinishedAt time.Time
}

// Counts aggregates archived outcomes for one queue.
type Counts struct {
	Completed int
	Failed    int
}

// Store archives finished item outcomes in SQLite. Live queue state lives in
// the filesystem; the archive only feeds operator reporting, so losing it
// never loses work.
type Store struct {
	db   *sql.DB
	path string
}

const schema = `
CREATE TABLE IF NOT EXISTS outcomes (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    queue TEXT NOT NULL,
    item_id TEXT NOT NULL,
    outcome TEXT NOT NULL,
    error_message TEXT NOT NULL DEFAULT '',
    duration_ms INTEGER NOT NULL DEFAULT 0,
    finished_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_outcomes_queue ON outcomes(queue);
CREATE INDEX IF NOT EXISTS idx_outcomes_finished_at ON outcomes(finished_at);
`

// Open initializes or connects to the history database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply history schema: %w", err)
	}

	return &Store{db: db, path: path}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Record archives one finished item.
func (s *Store) Record(ctx context.Context, entry Entry) error {
	if strings.TrimSpace(entry.Queue) == "" || strings.TrimSpace(entry.ItemID) == "" {
		return errors.New("history entry requires queue and item id")
	}
	finished := entry.FinishedAt
	if finished.IsZero() {
		finished = time.Now()
	}

	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO outcomes (queue, item_id, outcome, error_message, duration_ms, finished_at)
         VALUES (?, ?, ?, ?, ?, ?)`,
		entry.Queue,
		entry.ItemID,
		string(entry.Outcome),
		entry.Error,
		entry.Duration.Milliseconds(),
		finished.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert outcome: %w", err)
	}
	return nil
}

// Recent returns the most recently finished entries, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT queue, item_id, outcome, error_message, duration_ms, finished_at
         FROM outcomes ORDER BY id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query recent outcomes: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			entry      Entry
			outcome    string
			durationMS int64
			finishedAt string
		)
		if err := rows.Scan(&entry.Queue, &entry.ItemID, &outcome, &entry.Error, &durationMS, &finishedAt); err != nil {
			return nil, err
		}
		entry.Outcome = Outcome(outcome)
		entry.Duration = time.Duration(durationMS) * time.Millisecond
		if ts, parseErr := time.Parse(time.RFC3339Nano, finishedAt); parseErr == nil {
			entry.FinishedAt = ts
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// Stats returns outcome counts grouped by queue.
func (s *Store) Stats(ctx context.Context) (map[string]Counts, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT queue, outcome, COUNT(1) FROM outcomes GROUP BY queue, outcome`,
	)
	if err != nil {
		return nil, fmt.Errorf("query outcome stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[string]Counts)
	for rows.Next() {
		var (
			queueName string
			outcome   string
			count     int
		)
		if err := rows.Scan(&queueName, &outcome, &count); err != nil {
			return nil, err
		}
		counts := stats[queueName]
		switch Outcome(outcome) {
		case OutcomeCompleted:
			counts.Completed += count
		case OutcomeFailed:
			counts.Failed += count
		}
		stats[queueName] = counts
	}
	return stats, rows.Err()
}

// Prune deletes entries finished before cutoff, returning the number removed.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(
		ctx,
		`DELETE FROM outcomes WHERE finished_at < ?`,
		cutoff.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("prune outcomes: %w", err)
	}
	return res.RowsAffected()
}
