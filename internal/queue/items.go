package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"capstan/internal/logging"
)

// Push serializes payload into an envelope and makes it atomically visible in
// the pending set. The envelope is written to a temporary file in the queue
// root and renamed into pending/, so concurrent readers never observe a
// partial item. Returns the assigned item id.
func (q *Queue) Push(payload map[string]any) (string, error) {
	if err := q.checkFreeSpace(); err != nil {
		return "", err
	}

	now := time.Now()
	env := Envelope{
		ID:         uuid.NewString(),
		EnqueuedAt: now.UTC(),
		Payload:    payload,
	}
	data, err := json.Marshal(env)
	if err != nil {
		return "", fmt.Errorf("marshal envelope: %w", err)
	}

	key := fmt.Sprintf("%020d-%s.json", now.UnixNano(), env.ID)
	tmpPath := filepath.Join(q.root, ".push-"+env.ID+".tmp")

	file, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("create temp item: %w", err)
	}
	if _, err := file.Write(data); err != nil {
		file.Close()
		os.Remove(tmpPath)
		return "", fmt.Errorf("write item: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tmpPath)
		return "", fmt.Errorf("sync item: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("close item: %w", err)
	}

	if err := os.Rename(tmpPath, filepath.Join(q.pendingPath(), key)); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("publish item: %w", err)
	}
	return env.ID, nil
}

// Pop claims the oldest pending item by atomically renaming it into the
// claimed set. When two callers race for the same item, exactly one rename
// succeeds and the loser moves on to the next candidate. Returns (nil, nil)
// when no pending item exists; Pop never blocks.
func (q *Queue) Pop() (*Item, error) {
	keys, err := q.pendingKeys()
	if err != nil {
		return nil, err
	}

	for _, key := range keys {
		claimedPath := filepath.Join(q.claimedPath(), key)
		err := os.Rename(filepath.Join(q.pendingPath(), key), claimedPath)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				// Another consumer claimed it first.
				continue
			}
			return nil, fmt.Errorf("claim item %s: %w", key, err)
		}

		// Rename preserves mtime, so the file still carries its push time.
		// Stamp the claim time explicitly; the sweep measures claim age
		// from it, and an item that sat in pending must not inherit that
		// wait as claim age.
		now := time.Now()
		if err := os.Chtimes(claimedPath, now, now); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("stamp claim time for %s: %w", key, err)
		}

		item, err := q.readItem(claimedPath, key)
		if err != nil {
			q.quarantine(claimedPath, key, err)
			continue
		}
		return item, nil
	}
	return nil, nil
}

// Peek returns the oldest pending item without claiming it, or (nil, nil) if
// the queue is empty. Intended for inspection; the returned item may be
// claimed by another consumer at any moment.
func (q *Queue) Peek() (*Item, error) {
	keys, err := q.pendingKeys()
	if err != nil {
		return nil, err
	}

	for _, key := range keys {
		path := filepath.Join(q.pendingPath(), key)
		item, err := q.readItem(path, key)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			q.quarantine(path, key, err)
			continue
		}
		return item, nil
	}
	return nil, nil
}

// Length counts pending items. Under concurrent mutation the count is
// approximate but never off by more than the operations in flight.
func (q *Queue) Length() (int, error) {
	keys, err := q.pendingKeys()
	if err != nil {
		return 0, err
	}
	return len(keys), nil
}

// Ack removes a claimed item, marking it done.
func (q *Queue) Ack(item *Item) error {
	if item == nil || item.key == "" {
		return errors.New("ack requires a claimed item")
	}
	err := os.Remove(filepath.Join(q.claimedPath(), item.key))
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrNotClaimed, item.key)
	}
	return err
}

// Requeue returns a claimed item to the pending set, preserving its original
// ordering key.
func (q *Queue) Requeue(item *Item) error {
	if item == nil || item.key == "" {
		return errors.New("requeue requires a claimed item")
	}
	err := os.Rename(filepath.Join(q.claimedPath(), item.key), filepath.Join(q.pendingPath(), item.key))
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrNotClaimed, item.key)
	}
	return err
}

// Stats returns current pending, claimed, and dead counts.
func (q *Queue) Stats() (Stats, error) {
	var stats Stats
	for _, c := range []struct {
		dir string
		dst *int
	}{
		{q.pendingPath(), &stats.Pending},
		{q.claimedPath(), &stats.Claimed},
		{q.deadPath(), &stats.Dead},
	} {
		entries, err := os.ReadDir(c.dir)
		if err != nil {
			return Stats{}, fmt.Errorf("read %s: %w", c.dir, err)
		}
		for _, entry := range entries {
			if isItemKey(entry.Name()) {
				*c.dst++
			}
		}
	}
	return stats, nil
}

// Dead lists the filenames of quarantined items for operator inspection.
func (q *Queue) Dead() ([]string, error) {
	entries, err := os.ReadDir(q.deadPath())
	if err != nil {
		return nil, fmt.Errorf("read dead-letter directory: %w", err)
	}
	var keys []string
	for _, entry := range entries {
		if !entry.IsDir() {
			keys = append(keys, entry.Name())
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (q *Queue) pendingKeys() ([]string, error) {
	entries, err := os.ReadDir(q.pendingPath())
	if err != nil {
		return nil, fmt.Errorf("read pending directory: %w", err)
	}
	keys := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if !isItemKey(entry.Name()) {
			continue
		}
		keys = append(keys, entry.Name())
	}
	sort.Strings(keys)
	return keys, nil
}

func (q *Queue) readItem(path, key string) (*Item, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorruptItem, key, err)
	}
	if env.ID == "" {
		return nil, fmt.Errorf("%w: %s: missing id", ErrCorruptItem, key)
	}
	return &Item{Envelope: env, key: key}, nil
}

// quarantine moves an unreadable item to the dead-letter directory so it
// cannot block the queue.
func (q *Queue) quarantine(path, key string, cause error) {
	dest := filepath.Join(q.deadPath(), key)
	if err := os.Rename(path, dest); err != nil && !errors.Is(err, fs.ErrNotExist) {
		q.logger.Error("failed to quarantine corrupt item",
			logging.String("key", key),
			logging.Error(err),
		)
		return
	}
	q.logger.Warn("quarantined corrupt item",
		logging.String("key", key),
		logging.Error(cause),
		logging.Alert("dead_letter"),
	)
}

func isItemKey(name string) bool {
	return strings.HasSuffix(name, ".json") && !strings.HasPrefix(name, ".")
}
