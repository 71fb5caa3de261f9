package queue

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"capstan/internal/logging"
)

// Sweep returns claimed items whose claim age exceeds olderThan to the
// pending set, restoring their original ordering keys. The claim age is the
// claimed file's modification time, which Pop stamps when the claim
// succeeds.
//
// Sweeps from concurrent processes are serialized with a file lock; when the
// lock is already held the call returns immediately with zero reclaimed,
// since the holder is doing the same work. Returns the number of items
// returned to pending.
func (q *Queue) Sweep(olderThan time.Duration) (int, error) {
	if olderThan <= 0 {
		return 0, errors.New("sweep requires a positive claim timeout")
	}

	lock := flock.New(filepath.Join(q.root, sweepLockName))
	locked, err := lock.TryLock()
	if err != nil {
		return 0, fmt.Errorf("acquire sweep lock: %w", err)
	}
	if !locked {
		return 0, nil
	}
	defer lock.Unlock()

	entries, err := os.ReadDir(q.claimedPath())
	if err != nil {
		return 0, fmt.Errorf("read claimed directory: %w", err)
	}

	cutoff := time.Now().Add(-olderThan)
	reclaimed := 0
	for _, entry := range entries {
		if entry.IsDir() || !isItemKey(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return reclaimed, fmt.Errorf("stat claimed item %s: %w", entry.Name(), err)
		}
		if info.ModTime().After(cutoff) {
			continue
		}

		src := filepath.Join(q.claimedPath(), entry.Name())
		dst := filepath.Join(q.pendingPath(), entry.Name())
		if err := os.Rename(src, dst); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				// Consumer acknowledged it between listing and rename.
				continue
			}
			return reclaimed, fmt.Errorf("requeue claimed item %s: %w", entry.Name(), err)
		}
		reclaimed++
		q.logger.Info("requeued overdue claimed item",
			logging.String("key", entry.Name()),
			logging.Duration("claim_age", time.Since(info.ModTime())),
		)
	}
	return reclaimed, nil
}
