package queue

import (
	"fmt"

	"golang.org/x/sys/unix"
)

func (q *Queue) checkFreeSpace() error {
	if q.minFree == 0 {
		return nil
	}
	free, err := q.freeFunc(q.root)
	if err != nil {
		return fmt.Errorf("check free space: %w", err)
	}
	if free < q.minFree {
		return fmt.Errorf("%w: %d bytes free, %d required", ErrDiskSpace, free, q.minFree)
	}
	return nil
}

func freeBytes(path string) (uint64, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return 0, err
	}
	return stat.Bavail * uint64(stat.Bsize), nil
}
