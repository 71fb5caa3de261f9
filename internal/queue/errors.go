package queue

import "errors"

var (
	// ErrDiskSpace reports that free space on the queue volume is below the
	// configured floor. Pushes fail fast with this error before any write is
	// attempted.
	ErrDiskSpace = errors.New("insufficient disk space")

	// ErrNotClaimed reports an acknowledge or requeue of an item that is no
	// longer in the claimed set, usually because a sweep returned it to
	// pending first.
	ErrNotClaimed = errors.New("item not in claimed set")

	// ErrInvalidName reports a queue name that cannot be used as a directory
	// segment.
	ErrInvalidName = errors.New("invalid queue name")

	// ErrCorruptItem reports an item file that could not be decoded. The file
	// is quarantined in the dead-letter directory when this is detected.
	ErrCorruptItem = errors.New("corrupt item file")
)
