// Package queue implements a durable FIFO work queue whose state lives
// entirely in the filesystem, safe for concurrent use by independent
// processes on the same host.
//
// Each named queue is a directory containing three subdirectories: pending/
// holds items awaiting a consumer, claimed/ holds items a consumer has popped
// but not yet acknowledged, and dead/ quarantines unreadable items. Every
// state transition is a single atomic rename, so a consistent filesystem
// snapshot never shows an item in two places and a crashed writer never
// leaves a partially visible item. Claimed items whose claim age exceeds a
// timeout are swept back to pending, giving at-least-once delivery; consumers
// must tolerate re-delivery.
//
// Pending filenames embed a nanosecond enqueue timestamp followed by a random
// id, so lexicographic order is FIFO order within one clock domain.
package queue
