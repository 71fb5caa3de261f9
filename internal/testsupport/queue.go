package testsupport

import (
	"testing"

	"capstan/internal/config"
	"capstan/internal/queue"
)

// MustOpenQueue opens a named queue under the test config's data directory.
func MustOpenQueue(t testing.TB, cfg *config.Config, name string) *queue.Queue {
	t.Helper()

	q, err := queue.Open(cfg.QueuesDir(), name, queue.WithMinFreeBytes(cfg.MinFreeBytes()))
	if err != nil {
		t.Fatalf("queue.Open(%s): %v", name, err)
	}
	return q
}

// MustPush pushes a payload and returns the assigned item id.
func MustPush(t testing.TB, q *queue.Queue, payload map[string]any) string {
	t.Helper()

	id, err := q.Push(payload)
	if err != nil {
		t.Fatalf("queue.Push: %v", err)
	}
	return id
}
