package queue_test

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"capstan/internal/queue"
)

func mustOpen(t *testing.T, name string, opts ...queue.Option) *queue.Queue {
	t.Helper()
	q, err := queue.Open(t.TempDir(), name, opts...)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	return q
}

func TestOpenIsIdempotent(t *testing.T) {
	base := t.TempDir()
	if _, err := queue.Open(base, "work"); err != nil {
		t.Fatalf("first open: %v", err)
	}
	q, err := queue.Open(base, "work")
	if err != nil {
		t.Fatalf("second open: %v", err)
	}
	for _, sub := range []string{"pending", "claimed", "dead"} {
		info, err := os.Stat(filepath.Join(q.Root(), sub))
		if err != nil || !info.IsDir() {
			t.Fatalf("missing %s directory: %v", sub, err)
		}
	}
}

func TestOpenRejectsBadNames(t *testing.T) {
	base := t.TempDir()
	for _, name := range []string{"", " padded", "a/b", ".."} {
		if _, err := queue.Open(base, name); !errors.Is(err, queue.ErrInvalidName) {
			t.Fatalf("expected ErrInvalidName for %q, got %v", name, err)
		}
	}
}

func TestPushPopFIFO(t *testing.T) {
	q := mustOpen(t, "work")

	for i := 0; i < 5; i++ {
		if _, err := q.Push(map[string]any{"process": "1", "msg": i}); err != nil {
			t.Fatalf("push %d: %v", i, err)
		}
	}

	for i := 0; i < 3; i++ {
		item, err := q.Pop()
		if err != nil {
			t.Fatalf("pop %d: %v", i, err)
		}
		if item == nil {
			t.Fatalf("pop %d: unexpected empty queue", i)
		}
		got, ok := item.Payload["msg"].(float64)
		if !ok || int(got) != i {
			t.Fatalf("pop %d: got msg %v, want %d", i, item.Payload["msg"], i)
		}
	}

	length, err := q.Length()
	if err != nil {
		t.Fatalf("length: %v", err)
	}
	if length != 2 {
		t.Fatalf("length after 5 pushes and 3 pops: got %d, want 2", length)
	}
}

func TestPopEmptyReturnsNil(t *testing.T) {
	q := mustOpen(t, "work")
	item, err := q.Pop()
	if err != nil {
		t.Fatalf("pop: %v", err)
	}
	if item != nil {
		t.Fatalf("expected nil item from empty queue, got %#v", item)
	}
}

func TestPeekDoesNotClaim(t *testing.T) {
	q := mustOpen(t, "work")
	id, err := q.Push(map[string]any{"topic": "solar"})
	if err != nil {
		t.Fatal(err)
	}

	peeked, err := q.Peek()
	if err != nil {
		t.Fatalf("peek: %v", err)
	}
	if peeked == nil || peeked.ID != id {
		t.Fatalf("peek returned %#v, want id %s", peeked, id)
	}

	length, _ := q.Length()
	if length != 1 {
		t.Fatalf("peek removed the item: length %d", length)
	}

	popped, err := q.Pop()
	if err != nil || popped == nil || popped.ID != id {
		t.Fatalf("pop after peek: item=%#v err=%v", popped, err)
	}
}

func TestConcurrentPopNoDuplicates(t *testing.T) {
	q := mustOpen(t, "work")

	const items = 8
	const poppers = 16

	want := make(map[string]struct{}, items)
	for i := 0; i < items; i++ {
		id, err := q.Push(map[string]any{"n": i})
		if err != nil {
			t.Fatal(err)
		}
		want[id] = struct{}{}
	}

	var mu sync.Mutex
	got := make(map[string]int)
	empties := 0

	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < poppers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			item, err := q.Pop()
			if err != nil {
				t.Errorf("pop: %v", err)
				return
			}
			mu.Lock()
			defer mu.Unlock()
			if item == nil {
				empties++
				return
			}
			got[item.ID]++
		}()
	}
	close(start)
	wg.Wait()

	if len(got) != items {
		t.Fatalf("distinct items popped: got %d, want %d", len(got), items)
	}
	for id, count := range got {
		if count != 1 {
			t.Fatalf("item %s popped %d times", id, count)
		}
		if _, ok := want[id]; !ok {
			t.Fatalf("popped unknown item %s", id)
		}
	}
	if empties != poppers-items {
		t.Fatalf("empty pops: got %d, want %d", empties, poppers-items)
	}
}

func TestCorruptItemQuarantined(t *testing.T) {
	q := mustOpen(t, "work")

	// A garbage file planted directly in pending must not block the queue.
	bad := filepath.Join(q.Root(), "pending", "00000000000000000001-bad.json")
	if err := os.WriteFile(bad, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	id, err := q.Push(map[string]any{"ok": true})
	if err != nil {
		t.Fatal(err)
	}

	item, err := q.Pop()
	if err != nil {
		t.Fatalf("pop: %v", err)
	}
	if item == nil || item.ID != id {
		t.Fatalf("expected healthy item %s, got %#v", id, item)
	}

	dead, err := q.Dead()
	if err != nil {
		t.Fatalf("dead: %v", err)
	}
	if len(dead) != 1 {
		t.Fatalf("expected 1 quarantined item, got %v", dead)
	}
}

func TestAckRemovesClaimed(t *testing.T) {
	q := mustOpen(t, "work")
	if _, err := q.Push(map[string]any{"n": 1}); err != nil {
		t.Fatal(err)
	}

	item, err := q.Pop()
	if err != nil || item == nil {
		t.Fatalf("pop: item=%v err=%v", item, err)
	}
	if err := q.Ack(item); err != nil {
		t.Fatalf("ack: %v", err)
	}

	stats, err := q.Stats()
	if err != nil {
		t.Fatal(err)
	}
	if stats.Total() != 0 {
		t.Fatalf("expected empty queue after ack, got %+v", stats)
	}

	if err := q.Ack(item); !errors.Is(err, queue.ErrNotClaimed) {
		t.Fatalf("double ack: got %v, want ErrNotClaimed", err)
	}
}

func TestRequeuePreservesOrder(t *testing.T) {
	q := mustOpen(t, "work")
	first, err := q.Push(map[string]any{"n": 1})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := q.Push(map[string]any{"n": 2}); err != nil {
		t.Fatal(err)
	}

	item, err := q.Pop()
	if err != nil || item == nil || item.ID != first {
		t.Fatalf("pop: item=%v err=%v", item, err)
	}
	if err := q.Requeue(item); err != nil {
		t.Fatalf("requeue: %v", err)
	}

	again, err := q.Pop()
	if err != nil || again == nil {
		t.Fatalf("pop after requeue: item=%v err=%v", again, err)
	}
	if again.ID != first {
		t.Fatalf("requeued item lost its place: got %s, want %s", again.ID, first)
	}
}

func TestPushFailsFastOnLowDiskSpace(t *testing.T) {
	q := mustOpen(t, "work", queue.WithMinFreeBytes(1<<62))

	_, err := q.Push(map[string]any{"n": 1})
	if !errors.Is(err, queue.ErrDiskSpace) {
		t.Fatalf("expected ErrDiskSpace, got %v", err)
	}

	// The failed push must leave no partial file behind.
	entries, readErr := os.ReadDir(filepath.Join(q.Root(), "pending"))
	if readErr != nil {
		t.Fatal(readErr)
	}
	if len(entries) != 0 {
		t.Fatalf("pending not empty after rejected push: %v", entries)
	}
}

func TestStatsCounts(t *testing.T) {
	q := mustOpen(t, "work")
	for i := 0; i < 3; i++ {
		if _, err := q.Push(map[string]any{"n": i}); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := q.Pop(); err != nil {
		t.Fatal(err)
	}

	stats, err := q.Stats()
	if err != nil {
		t.Fatal(err)
	}
	if stats.Pending != 2 || stats.Claimed != 1 || stats.Dead != 0 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestListNames(t *testing.T) {
	base := t.TempDir()
	for _, name := range []string{"alpha", "beta"} {
		if _, err := queue.Open(base, name); err != nil {
			t.Fatal(err)
		}
	}
	names, err := queue.ListNames(base)
	if err != nil {
		t.Fatal(err)
	}
	if fmt.Sprint(names) != "[alpha beta]" {
		t.Fatalf("unexpected names %v", names)
	}
}
