package workflow_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"capstan/internal/history"
	"capstan/internal/logging"
	"capstan/internal/queue"
	"capstan/internal/testsupport"
	"capstan/internal/workflow"
)

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestManagerProcessesAndAcksItems(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithBreaker(3, 1))
	mgr, err := workflow.NewManager(cfg, logging.NewNop(), nil)
	if err != nil {
		t.Fatalf("NewManager returned error: %v", err)
	}

	var processed atomic.Int32
	handler := func(ctx context.Context, item *queue.Item) (*workflow.Result, error) {
		processed.Add(1)
		return nil, nil
	}
	if err := mgr.Register("ingest", handler); err != nil {
		t.Fatalf("Register returned error: %v", err)
	}

	q := testsupport.MustOpenQueue(t, cfg, "ingest")
	for i := 0; i < 3; i++ {
		testsupport.MustPush(t, q, map[string]any{"seq": i})
	}

	if err := mgr.Start(context.Background()); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	defer mgr.Stop()

	waitFor(t, 5*time.Second, func() bool {
		return processed.Load() == 3
	})

	waitFor(t, 5*time.Second, func() bool {
		stats, statsErr := q.Stats()
		return statsErr == nil && stats.Total() == 0
	})
}

func TestManagerForwardsToDownstreamQueue(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithBreaker(3, 1))
	mgr, err := workflow.NewManager(cfg, logging.NewNop(), nil)
	if err != nil {
		t.Fatalf("NewManager returned error: %v", err)
	}

	handler := func(ctx context.Context, item *queue.Item) (*workflow.Result, error) {
		return &workflow.Result{NextQueue: "encode"}, nil
	}
	if err := mgr.Register("rip", handler); err != nil {
		t.Fatalf("Register returned error: %v", err)
	}

	rip := testsupport.MustOpenQueue(t, cfg, "rip")
	testsupport.MustPush(t, rip, map[string]any{"disc": "alpha"})

	if err := mgr.Start(context.Background()); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	defer mgr.Stop()

	encode := testsupport.MustOpenQueue(t, cfg, "encode")
	waitFor(t, 5*time.Second, func() bool {
		length, lenErr := encode.Length()
		return lenErr == nil && length == 1
	})

	item, err := encode.Pop()
	if err != nil {
		t.Fatalf("Pop returned error: %v", err)
	}
	if item.Payload["disc"] != "alpha" {
		t.Fatalf("expected original payload forwarded, got %v", item.Payload)
	}
}

func TestManagerLeavesFailedItemsClaimed(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithBreaker(10, 1))
	archive, err := history.Open(cfg.HistoryPath())
	if err != nil {
		t.Fatalf("history.Open returned error: %v", err)
	}
	defer archive.Close()

	mgr, err := workflow.NewManager(cfg, logging.NewNop(), archive)
	if err != nil {
		t.Fatalf("NewManager returned error: %v", err)
	}

	var calls atomic.Int32
	handler := func(ctx context.Context, item *queue.Item) (*workflow.Result, error) {
		calls.Add(1)
		return nil, errors.New("handler failed")
	}
	if err := mgr.Register("ingest", handler); err != nil {
		t.Fatalf("Register returned error: %v", err)
	}

	q := testsupport.MustOpenQueue(t, cfg, "ingest")
	itemID := testsupport.MustPush(t, q, map[string]any{"doomed": true})

	if err := mgr.Start(context.Background()); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}

	waitFor(t, 5*time.Second, func() bool {
		return calls.Load() >= 1
	})
	mgr.Stop()

	stats, err := q.Stats()
	if err != nil {
		t.Fatalf("Stats returned error: %v", err)
	}
	if stats.Claimed != 1 {
		t.Fatalf("expected failed item left claimed, got %+v", stats)
	}

	recent, err := archive.Recent(context.Background(), 5)
	if err != nil {
		t.Fatalf("Recent returned error: %v", err)
	}
	if len(recent) == 0 || recent[0].ItemID != itemID || recent[0].Outcome != history.OutcomeFailed {
		t.Fatalf("expected failed outcome archived for %s, got %+v", itemID, recent)
	}
}

func TestManagerRejectsDoubleStartAndEmptyLanes(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	mgr, err := workflow.NewManager(cfg, logging.NewNop(), nil)
	if err != nil {
		t.Fatalf("NewManager returned error: %v", err)
	}

	if err := mgr.Start(context.Background()); err == nil {
		t.Fatal("expected error starting with no lanes")
	}

	handler := func(ctx context.Context, item *queue.Item) (*workflow.Result, error) {
		return nil, nil
	}
	if err := mgr.Register("ingest", handler); err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	if err := mgr.Register("ingest", handler); err == nil {
		t.Fatal("expected error registering duplicate lane")
	}

	if err := mgr.Start(context.Background()); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	if !mgr.Running() {
		t.Fatal("expected Running after start")
	}
	if err := mgr.Start(context.Background()); err == nil {
		t.Fatal("expected error starting twice")
	}

	mgr.Stop()
	if mgr.Running() {
		t.Fatal("expected Running to clear after stop")
	}
}

func TestManagerStatusReportsLanes(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	mgr, err := workflow.NewManager(cfg, logging.NewNop(), nil)
	if err != nil {
		t.Fatalf("NewManager returned error: %v", err)
	}

	handler := func(ctx context.Context, item *queue.Item) (*workflow.Result, error) {
		return nil, nil
	}
	if err := mgr.Register("rip", handler); err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	if err := mgr.Register("encode", handler); err != nil {
		t.Fatalf("Register returned error: %v", err)
	}

	q := testsupport.MustOpenQueue(t, cfg, "rip")
	testsupport.MustPush(t, q, map[string]any{"disc": "beta"})

	statuses := mgr.Status()
	if len(statuses) != 2 {
		t.Fatalf("expected 2 lane statuses, got %d", len(statuses))
	}
	if statuses[0].Queue != "rip" || statuses[1].Queue != "encode" {
		t.Fatalf("expected registration order preserved, got %s then %s", statuses[0].Queue, statuses[1].Queue)
	}
	if statuses[0].Stats.Pending != 1 {
		t.Fatalf("expected 1 pending item on rip lane, got %+v", statuses[0].Stats)
	}
}
