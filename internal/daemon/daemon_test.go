package daemon_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"capstan/internal/daemon"
	"capstan/internal/logging"
	"capstan/internal/queue"
	"capstan/internal/testsupport"
	"capstan/internal/workflow"
)

func newDaemon(t *testing.T) (*daemon.Daemon, *workflow.Manager) {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	mgr, err := workflow.NewManager(cfg, logging.NewNop(), nil)
	if err != nil {
		t.Fatalf("NewManager returned error: %v", err)
	}
	handler := func(ctx context.Context, item *queue.Item) (*workflow.Result, error) {
		return nil, nil
	}
	if err := mgr.Register("ingest", handler); err != nil {
		t.Fatalf("Register returned error: %v", err)
	}

	d, err := daemon.New(cfg, logging.NewNop(), mgr)
	if err != nil {
		t.Fatalf("daemon.New returned error: %v", err)
	}
	return d, mgr
}

func TestDaemonStartStop(t *testing.T) {
	d, _ := newDaemon(t)

	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	if !d.Status().Running {
		t.Fatal("expected daemon to report running")
	}

	d.Stop()
	if d.Status().Running {
		t.Fatal("expected daemon to report stopped")
	}
	// idempotent
	d.Stop()
}

func TestDaemonRejectsSecondInstance(t *testing.T) {
	cfg := testsupport.NewConfig(t)

	handler := func(ctx context.Context, item *queue.Item) (*workflow.Result, error) {
		return nil, nil
	}

	first, err := workflow.NewManager(cfg, logging.NewNop(), nil)
	if err != nil {
		t.Fatalf("NewManager returned error: %v", err)
	}
	if err := first.Register("ingest", handler); err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	d1, err := daemon.New(cfg, logging.NewNop(), first)
	if err != nil {
		t.Fatalf("daemon.New returned error: %v", err)
	}
	if err := d1.Start(context.Background()); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	defer d1.Stop()

	second, err := workflow.NewManager(cfg, logging.NewNop(), nil)
	if err != nil {
		t.Fatalf("NewManager returned error: %v", err)
	}
	if err := second.Register("ingest", handler); err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	d2, err := daemon.New(cfg, logging.NewNop(), second)
	if err != nil {
		t.Fatalf("daemon.New returned error: %v", err)
	}
	if err := d2.Start(context.Background()); err == nil {
		d2.Stop()
		t.Fatal("expected second instance to be rejected")
	}
}

func TestDaemonProcessesWorkEndToEnd(t *testing.T) {
	cfg := testsupport.NewConfig(t)
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
	testsupport.MustPush(t, q, map[string]any{"job": "one"})

	d, err := daemon.New(cfg, logging.NewNop(), mgr)
	if err != nil {
		t.Fatalf("daemon.New returned error: %v", err)
	}
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	defer d.Stop()

	if !d.Status().Processing {
		t.Fatal("expected lanes to report processing after start")
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		status := d.Status()
		if processed.Load() == 1 && status.Tasks.Completed == 1 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("item was not processed before deadline: %+v", d.Status().Tasks)
}
