package breaker

import (
	"context"
	"errors"
	"testing"
	"time"
)

func noSleep(_ context.Context, _ time.Duration) error { return nil }

func TestExecuteSuccess(t *testing.T) {
	e := NewExecutor(New(3, time.Minute), WithSleeper(noSleep))

	result, err := e.Execute(context.Background(), func(ctx context.Context) (any, error) {
		return "done", nil
	})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if result != "done" {
		t.Fatalf("result: got %v", result)
	}
}

func TestExecuteRetriesThenSucceeds(t *testing.T) {
	e := NewExecutor(New(3, time.Minute), WithSleeper(noSleep), WithMaxAttempts(3))

	calls := 0
	result, err := e.Execute(context.Background(), func(ctx context.Context) (any, error) {
		calls++
		if calls < 3 {
			return nil, errors.New("flaky")
		}
		return calls, nil
	})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if result != 3 || calls != 3 {
		t.Fatalf("calls=%d result=%v", calls, result)
	}
	if e.Breaker().State() != StateClosed {
		t.Fatal("retried success should leave breaker closed")
	}
}

func TestExecuteFinalFailureCountsOnce(t *testing.T) {
	b := New(3, time.Minute)
	e := NewExecutor(b, WithSleeper(noSleep), WithMaxAttempts(4))

	_, err := e.Execute(context.Background(), func(ctx context.Context) (any, error) {
		return nil, errors.New("down")
	})
	if err == nil {
		t.Fatal("expected failure")
	}
	if got := b.Stats().Failures; got != 1 {
		t.Fatalf("failures recorded: got %d, want 1 (retries must not multiply)", got)
	}
}

func TestOpenCircuitRejectsWithoutInvoking(t *testing.T) {
	b, now := breakerAt(1, time.Minute)
	b.RecordFailure()
	_ = now

	e := NewExecutor(b, WithSleeper(noSleep))
	invoked := false
	_, err := e.Execute(context.Background(), func(ctx context.Context) (any, error) {
		invoked = true
		return nil, nil
	})
	if !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen, got %v", err)
	}
	if invoked {
		t.Fatal("wrapped function invoked while circuit open")
	}
}

func TestFallbackUsedOnRetries(t *testing.T) {
	e := NewExecutor(New(3, time.Minute), WithSleeper(noSleep), WithMaxAttempts(2))

	var primary, fallback int
	result, err := e.ExecuteWithFallback(context.Background(),
		func(ctx context.Context) (any, error) {
			primary++
			return nil, errors.New("too complex")
		},
		func(ctx context.Context) (any, error) {
			fallback++
			return "simplified", nil
		},
	)
	if err != nil {
		t.Fatalf("ExecuteWithFallback failed: %v", err)
	}
	if primary != 1 || fallback != 1 || result != "simplified" {
		t.Fatalf("primary=%d fallback=%d result=%v", primary, fallback, result)
	}
}

func TestCallTimeoutApplied(t *testing.T) {
	e := NewExecutor(New(3, time.Minute),
		WithSleeper(noSleep),
		WithMaxAttempts(1),
		WithCallTimeout(20*time.Millisecond),
	)

	_, err := e.Execute(context.Background(), func(ctx context.Context) (any, error) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Second):
			return "too late", nil
		}
	})
	if err == nil || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
}

func TestCancelledCallerDoesNotTripBreaker(t *testing.T) {
	b := New(1, time.Minute)
	e := NewExecutor(b, WithSleeper(noSleep), WithMaxAttempts(3))

	ctx, cancel := context.WithCancel(context.Background())
	_, err := e.Execute(ctx, func(ctx context.Context) (any, error) {
		cancel()
		return nil, context.Canceled
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if b.State() != StateClosed {
		t.Fatal("caller cancellation tripped the breaker")
	}
}

func TestBackoffDelaysIncrease(t *testing.T) {
	var delays []time.Duration
	e := NewExecutor(New(5, time.Minute),
		WithMaxAttempts(3),
		WithBaseDelay(10*time.Millisecond),
		WithSleeper(func(_ context.Context, d time.Duration) error {
			delays = append(delays, d)
			return nil
		}),
	)

	_, _ = e.Execute(context.Background(), func(ctx context.Context) (any, error) {
		return nil, errors.New("down")
	})

	want := []time.Duration{10 * time.Millisecond, 20 * time.Millisecond}
	if len(delays) != len(want) {
		t.Fatalf("delays: got %v", delays)
	}
	for i := range want {
		if delays[i] != want[i] {
			t.Fatalf("delay %d: got %v, want %v", i, delays[i], want[i])
		}
	}
}
