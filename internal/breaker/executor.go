package breaker

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Func is a unit of work guarded by an Executor. The context carries the
// per-call timeout.
type Func func(ctx context.Context) (any, error)

// Executor wraps calls in a circuit breaker plus bounded retries with
// linearly increasing backoff. A final failure counts once against the
// breaker; intermediate retries do not.
type Executor struct {
	breaker     *Breaker
	maxAttempts int
	baseDelay   time.Duration
	callTimeout time.Duration
	sleep       func(ctx context.Context, d time.Duration) error
}

// ExecutorOption configures optional Executor behavior.
type ExecutorOption func(*Executor)

// WithMaxAttempts sets the retry bound (defaults to 3).
func WithMaxAttempts(attempts int) ExecutorOption {
	return func(e *Executor) {
		if attempts > 0 {
			e.maxAttempts = attempts
		}
	}
}

// WithBaseDelay sets the backoff base; attempt n waits base × n.
func WithBaseDelay(d time.Duration) ExecutorOption {
	return func(e *Executor) {
		if d >= 0 {
			e.baseDelay = d
		}
	}
}

// WithCallTimeout bounds each individual attempt.
func WithCallTimeout(d time.Duration) ExecutorOption {
	return func(e *Executor) {
		if d > 0 {
			e.callTimeout = d
		}
	}
}

// WithSleeper overrides how retry sleeps are performed (useful for tests).
func WithSleeper(sleep func(ctx context.Context, d time.Duration) error) ExecutorOption {
	return func(e *Executor) {
		if sleep != nil {
			e.sleep = sleep
		}
	}
}

// NewExecutor returns an executor guarded by b.
func NewExecutor(b *Breaker, opts ...ExecutorOption) *Executor {
	e := &Executor{
		breaker:     b,
		maxAttempts: 3,
		baseDelay:   500 * time.Millisecond,
		callTimeout: 30 * time.Second,
		sleep:       sleepCtx,
	}
	if e.breaker == nil {
		e.breaker = New(0, 0)
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Breaker returns the underlying circuit breaker for status reporting.
func (e *Executor) Breaker() *Breaker {
	return e.breaker
}

// Execute runs fn through the breaker with retries. See ExecuteWithFallback.
func (e *Executor) Execute(ctx context.Context, fn Func) (any, error) {
	return e.ExecuteWithFallback(ctx, fn, nil)
}

// ExecuteWithFallback runs fn; on each retry after the first failure the
// fallback (when non-nil) is substituted, letting callers degrade to a
// simpler request without changing the breaker's bookkeeping. When the
// circuit is open the call fails immediately with ErrCircuitOpen and fn is
// never invoked. The final failure is annotated with the breaker state.
func (e *Executor) ExecuteWithFallback(ctx context.Context, fn, fallback Func) (any, error) {
	if !e.breaker.Allow() {
		return nil, fmt.Errorf("%w: retry after cooldown", ErrCircuitOpen)
	}

	var lastErr error
	for attempt := 1; attempt <= e.maxAttempts; attempt++ {
		call := fn
		if attempt > 1 && fallback != nil {
			call = fallback
		}

		result, err := e.attempt(ctx, call)
		if err == nil {
			e.breaker.RecordSuccess()
			return result, nil
		}
		lastErr = err

		if errors.Is(err, context.Canceled) || ctx.Err() != nil {
			break
		}
		if attempt == e.maxAttempts {
			break
		}
		if err := e.sleep(ctx, e.baseDelay*time.Duration(attempt)); err != nil {
			lastErr = err
			break
		}
	}

	// A cancelled caller is not evidence against the downstream dependency.
	if ctx.Err() != nil {
		return nil, fmt.Errorf("call aborted: %w", lastErr)
	}

	e.breaker.RecordFailure()
	return nil, fmt.Errorf("call failed after %d attempts (breaker %s): %w",
		e.maxAttempts, e.breaker.State(), lastErr)
}

func (e *Executor) attempt(ctx context.Context, fn Func) (any, error) {
	callCtx, cancel := context.WithTimeout(ctx, e.callTimeout)
	defer cancel()
	return fn(callCtx)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
