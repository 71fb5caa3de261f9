package breaker

import (
	"errors"
	"sync"
	"time"
)

// State represents the current state of the circuit.
type State int

const (
	// StateClosed allows calls to pass through.
	StateClosed State = iota
	// StateOpen rejects calls without attempting them.
	StateOpen
	// StateHalfOpen allows one trial call to test recovery.
	StateHalfOpen
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// ErrCircuitOpen is returned when a call is rejected because the circuit is
// open. Callers can treat it as structured status rather than a fault: the
// downstream dependency is known-bad and is not being hammered.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// Breaker is a three-state circuit breaker. Closed counts consecutive
// failures and opens at a threshold; open rejects calls for a cooldown
// window, then half-opens; half-open admits one trial whose outcome decides
// between closing and reopening. Safe for concurrent use. State is held in
// memory only and resets on process restart.
type Breaker struct {
	failureThreshold int
	cooldown         time.Duration
	now              func() time.Time

	mu              sync.Mutex
	state           State
	failures        int
	lastFailureTime time.Time
}

// New returns a closed breaker that opens after failureThreshold consecutive
// failures and stays open for cooldown before allowing a trial.
func New(failureThreshold int, cooldown time.Duration) *Breaker {
	if failureThreshold <= 0 {
		failureThreshold = 3
	}
	if cooldown <= 0 {
		cooldown = 60 * time.Second
	}
	return &Breaker{
		failureThreshold: failureThreshold,
		cooldown:         cooldown,
		now:              time.Now,
		state:            StateClosed,
	}
}

// Allow reports whether a call may proceed, transitioning open to half-open
// once the cooldown has elapsed.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return true
	case StateOpen:
		if b.now().Sub(b.lastFailureTime) >= b.cooldown {
			b.state = StateHalfOpen
			return true
		}
		return false
	case StateHalfOpen:
		return true
	default:
		return false
	}
}

// RecordSuccess resets the failure run; a successful half-open trial closes
// the circuit.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		b.failures = 0
	case StateHalfOpen:
		b.state = StateClosed
		b.failures = 0
	}
}

// RecordFailure counts a failure; at the threshold the circuit opens, and a
// failed half-open trial reopens it immediately.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.lastFailureTime = b.now()

	switch b.state {
	case StateClosed:
		b.failures++
		if b.failures >= b.failureThreshold {
			b.state = StateOpen
		}
	case StateHalfOpen:
		b.state = StateOpen
		b.failures = b.failureThreshold
	}
}

// State returns the state as Allow would see it, accounting for an elapsed
// cooldown.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateOpen && b.now().Sub(b.lastFailureTime) >= b.cooldown {
		return StateHalfOpen
	}
	return b.state
}

// Reset returns the breaker to closed with no recorded failures.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = StateClosed
	b.failures = 0
	b.lastFailureTime = time.Time{}
}

// Stats exposes breaker internals for supervisory reporting.
type Stats struct {
	State           string
	Failures        int
	LastFailureTime time.Time
}

// Stats returns a snapshot of the breaker's bookkeeping.
func (b *Breaker) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Stats{
		State:           b.state.String(),
		Failures:        b.failures,
		LastFailureTime: b.lastFailureTime,
	}
}
