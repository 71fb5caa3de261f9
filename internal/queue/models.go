package queue

import "time"

// Envelope wraps an opaque payload with the identity and enqueue time the
// queue assigns on push. Envelopes are immutable once written; the queue only
// moves them between directories.
type Envelope struct {
	ID         string         `json:"id"`
	EnqueuedAt time.Time      `json:"enqueued_at"`
	Payload    map[string]any `json:"payload"`
}

// Item is a claimed envelope. Ownership transfers to the caller on Pop; the
// caller eventually acknowledges, requeues, or abandons it to the reclaim
// sweep.
type Item struct {
	Envelope

	// key is the item's filename, shared between pending/ and claimed/.
	key string
}

// Key returns the item's filename within the queue directories.
func (i *Item) Key() string {
	return i.key
}

// Stats summarizes queue directory counts.
type Stats struct {
	Pending int
	Claimed int
	Dead    int
}

// Total returns the number of items in any state.
func (s Stats) Total() int {
	return s.Pending + s.Claimed + s.Dead
}
