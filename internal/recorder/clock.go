package recorder

import "sync/atomic"

// Clock is a monotonic logical clock for sample identifiers.
//
// Every appended sample is stamped with a strictly increasing seq number
// from this clock. This ensures:
// - Sample IDs are unique across all concurrent sessions
// - IDs are assigned in append order, with no wall-clock race conditions
// - A restarted process resumes above all persisted IDs
//
// Thread-safety: Clock is safe for concurrent use (atomic operations).
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a new clock starting at a specific sequence number.
// Used on startup to resume above the highest persisted sample ID.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next returns the next sequence number and increments the clock.
// Calls are linearizable - each call returns a unique, increasing value.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the current sequence number without incrementing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
