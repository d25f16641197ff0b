package flow

import "sync/atomic"

// Sequencer stamps flow runs with strictly increasing seq numbers.
// Implemented by Clock (production) and testutil.DeterministicClock (tests).
type Sequencer interface {
	// Next returns the next seq number.
	Next() int64
	// Current returns the last issued seq number without incrementing.
	Current() int64
	// AdvanceTo moves the clock forward to at least seq. Never moves backward.
	AdvanceTo(seq int64)
}

// Clock is a monotonic logical clock for flow ordering.
//
// Journal entries are ordered by seq, never by wall time.
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

// AdvanceTo raises the clock to seq if it is behind.
// Used to resume after restart from the journal's last seq.
func (c *Clock) AdvanceTo(seq int64) {
	for {
		cur := c.seq.Load()
		if cur >= seq {
			return
		}
		if c.seq.CompareAndSwap(cur, seq) {
			return
		}
	}
}
