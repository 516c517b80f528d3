package diagram

import "sync/atomic"

// Clock is the model's monotonic version counter.
//
// Every mutation is stamped with Clock.Next(). Collection versions are
// values of this clock, so "unchanged" can be tested by comparing two
// int64s instead of walking collections.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// Next increments and returns the clock.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the clock without incrementing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
