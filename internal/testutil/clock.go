package testutil

import "sync"

// StepClock hands out step sequence numbers for harness runs.
//
// The first call to Next returns 1. Reset lets one scenario be run again
// with the same numbering. All methods are safe for concurrent use.
type StepClock struct {
	mu  sync.Mutex
	seq int64
}

// NewStepClock returns a clock at 0.
func NewStepClock() *StepClock {
	return &StepClock{}
}

// Next advances the clock and returns the new value.
func (c *StepClock) Next() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	return c.seq
}

// Current returns the last value handed out, or 0.
func (c *StepClock) Current() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seq
}

// Reset puts the clock back to 0.
func (c *StepClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq = 0
}
