// Package stats is the numeric statistics engine behind the windowing
// operators.  Each accumulator consumes values between flush ticks; the
// periodic cadence itself is owned by the operator layer.
package stats

import "sync"

// Sum accumulates a windowed total, reset on each flush.
type Sum struct {
	mu    sync.Mutex
	total float64
}

func (s *Sum) Add(v float64) {
	s.mu.Lock()
	s.total += v
	s.mu.Unlock()
}

// Flush returns the total accumulated since the previous flush.
func (s *Sum) Flush() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := s.total
	s.total = 0
	return total
}

// Counter counts events per window, reset on each flush.
type Counter struct {
	mu sync.Mutex
	n  int64
}

func (c *Counter) Incr() {
	c.mu.Lock()
	c.n++
	c.mu.Unlock()
}

func (c *Counter) Flush() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := c.n
	c.n = 0
	return n
}
