package stats

import "sync"

// MovingAverage maintains a mean over a sliding window of flush-period
// buckets.  Each flush rotates the window forward one bucket.
type MovingAverage struct {
	mu      sync.Mutex
	buckets []bucket
	next    int
}

type bucket struct {
	sum float64
	n   int64
}

// NewMovingAverage returns a moving average over the given number of
// window buckets, at least one.
func NewMovingAverage(buckets int) *MovingAverage {
	if buckets < 1 {
		buckets = 1
	}
	return &MovingAverage{buckets: make([]bucket, buckets)}
}

func (m *MovingAverage) Add(v float64) {
	m.mu.Lock()
	m.buckets[m.next].sum += v
	m.buckets[m.next].n++
	m.mu.Unlock()
}

// Flush returns the mean over the window and rotates to the next bucket.
// An empty window yields zero.
func (m *MovingAverage) Flush() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	var sum float64
	var n int64
	for _, b := range m.buckets {
		sum += b.sum
		n += b.n
	}
	m.next = (m.next + 1) % len(m.buckets)
	m.buckets[m.next] = bucket{}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}
