package stats

import (
	"math/rand"
	"sync"
)

// Reservoir keeps a uniform sample of at most size values per window
// using reservoir sampling, reset on each flush.
type Reservoir struct {
	mu   sync.Mutex
	size int
	seen int64
	vals []any
}

func NewReservoir(size int) *Reservoir {
	if size < 1 {
		size = 1
	}
	return &Reservoir{size: size}
}

func (r *Reservoir) Add(v any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen++
	if len(r.vals) < r.size {
		r.vals = append(r.vals, v)
		return
	}
	if i := rand.Int63n(r.seen); i < int64(r.size) {
		r.vals[i] = v
	}
}

// Flush returns the window's sample and resets the reservoir.
func (r *Reservoir) Flush() []any {
	r.mu.Lock()
	defer r.mu.Unlock()
	vals := r.vals
	r.vals = nil
	r.seen = 0
	return vals
}
