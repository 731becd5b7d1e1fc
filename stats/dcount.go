package stats

import (
	"fmt"
	"sync"

	"github.com/axiomhq/hyperloglog"
)

// DCount approximates the count of distinct values per window with a
// HyperLogLog sketch.  Partials serialize the sketch so partition-local
// windows can be merged on an aggregation node.
type DCount struct {
	mu     sync.Mutex
	sketch *hyperloglog.Sketch
}

func NewDCount() *DCount {
	return &DCount{sketch: hyperloglog.New()}
}

func (d *DCount) Add(v string) {
	d.mu.Lock()
	d.sketch.Insert([]byte(v))
	d.mu.Unlock()
}

// Flush returns the distinct-count estimate for the window just ended and
// starts a fresh window.
func (d *DCount) Flush() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := d.sketch.Estimate()
	d.sketch = hyperloglog.New()
	return n
}

// FlushPartial returns the window's serialized sketch for merging.
func (d *DCount) FlushPartial() ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	b, err := d.sketch.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("dcount: marshaling partial: %w", err)
	}
	d.sketch = hyperloglog.New()
	return b, nil
}

// Merge folds a serialized partial into the current window.
func (d *DCount) Merge(partial []byte) error {
	var s hyperloglog.Sketch
	if err := s.UnmarshalBinary(partial); err != nil {
		return fmt.Errorf("dcount: unmarshaling partial: %w", err)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sketch.Merge(&s)
}
