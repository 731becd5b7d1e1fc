package stats

import (
	"sync"

	"github.com/DataDog/sketches-go/ddsketch"
)

// DefaultQuantiles are reported when a descriptor names none.
var DefaultQuantiles = []float64{0.5, 0.9, 0.99}

const relativeAccuracy = 0.01

// Quantiles tracks a moving quantile summary with a DDSketch per window.
type Quantiles struct {
	mu     sync.Mutex
	qs     []float64
	sketch *ddsketch.DDSketch
}

func NewQuantiles(qs []float64) (*Quantiles, error) {
	if len(qs) == 0 {
		qs = DefaultQuantiles
	}
	sketch, err := ddsketch.NewDefaultDDSketch(relativeAccuracy)
	if err != nil {
		return nil, err
	}
	return &Quantiles{qs: qs, sketch: sketch}, nil
}

func (q *Quantiles) Add(v float64) {
	q.mu.Lock()
	q.sketch.Add(v)
	q.mu.Unlock()
}

// Flush returns the quantile estimates for the window just ended and
// starts a fresh window.  An empty window yields ok false.
func (q *Quantiles) Flush() (map[float64]float64, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.sketch.GetCount() == 0 {
		return nil, false
	}
	out := make(map[float64]float64, len(q.qs))
	for _, p := range q.qs {
		v, err := q.sketch.GetValueAtQuantile(p)
		if err != nil {
			continue
		}
		out[p] = v
	}
	sketch, err := ddsketch.NewDefaultDDSketch(relativeAccuracy)
	if err == nil {
		q.sketch = sketch
	}
	return out, true
}
