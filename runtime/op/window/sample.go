package window

import (
	"github.com/freshet/freshet/compiler"
	"github.com/freshet/freshet/runtime"
	"github.com/freshet/freshet/stats"
	"github.com/freshet/freshet/stream"
)

const defaultSampleSize = 10

// newSample emits a uniform per-window sample of the incoming values.
// Sampling per partition composes with an outer merge, so the operator
// is distributable.
func newSample(b runtime.Builder, d *compiler.Descriptor, parent *stream.Stream) (*stream.Stream, error) {
	period, err := d.Duration("period", d.Implicit.Period)
	if err != nil {
		return nil, err
	}
	size, err := d.Int("size", defaultSampleSize)
	if err != nil {
		return nil, err
	}
	res := stats.NewReservoir(size)
	return stage(b.Context(), parent, period, res.Add, func() (any, bool) {
		vals := res.Flush()
		if len(vals) == 0 {
			return nil, false
		}
		return vals, true
	}), nil
}
