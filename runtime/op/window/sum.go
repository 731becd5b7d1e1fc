package window

import (
	"github.com/freshet/freshet"
	"github.com/freshet/freshet/compiler"
	"github.com/freshet/freshet/runtime"
	"github.com/freshet/freshet/stats"
	"github.com/freshet/freshet/stream"
)

// newSum emits the total of the numeric values seen each window.  The
// same accumulation serves all three phases: summing raw values locally
// and summing partition partials globally are the same operation.
func newSum(b runtime.Builder, d *compiler.Descriptor, parent *stream.Stream) (*stream.Stream, error) {
	period, err := d.Duration("period", d.Implicit.Period)
	if err != nil {
		return nil, err
	}
	var sum stats.Sum
	return stage(b.Context(), parent, period, func(v any) {
		if f, ok := freshet.ToFloat(v); ok {
			sum.Add(f)
		}
	}, func() (any, bool) {
		return sum.Flush(), true
	}), nil
}

// newRollingSum is sum plus a running total over the windowed sums.
func newRollingSum(b runtime.Builder, d *compiler.Descriptor, parent *stream.Stream) (*stream.Stream, error) {
	period, err := d.Duration("period", d.Implicit.Period)
	if err != nil {
		return nil, err
	}
	var sum stats.Sum
	var total float64
	return stage(b.Context(), parent, period, func(v any) {
		if f, ok := freshet.ToFloat(v); ok {
			sum.Add(f)
		}
	}, func() (any, bool) {
		total += sum.Flush()
		return total, true
	}), nil
}

// newRate counts events per window.
func newRate(b runtime.Builder, d *compiler.Descriptor, parent *stream.Stream) (*stream.Stream, error) {
	period, err := d.Duration("period", d.Implicit.Period)
	if err != nil {
		return nil, err
	}
	var count stats.Counter
	return stage(b.Context(), parent, period, func(any) {
		count.Incr()
	}, func() (any, bool) {
		return count.Flush(), true
	}), nil
}
