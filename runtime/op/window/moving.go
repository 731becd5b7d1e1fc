package window

import (
	"strconv"

	"github.com/freshet/freshet"
	"github.com/freshet/freshet/compiler"
	"github.com/freshet/freshet/runtime"
	"github.com/freshet/freshet/stats"
	"github.com/freshet/freshet/stream"
)

// defaultWindowPeriods sizes the sliding window when no window option is
// given.
const defaultWindowPeriods = 10

// newMovingAverage emits the mean over a sliding window spanning the
// configured window duration, one bucket per flush period.
func newMovingAverage(b runtime.Builder, d *compiler.Descriptor, parent *stream.Stream) (*stream.Stream, error) {
	period, err := d.Duration("period", d.Implicit.Period)
	if err != nil {
		return nil, err
	}
	window, err := d.Duration("window", defaultWindowPeriods*period)
	if err != nil {
		return nil, err
	}
	buckets := int(window / period)
	avg := stats.NewMovingAverage(buckets)
	return stage(b.Context(), parent, period, func(v any) {
		if f, ok := freshet.ToFloat(v); ok {
			avg.Add(f)
		}
	}, func() (any, bool) {
		return avg.Flush(), true
	}), nil
}

// newMovingQuantiles emits per-window quantile estimates, keyed by the
// quantile's decimal form.
func newMovingQuantiles(b runtime.Builder, d *compiler.Descriptor, parent *stream.Stream) (*stream.Stream, error) {
	period, err := d.Duration("period", d.Implicit.Period)
	if err != nil {
		return nil, err
	}
	qs, err := quantileOption(d)
	if err != nil {
		return nil, err
	}
	sketch, err := stats.NewQuantiles(qs)
	if err != nil {
		return nil, err
	}
	return stage(b.Context(), parent, period, func(v any) {
		if f, ok := freshet.ToFloat(v); ok {
			sketch.Add(f)
		}
	}, func() (any, bool) {
		ests, ok := sketch.Flush()
		if !ok {
			return nil, false
		}
		out := make(map[string]any, len(ests))
		for q, v := range ests {
			out[strconv.FormatFloat(q, 'g', -1, 64)] = v
		}
		return out, true
	}), nil
}

func quantileOption(d *compiler.Descriptor) ([]float64, error) {
	v, ok := d.Primary("quantiles")
	if !ok {
		return nil, nil
	}
	seq, ok := v.([]any)
	if !ok {
		return nil, freshet.Invalidf(d.Name, "quantiles must be a sequence")
	}
	qs := make([]float64, 0, len(seq))
	for _, elem := range seq {
		q, ok := freshet.ToFloat(elem)
		if !ok || q <= 0 || q >= 1 {
			return nil, freshet.Invalidf(d.Name, "bad quantile %v", elem)
		}
		qs = append(qs, q)
	}
	return qs, nil
}
