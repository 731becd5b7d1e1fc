package window

import (
	"github.com/freshet/freshet"
	"github.com/freshet/freshet/compiler"
	"github.com/freshet/freshet/runtime"
	"github.com/freshet/freshet/stats"
	"github.com/freshet/freshet/stream"
)

// newDCount emits a per-window approximate distinct count of the
// incoming values.
func newDCount(b runtime.Builder, d *compiler.Descriptor, parent *stream.Stream) (*stream.Stream, error) {
	period, err := d.Duration("period", d.Implicit.Period)
	if err != nil {
		return nil, err
	}
	dc := stats.NewDCount()
	return stage(b.Context(), parent, period, func(v any) {
		dc.Add(freshet.KeyString(v))
	}, func() (any, bool) {
		return dc.Flush(), true
	}), nil
}

// newDCountPartial is the partition-local half: it emits the window's
// serialized sketch instead of an estimate so sketches can be merged on
// the aggregation node.
func newDCountPartial(b runtime.Builder, d *compiler.Descriptor, parent *stream.Stream) (*stream.Stream, error) {
	period, err := d.Duration("period", d.Implicit.Period)
	if err != nil {
		return nil, err
	}
	dc := stats.NewDCount()
	return stage(b.Context(), parent, period, func(v any) {
		dc.Add(freshet.KeyString(v))
	}, func() (any, bool) {
		partial, err := dc.FlushPartial()
		if err != nil {
			return nil, false
		}
		return partial, true
	}), nil
}

// newDCountMerge folds per-partition sketches back together and emits
// the combined estimate per window.  Partials that fail to decode are
// skipped.
func newDCountMerge(b runtime.Builder, d *compiler.Descriptor, parent *stream.Stream) (*stream.Stream, error) {
	period, err := d.Duration("period", d.Implicit.Period)
	if err != nil {
		return nil, err
	}
	dc := stats.NewDCount()
	return stage(b.Context(), parent, period, func(v any) {
		if partial, ok := v.([]byte); ok {
			dc.Merge(partial)
		}
	}, func() (any, bool) {
		return dc.Flush(), true
	}), nil
}
