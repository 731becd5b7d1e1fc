package window

import (
	"sync"

	"github.com/freshet/freshet/compiler"
	"github.com/freshet/freshet/runtime"
	"github.com/freshet/freshet/stream"
)

// newPartition buffers the incoming values and emits them as one
// sequence per flush tick.
func newPartition(b runtime.Builder, d *compiler.Descriptor, parent *stream.Stream) (*stream.Stream, error) {
	period, err := d.Duration("period", d.Implicit.Period)
	if err != nil {
		return nil, err
	}
	var mu sync.Mutex
	var buf []any
	return stage(b.Context(), parent, period, func(v any) {
		mu.Lock()
		buf = append(buf, v)
		mu.Unlock()
	}, func() (any, bool) {
		mu.Lock()
		defer mu.Unlock()
		if len(buf) == 0 {
			return nil, false
		}
		vals := buf
		buf = nil
		return vals, true
	}), nil
}

// newPartitionAggregate recombines per-partition sequences: flatten the
// incoming partials, then re-partition on the merge node's cadence.
func newPartitionAggregate(b runtime.Builder, d *compiler.Descriptor, parent *stream.Stream) (*stream.Stream, error) {
	return newPartition(b, d, stream.Flatten(parent))
}
