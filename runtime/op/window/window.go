// Package window implements the periodic windowing operators: thin
// phase-contract wrappers around the stats engine and the scheduler's
// flush cadence.  Each operator merges the ambient implicit context
// underneath its explicit options, explicit winning.
package window

import (
	"sync"
	"time"

	"github.com/freshet/freshet/runtime"
	"github.com/freshet/freshet/stream"
)

// Registrations declares every windowing operator.
func Registrations() map[string]*runtime.Registration {
	return map[string]*runtime.Registration{
		"sum": {
			Periodic:     true,
			Transform:    newSum,
			PreAggregate: newSum,
			Aggregate:    newSum,
		},
		"rolling-sum": {
			Periodic:     true,
			Transform:    newRollingSum,
			PreAggregate: newSum,
			Aggregate:    newRollingSum,
		},
		"rate": {
			Periodic:     true,
			Transform:    newRate,
			PreAggregate: newRate,
			// Partition counts are already computed; the aggregate
			// phase just sums them per window.
			Aggregate: newSum,
		},
		"moving-average": {
			Periodic:  true,
			Transform: newMovingAverage,
		},
		"moving-quantiles": {
			Periodic:  true,
			Transform: newMovingQuantiles,
		},
		"sample": {
			Periodic:      true,
			Distributable: true,
			// Per-partition sampling is the transform itself; the
			// partition samples are combined by the outer merge path.
			Transform:    newSample,
			PreAggregate: newSample,
		},
		"partition-every": {
			Periodic:      true,
			Distributable: true,
			Transform:     newPartition,
			PreAggregate:  newPartition,
			Aggregate:     newPartitionAggregate,
		},
		"dcount": {
			Periodic:     true,
			Transform:    newDCount,
			PreAggregate: newDCountPartial,
			Aggregate:    newDCountMerge,
		},
	}
}

// stage runs a windowed accumulator on the flush cadence: consume is
// applied per event, flush per scheduler tick.  A trailing partial
// window is flushed once when the input closes; an untouched one is not.
func stage(rctx *runtime.Context, parent *stream.Stream, period time.Duration, consume func(any), flush func() (any, bool)) *stream.Stream {
	out := stream.New()
	var mu sync.Mutex
	dirty := false
	stop := rctx.Sched.Every(period, func(time.Time) {
		mu.Lock()
		dirty = false
		mu.Unlock()
		if v, ok := flush(); ok {
			out.Emit(v)
		}
	})
	parent.Subscribe(func(v any) {
		mu.Lock()
		dirty = true
		mu.Unlock()
		consume(v)
	}, func(err error) {
		stop()
		if err != nil {
			out.Fail(err)
			return
		}
		mu.Lock()
		final := dirty
		mu.Unlock()
		if final {
			if v, ok := flush(); ok {
				out.Emit(v)
			}
		}
		out.Close()
	})
	return out
}
