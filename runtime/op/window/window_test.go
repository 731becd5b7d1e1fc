package window_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/freshet/freshet/compiler"
	"github.com/freshet/freshet/compiler/rungen"
	"github.com/freshet/freshet/runtime"
	"github.com/freshet/freshet/sched"
	"github.com/freshet/freshet/stream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func build(t *testing.T, phase runtime.Phase, d *compiler.Descriptor, in *stream.Stream) (*stream.Stream, *sched.Manual) {
	t.Helper()
	m := sched.NewManual(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	rctx := runtime.NewContext(context.Background(), nil, m)
	t.Cleanup(rctx.Cancel)
	out, err := rungen.NewBuilder(rctx).Build(phase, []*compiler.Descriptor{d}, in)
	require.NoError(t, err)
	return out, m
}

func collect(s *stream.Stream) (*[]any, *error, *bool) {
	var events []any
	var err error
	closed := false
	s.Subscribe(func(v any) {
		events = append(events, v)
	}, func(e error) {
		err = e
		closed = true
	})
	return &events, &err, &closed
}

func op(name string, options map[string]any) *compiler.Descriptor {
	return &compiler.Descriptor{Name: name, Options: options}
}

func TestSumWindows(t *testing.T) {
	in := stream.New()
	out, m := build(t, runtime.Transform, op("sum", nil), in)
	events, _, _ := collect(out)
	in.Emit(1)
	in.Emit(2.5)
	in.Emit("3")
	in.Emit("skip me")
	m.Advance(time.Second)
	in.Emit(4)
	m.Advance(time.Second)
	assert.Equal(t, []any{6.5, 4.0}, *events)
}

func TestSumFlushesPartialWindowOnClose(t *testing.T) {
	in := stream.New()
	out, m := build(t, runtime.Transform, op("sum", nil), in)
	events, _, closed := collect(out)
	in.Emit(5)
	m.Advance(time.Second)
	in.Emit(7)
	in.Close()
	assert.Equal(t, []any{5.0, 7.0}, *events)
	assert.True(t, *closed)
}

func TestSumUntouchedWindowNotFlushedOnClose(t *testing.T) {
	in := stream.New()
	out, m := build(t, runtime.Transform, op("sum", nil), in)
	events, _, _ := collect(out)
	in.Emit(5)
	m.Advance(time.Second)
	in.Close()
	assert.Equal(t, []any{5.0}, *events)
}

func TestRollingSum(t *testing.T) {
	in := stream.New()
	out, m := build(t, runtime.Transform, op("rolling-sum", nil), in)
	events, _, _ := collect(out)
	in.Emit(1)
	m.Advance(time.Second)
	in.Emit(2)
	m.Advance(time.Second)
	m.Advance(time.Second)
	assert.Equal(t, []any{1.0, 3.0, 3.0}, *events)
}

func TestRate(t *testing.T) {
	in := stream.New()
	out, m := build(t, runtime.Transform, op("rate", nil), in)
	events, _, _ := collect(out)
	in.Emit("a")
	in.Emit("b")
	m.Advance(time.Second)
	m.Advance(time.Second)
	assert.Equal(t, []any{int64(2), int64(0)}, *events)
}

func TestMovingAverage(t *testing.T) {
	in := stream.New()
	out, m := build(t, runtime.Transform, op("moving-average", map[string]any{
		"window": "2s",
	}), in)
	events, _, _ := collect(out)
	in.Emit(2)
	m.Advance(time.Second)
	in.Emit(4)
	m.Advance(time.Second)
	// Both windows are still in the two-bucket span.
	m.Advance(time.Second)
	assert.Equal(t, []any{2.0, 3.0, 4.0}, *events)
}

func TestMovingQuantiles(t *testing.T) {
	in := stream.New()
	out, m := build(t, runtime.Transform, op("moving-quantiles", map[string]any{
		"quantiles": []any{0.5},
	}), in)
	events, _, _ := collect(out)
	for i := 1; i <= 100; i++ {
		in.Emit(i)
	}
	m.Advance(time.Second)
	// An empty window is suppressed.
	m.Advance(time.Second)
	require.Len(t, *events, 1)
	ests := (*events)[0].(map[string]any)
	assert.InDelta(t, 50, ests["0.5"].(float64), 2)
}

func TestMovingQuantilesValidation(t *testing.T) {
	m := sched.NewManual(time.Unix(0, 0))
	rctx := runtime.NewContext(context.Background(), nil, m)
	defer rctx.Cancel()
	b := rungen.NewBuilder(rctx)
	_, err := b.Build(runtime.Transform, []*compiler.Descriptor{
		op("moving-quantiles", map[string]any{"quantiles": []any{1.5}}),
	}, stream.New())
	require.Error(t, err)
}

func TestSample(t *testing.T) {
	in := stream.New()
	out, m := build(t, runtime.Transform, op("sample", map[string]any{"size": 3}), in)
	events, _, _ := collect(out)
	for i := 0; i < 50; i++ {
		in.Emit(i)
	}
	m.Advance(time.Second)
	m.Advance(time.Second)
	require.Len(t, *events, 1)
	assert.Len(t, (*events)[0].([]any), 3)
}

func TestSamplePreAggregate(t *testing.T) {
	in := stream.New()
	out, m := build(t, runtime.PreAggregate, op("sample", map[string]any{"size": 2}), in)
	events, _, _ := collect(out)
	for i := 0; i < 20; i++ {
		in.Emit(i)
	}
	m.Advance(time.Second)
	require.Len(t, *events, 1)
	assert.Len(t, (*events)[0].([]any), 2)
}

func TestPartitionEvery(t *testing.T) {
	in := stream.New()
	out, m := build(t, runtime.Transform, op("partition-every", nil), in)
	events, _, _ := collect(out)
	in.Emit(1)
	in.Emit(2)
	m.Advance(time.Second)
	in.Emit(3)
	m.Advance(time.Second)
	m.Advance(time.Second)
	assert.Equal(t, []any{[]any{1, 2}, []any{3}}, *events)
}

func TestPartitionEveryAggregateRecombines(t *testing.T) {
	in := stream.New()
	out, m := build(t, runtime.Aggregate, op("partition-every", nil), in)
	events, _, _ := collect(out)
	// Two per-partition sequences from the same window.
	in.Emit([]any{1, 2})
	in.Emit([]any{3})
	m.Advance(time.Second)
	assert.Equal(t, []any{[]any{1, 2, 3}}, *events)
}

func TestDCountPhases(t *testing.T) {
	in := stream.New()
	out, m := build(t, runtime.Transform, op("dcount", nil), in)
	events, _, _ := collect(out)
	for _, v := range []any{"a", "b", "a", "c"} {
		in.Emit(v)
	}
	m.Advance(time.Second)
	require.Equal(t, []any{uint64(3)}, *events)
}

func TestDCountDistributed(t *testing.T) {
	left, right := stream.New(), stream.New()
	m := sched.NewManual(time.Unix(0, 0))
	rctx := runtime.NewContext(context.Background(), nil, m)
	defer rctx.Cancel()
	b := rungen.NewBuilder(rctx)
	out, err := b.BuildDistributed([]*compiler.Descriptor{op("dcount", nil)}, []*stream.Stream{left, right})
	require.NoError(t, err)
	events, _, _ := collect(out)
	for _, v := range []any{"a", "b", "c"} {
		left.Emit(v)
	}
	for _, v := range []any{"c", "d"} {
		right.Emit(v)
	}
	// One tick for the partition sketches, one for the merged window.
	m.Advance(2 * time.Second)
	require.NotEmpty(t, *events)
	assert.Equal(t, uint64(4), (*events)[0])
}

func TestWindowUpstreamFailure(t *testing.T) {
	in := stream.New()
	out, _ := build(t, runtime.Transform, op("sum", nil), in)
	_, err, closed := collect(out)
	boom := errors.New("boom")
	in.Fail(boom)
	require.True(t, *closed)
	assert.Equal(t, boom, *err)
}
