package stream_test

import (
	"errors"
	"testing"

	"github.com/freshet/freshet/stream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

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

func TestFanOutOrder(t *testing.T) {
	s := stream.New()
	a, _, _ := collect(s)
	b, _, _ := collect(s)
	s.Emit(1)
	s.Emit(2)
	s.Emit(3)
	assert.Equal(t, []any{1, 2, 3}, *a)
	assert.Equal(t, []any{1, 2, 3}, *b)
}

func TestCloseDropsLaterEmits(t *testing.T) {
	s := stream.New()
	events, err, closed := collect(s)
	s.Emit(1)
	s.Close()
	s.Emit(2)
	assert.Equal(t, []any{1}, *events)
	assert.True(t, *closed)
	assert.NoError(t, *err)
	assert.True(t, s.Closed())
}

func TestSubscribeAfterClose(t *testing.T) {
	s := stream.New()
	boom := errors.New("boom")
	s.Fail(boom)
	fired := false
	s.Subscribe(nil, func(err error) {
		fired = true
		assert.Equal(t, boom, err)
	})
	assert.True(t, fired)
	assert.Equal(t, boom, s.Err())
}

func TestSubscribeCancel(t *testing.T) {
	s := stream.New()
	var events []any
	cancel := s.Subscribe(func(v any) { events = append(events, v) }, nil)
	s.Emit(1)
	cancel()
	s.Emit(2)
	assert.Equal(t, []any{1}, events)
}

func TestMapFilter(t *testing.T) {
	in := stream.New()
	doubled := stream.Map(in, func(v any) any { return v.(int) * 2 })
	big, _, closed := collect(stream.Filter(doubled, func(v any) bool { return v.(int) > 4 }))
	for i := 1; i <= 4; i++ {
		in.Emit(i)
	}
	in.Close()
	assert.Equal(t, []any{6, 8}, *big)
	assert.True(t, *closed)
}

func TestMergeInterleavesAll(t *testing.T) {
	a, b := stream.New(), stream.New()
	events, _, closed := collect(stream.Merge(a, b))
	a.Emit(1)
	b.Emit(2)
	a.Emit(3)
	a.Close()
	assert.False(t, *closed)
	b.Emit(4)
	b.Close()
	assert.Equal(t, []any{1, 2, 3, 4}, *events)
	assert.True(t, *closed)
}

func TestMergeFailsFast(t *testing.T) {
	a, b := stream.New(), stream.New()
	_, err, closed := collect(stream.Merge(a, b))
	boom := errors.New("boom")
	a.Fail(boom)
	require.True(t, *closed)
	assert.Equal(t, boom, *err)
}

func TestMergeEmpty(t *testing.T) {
	out := stream.Merge()
	assert.True(t, out.Closed())
}

func TestFlatten(t *testing.T) {
	in := stream.New()
	events, _, _ := collect(stream.Flatten(in))
	in.Emit([]any{1, 2})
	in.Emit(3)
	in.Emit([]any{})
	in.Close()
	assert.Equal(t, []any{1, 2, 3}, *events)
}
