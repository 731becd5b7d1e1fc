package stats_test

import (
	"testing"

	"github.com/freshet/freshet/stats"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSum(t *testing.T) {
	var s stats.Sum
	s.Add(1.5)
	s.Add(2.5)
	assert.Equal(t, 4.0, s.Flush())
	assert.Equal(t, 0.0, s.Flush())
}

func TestCounter(t *testing.T) {
	var c stats.Counter
	for i := 0; i < 5; i++ {
		c.Incr()
	}
	assert.Equal(t, int64(5), c.Flush())
	assert.Equal(t, int64(0), c.Flush())
}

func TestMovingAverage(t *testing.T) {
	m := stats.NewMovingAverage(3)
	m.Add(1)
	m.Add(3)
	assert.Equal(t, 2.0, m.Flush())
	m.Add(6)
	// Window still covers both buckets.
	assert.Equal(t, 10.0/3.0, m.Flush())
	assert.Equal(t, 10.0/3.0, m.Flush())
	// The first bucket has rotated out.
	assert.Equal(t, 6.0, m.Flush())
}

func TestMovingAverageEmpty(t *testing.T) {
	m := stats.NewMovingAverage(2)
	assert.Equal(t, 0.0, m.Flush())
}

func TestQuantiles(t *testing.T) {
	q, err := stats.NewQuantiles(nil)
	require.NoError(t, err)
	for i := 1; i <= 100; i++ {
		q.Add(float64(i))
	}
	ests, ok := q.Flush()
	require.True(t, ok)
	assert.InDelta(t, 50, ests[0.5], 2)
	assert.InDelta(t, 90, ests[0.9], 2)
	assert.InDelta(t, 99, ests[0.99], 2)

	// The window resets on flush.
	_, ok = q.Flush()
	assert.False(t, ok)
}

func TestReservoir(t *testing.T) {
	r := stats.NewReservoir(5)
	for i := 0; i < 100; i++ {
		r.Add(i)
	}
	vals := r.Flush()
	assert.Len(t, vals, 5)
	for _, v := range vals {
		n := v.(int)
		assert.GreaterOrEqual(t, n, 0)
		assert.Less(t, n, 100)
	}
	assert.Empty(t, r.Flush())
}

func TestReservoirSmallWindow(t *testing.T) {
	r := stats.NewReservoir(10)
	r.Add("a")
	r.Add("b")
	assert.Equal(t, []any{"a", "b"}, r.Flush())
}

func TestDCount(t *testing.T) {
	d := stats.NewDCount()
	for _, v := range []string{"a", "b", "c", "a", "b"} {
		d.Add(v)
	}
	assert.Equal(t, uint64(3), d.Flush())
	assert.Equal(t, uint64(0), d.Flush())
}

func TestDCountMergePartials(t *testing.T) {
	left, right := stats.NewDCount(), stats.NewDCount()
	for _, v := range []string{"a", "b", "c"} {
		left.Add(v)
	}
	for _, v := range []string{"c", "d"} {
		right.Add(v)
	}
	lp, err := left.FlushPartial()
	require.NoError(t, err)
	rp, err := right.FlushPartial()
	require.NoError(t, err)

	merged := stats.NewDCount()
	require.NoError(t, merged.Merge(lp))
	require.NoError(t, merged.Merge(rp))
	assert.Equal(t, uint64(4), merged.Flush())
}
