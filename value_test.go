package freshet_test

import (
	"testing"

	"github.com/freshet/freshet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	cases := []struct {
		in   any
		want any
	}{
		{":ok", "ok"},
		{"ok", "ok"},
		{":a:b", "a:b"},
		{42, 42},
		{nil, nil},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, freshet.Normalize(c.in))
	}
}

func TestKeyString(t *testing.T) {
	cases := []struct {
		in   any
		want string
	}{
		{nil, ""},
		{":host", "host"},
		{"host", "host"},
		{3.5, "3.5"},
		{int64(7), "7"},
		{42, "42"},
		{true, "true"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, freshet.KeyString(c.in))
	}
}

func TestToFloat(t *testing.T) {
	f, ok := freshet.ToFloat(int64(3))
	require.True(t, ok)
	assert.Equal(t, 3.0, f)
	f, ok = freshet.ToFloat("2.5")
	require.True(t, ok)
	assert.Equal(t, 2.5, f)
	_, ok = freshet.ToFloat("not a number")
	assert.False(t, ok)
	_, ok = freshet.ToFloat(map[string]any{})
	assert.False(t, ok)
}

func TestAsRecord(t *testing.T) {
	rec, ok := freshet.AsRecord(map[string]any{"a": 1})
	require.True(t, ok)
	assert.Equal(t, 1, rec["a"])
	_, ok = freshet.AsRecord([]any{1})
	assert.False(t, ok)
	_, ok = freshet.AsRecord(nil)
	assert.False(t, ok)
}

func TestIsValidation(t *testing.T) {
	err := freshet.Invalidf("where", "bad triple")
	require.Error(t, err)
	assert.True(t, freshet.IsValidation(err))
	assert.Equal(t, "where: bad triple", err.Error())
	assert.False(t, freshet.IsValidation(assert.AnError))
}
