package compiler_test

import (
	"testing"

	"github.com/freshet/freshet"
	"github.com/freshet/freshet/compiler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseQuery(t *testing.T) {
	ops, err := compiler.ParseQuery([]byte(`
operators:
  - name: where
    options:
      "0": [latency, ">", 100]
  - name: group-by
    options:
      facet: host
      expiration: 30s
    operators:
      - name: lookup
        options: {"0": latency}
      - sum
`))
	require.NoError(t, err)
	require.Len(t, ops, 2)

	where := ops[0]
	assert.Equal(t, "where", where.Name)
	assert.Equal(t, []any{"latency", ">", 100}, where.Options["0"])

	gb := ops[1]
	assert.Equal(t, "group-by", gb.Name)
	assert.Equal(t, "host", gb.Options["facet"])
	assert.Equal(t, "30s", gb.Options["expiration"])
	require.Len(t, gb.Operators, 2)
	assert.Equal(t, "lookup", gb.Operators[0].Name)
	assert.Equal(t, "latency", gb.Operators[0].Options["0"])
	// Scalar shorthand: a bare name stands in for a full node.
	assert.Equal(t, "sum", gb.Operators[1].Name)
}

func TestParseQueryBranchOptions(t *testing.T) {
	ops, err := compiler.ParseQuery([]byte(`
operators:
  - name: zip
    options:
      loads:
        operators:
          - name: lookup
            options: {"0": load}
          - sum
      errors:
        operators:
          - rate
`))
	require.NoError(t, err)
	require.Len(t, ops, 1)
	branches, err := ops[0].Branches()
	require.NoError(t, err)
	require.Len(t, branches, 2)
	assert.Equal(t, "sum", branches["loads"].Operators[1].Name)
	assert.Equal(t, "rate", branches["errors"].Operators[0].Name)
}

func TestParseQuerySourceBranch(t *testing.T) {
	ops, err := compiler.ParseQuery([]byte(`
operators:
  - name: merge
    options:
      feed:
        pattern: events://feed
        operators:
          - name: lookup
            options: {"0": value}
`))
	require.NoError(t, err)
	branches, err := ops[0].Branches()
	require.NoError(t, err)
	assert.Equal(t, "events://feed", branches["feed"].Pattern)
}

func TestParseQueryErrors(t *testing.T) {
	cases := []struct {
		name string
		src  string
	}{
		{"empty document", ""},
		{"no operators", "operators: []"},
		{"nameless operator", "operators:\n  - options: {a: 1}"},
		{"malformed yaml", "operators: ["},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := compiler.ParseQuery([]byte(c.src))
			require.Error(t, err)
		})
	}
}

func TestParseQueryValidationError(t *testing.T) {
	_, err := compiler.ParseQuery([]byte("operators: []"))
	require.Error(t, err)
	assert.True(t, freshet.IsValidation(err))
}
