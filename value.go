package freshet

import (
	"fmt"
	"strconv"
	"strings"
)

// A Pair is one keyed output of the group-by aggregator.  Key is the
// resolved facet value and Value one event from that key's sub-pipeline.
type Pair struct {
	Key   any
	Value any
}

// AsRecord returns v as a structured record if it is one.
func AsRecord(v any) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	return m, ok
}

// Normalize maps symbolic values to their plain-text form.  Records decoded
// from keyword-bearing sources carry ":"-prefixed strings; comparisons and
// group keys treat ":ok" and "ok" as the same value.
func Normalize(v any) any {
	if s, ok := v.(string); ok {
		return strings.TrimPrefix(s, ":")
	}
	return v
}

// KeyString returns the canonical string identity of a group key.
func KeyString(v any) string {
	switch v := Normalize(v).(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprint(v)
	}
}

// ToFloat coerces numeric values (and numeric strings) to float64.
func ToFloat(v any) (float64, bool) {
	switch v := v.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int8:
		return float64(v), true
	case int16:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint8:
		return float64(v), true
	case uint16:
		return float64(v), true
	case uint32:
		return float64(v), true
	case uint64:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(v, 64)
		return f, err == nil
	}
	return 0, false
}
