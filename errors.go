package freshet

import (
	"errors"
	"fmt"
)

// A ValidationError is raised at pipeline construction time, before any
// stream is subscribed: malformed filter triples, ambiguous selector
// names, combinator branches without operators, a group-by without a
// facet, invalid wildcard patterns.  Construction fails fast; there is no
// partial pipeline.
type ValidationError struct {
	Op     string
	Detail string
}

func (e *ValidationError) Error() string {
	if e.Op == "" {
		return e.Detail
	}
	return e.Op + ": " + e.Detail
}

// Invalidf returns a ValidationError for operator op.
func Invalidf(op, format string, args ...any) error {
	return &ValidationError{Op: op, Detail: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is a construction-time validation
// failure.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
