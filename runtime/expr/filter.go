package expr

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/freshet/freshet"
)

// A Predicate reports whether an event record passes a comparison.
type Predicate func(rec any) bool

// A Comparison is one (path, operator, literal) filter triple.
type Comparison struct {
	Path    any
	Op      string
	Literal any
}

// CompileComparison compiles one filter triple.  Supported operators are
// "=" (structural equality after symbol normalization of both sides),
// "<" and ">" (numeric when both operands coerce, otherwise ordered
// string comparison, operands used as-is), and "~=" (wildcard match where
// "*" expands to any sequence, matching anywhere in the normalized string
// form of the value).
func CompileComparison(c Comparison) (Predicate, error) {
	if c.Path == nil || c.Op == "" || c.Literal == nil {
		return nil, freshet.Invalidf("where", "comparison requires three non-null parts")
	}
	getter, err := CompileGetter(c.Path)
	if err != nil {
		return nil, err
	}
	switch c.Op {
	case "=":
		want := freshet.Normalize(c.Literal)
		wantF, wantNum := numeric(c.Literal)
		return func(rec any) bool {
			v, ok := getter(rec)
			if !ok {
				return false
			}
			if f, isNum := numeric(v); isNum && wantNum {
				return f == wantF
			}
			return reflect.DeepEqual(freshet.Normalize(v), want)
		}, nil
	case "<":
		return compileOrdered(getter, c.Literal, false), nil
	case ">":
		return compileOrdered(getter, c.Literal, true), nil
	case "~=":
		lit, ok := c.Literal.(string)
		if !ok {
			return nil, freshet.Invalidf("where", "wildcard literal must be a string, not %T", c.Literal)
		}
		re, err := compileWildcard(lit)
		if err != nil {
			return nil, freshet.Invalidf("where", "bad wildcard %q: %v", lit, err)
		}
		return func(rec any) bool {
			v, ok := getter(rec)
			if !ok {
				return false
			}
			return re.MatchString(stringify(v))
		}, nil
	}
	return nil, freshet.Invalidf("where", "unsupported comparison operator %q", c.Op)
}

// CompileAll ANDs a set of filter triples; the empty set compiles to the
// always-true predicate.
func CompileAll(comparisons []Comparison) (Predicate, error) {
	preds := make([]Predicate, len(comparisons))
	for i, c := range comparisons {
		p, err := CompileComparison(c)
		if err != nil {
			return nil, err
		}
		preds[i] = p
	}
	return func(rec any) bool {
		for _, p := range preds {
			if !p(rec) {
				return false
			}
		}
		return true
	}, nil
}

func compileOrdered(getter Getter, literal any, greater bool) Predicate {
	litF, litNum := numeric(literal)
	return func(rec any) bool {
		v, ok := getter(rec)
		if !ok {
			return false
		}
		if f, isNum := numeric(v); isNum && litNum {
			if greater {
				return f > litF
			}
			return f < litF
		}
		a, aok := v.(string)
		b, bok := literal.(string)
		if !aok || !bok {
			return false
		}
		if greater {
			return a > b
		}
		return a < b
	}
}

// numeric is like freshet.ToFloat but does not coerce strings, so ordered
// comparison of strings stays lexical.
func numeric(v any) (float64, bool) {
	if _, isString := v.(string); isString {
		return 0, false
	}
	return freshet.ToFloat(v)
}

// compileWildcard compiles a glob literal once, with "*" expanding to any
// sequence and all other text taken verbatim.  The pattern is unanchored:
// it matches anywhere in the subject.
func compileWildcard(glob string) (*regexp.Regexp, error) {
	parts := strings.Split(glob, "*")
	for i, p := range parts {
		parts[i] = regexp.QuoteMeta(p)
	}
	return regexp.Compile(strings.Join(parts, ".*"))
}

func stringify(v any) string {
	return fmt.Sprint(freshet.Normalize(v))
}
