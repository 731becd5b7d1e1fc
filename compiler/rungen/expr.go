package rungen

import (
	"github.com/freshet/freshet"
	"github.com/freshet/freshet/compiler"
	"github.com/freshet/freshet/runtime"
	"github.com/freshet/freshet/runtime/expr"
	"github.com/freshet/freshet/stream"
)

// The projection operators run during the transform and pre-aggregate
// phases.  On an aggregation node their work is already done, so the
// aggregate phase validates the descriptor and passes partials through
// untouched, keeping a mixed chain buildable in every phase.

func lookupGetter(d *compiler.Descriptor) (expr.Getter, error) {
	spec, ok := d.Primary("path")
	if !ok {
		return nil, freshet.Invalidf(d.Name, "required path is missing")
	}
	return expr.CompileGetter(spec)
}

// newLookup projects each event to the value at the descriptor's path
// spec.  Absence is a value: an unresolved path yields nil, never an
// error or a dropped event.
func newLookup(b runtime.Builder, d *compiler.Descriptor, parent *stream.Stream) (*stream.Stream, error) {
	getter, err := lookupGetter(d)
	if err != nil {
		return nil, err
	}
	return stream.Map(parent, func(v any) any {
		out, _ := getter(v)
		return out
	}), nil
}

func newLookupAggregate(b runtime.Builder, d *compiler.Descriptor, parent *stream.Stream) (*stream.Stream, error) {
	if _, err := lookupGetter(d); err != nil {
		return nil, err
	}
	return parent, nil
}

func selectSelector(d *compiler.Descriptor) (expr.Selector, error) {
	spec, ok := d.Primary("fields")
	if !ok {
		return nil, freshet.Invalidf(d.Name, "required field mapping is missing")
	}
	fields, ok := spec.(map[string]any)
	if !ok {
		return nil, freshet.Invalidf(d.Name, "field mapping must be a record, not %T", spec)
	}
	return expr.CompileSelector(fields)
}

// newSelect reshapes each event into a record of the named fields.
func newSelect(b runtime.Builder, d *compiler.Descriptor, parent *stream.Stream) (*stream.Stream, error) {
	sel, err := selectSelector(d)
	if err != nil {
		return nil, err
	}
	return stream.Map(parent, func(v any) any {
		return sel(v)
	}), nil
}

func newSelectAggregate(b runtime.Builder, d *compiler.Descriptor, parent *stream.Stream) (*stream.Stream, error) {
	if _, err := selectSelector(d); err != nil {
		return nil, err
	}
	return parent, nil
}

func wherePredicate(d *compiler.Descriptor) (expr.Predicate, error) {
	spec, ok := d.Primary("comparisons")
	if !ok {
		return nil, freshet.Invalidf(d.Name, "required comparison is missing")
	}
	comparisons, err := parseComparisons(d.Name, spec)
	if err != nil {
		return nil, err
	}
	return expr.CompileAll(comparisons)
}

// newWhere filters events through one or more comparison triples, ANDed.
// The primary option is either a single triple [path, op, literal] or a
// list of triples.
func newWhere(b runtime.Builder, d *compiler.Descriptor, parent *stream.Stream) (*stream.Stream, error) {
	pred, err := wherePredicate(d)
	if err != nil {
		return nil, err
	}
	return stream.Filter(parent, func(v any) bool {
		return pred(v)
	}), nil
}

func newWhereAggregate(b runtime.Builder, d *compiler.Descriptor, parent *stream.Stream) (*stream.Stream, error) {
	if _, err := wherePredicate(d); err != nil {
		return nil, err
	}
	return parent, nil
}

func parseComparisons(op string, spec any) ([]expr.Comparison, error) {
	elems, ok := spec.([]any)
	if !ok || len(elems) == 0 {
		return nil, freshet.Invalidf(op, "comparison must be a triple or a list of triples, not %T", spec)
	}
	// A lone triple is distinguished from a list of triples by its
	// elements: triples never nest directly inside a triple.
	if _, nested := elems[0].([]any); !nested {
		c, err := parseTriple(op, elems)
		if err != nil {
			return nil, err
		}
		return []expr.Comparison{c}, nil
	}
	comparisons := make([]expr.Comparison, 0, len(elems))
	for _, e := range elems {
		triple, ok := e.([]any)
		if !ok {
			return nil, freshet.Invalidf(op, "comparison must be a triple, not %T", e)
		}
		c, err := parseTriple(op, triple)
		if err != nil {
			return nil, err
		}
		comparisons = append(comparisons, c)
	}
	return comparisons, nil
}

func parseTriple(op string, elems []any) (expr.Comparison, error) {
	if len(elems) != 3 {
		return expr.Comparison{}, freshet.Invalidf(op, "comparison requires three parts, got %d", len(elems))
	}
	cmp, ok := elems[1].(string)
	if !ok {
		return expr.Comparison{}, freshet.Invalidf(op, "comparison operator must be a string, not %T", elems[1])
	}
	return expr.Comparison{Path: elems[0], Op: cmp, Literal: elems[2]}, nil
}
