// Package expr compiles the micro-language for extracting, selecting,
// and filtering fields of semi-structured event records.  Everything is
// compiled once at pipeline-construction time into pure functions applied
// per event; unresolved lookups are a silent absent result, never an
// error.
package expr

import (
	"strings"

	"github.com/freshet/freshet"
	"github.com/freshet/freshet/pkg/field"
)

// A Getter resolves a value from an event record.  The second result is
// false when the path does not resolve.
type Getter func(rec any) (any, bool)

// CompileGetter compiles a path specification into a Getter.  A spec is
// either a path string ("_" for the whole record, "name" for one field,
// "a.b.c" for nested navigation) or a sequence of specs compiling to a
// tuple lookup whose result is the ordered sequence of component results,
// with nil in the slots that did not resolve.
func CompileGetter(spec any) (Getter, error) {
	switch spec := spec.(type) {
	case string:
		return compilePath(field.Dotted(spec)), nil
	case []string:
		specs := make([]any, len(spec))
		for i, s := range spec {
			specs[i] = s
		}
		return compileTuple(specs)
	case []any:
		return compileTuple(spec)
	}
	return nil, freshet.Invalidf("", "bad path spec of type %T", spec)
}

func compilePath(path field.Path) Getter {
	if path.IsThis() {
		return func(rec any) (any, bool) { return rec, true }
	}
	return func(rec any) (any, bool) {
		v := rec
		for _, segment := range path {
			var ok bool
			// An intermediate non-record short-circuits to absent.
			if v, ok = lookupSegment(v, segment); !ok {
				return nil, false
			}
		}
		return v, true
	}
}

func compileTuple(specs []any) (Getter, error) {
	getters := make([]Getter, len(specs))
	for i, spec := range specs {
		g, err := CompileGetter(spec)
		if err != nil {
			return nil, err
		}
		getters[i] = g
	}
	return func(rec any) (any, bool) {
		vals := make([]any, len(getters))
		for i, g := range getters {
			vals[i], _ = g(rec)
		}
		return vals, true
	}, nil
}

// lookupSegment resolves one path segment, trying the literal string key
// first and then its symbolic form, so records whose keys originate from
// different serialization conventions resolve the same way.
func lookupSegment(rec any, name string) (any, bool) {
	m, ok := freshet.AsRecord(rec)
	if !ok {
		return nil, false
	}
	if v, ok := m[name]; ok {
		return v, true
	}
	plain := strings.TrimPrefix(name, ":")
	if v, ok := m[":"+plain]; ok {
		return v, true
	}
	if plain != name {
		if v, ok := m[plain]; ok {
			return v, true
		}
	}
	return nil, false
}
