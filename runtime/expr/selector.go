package expr

import (
	"regexp"
	"strings"

	"github.com/freshet/freshet"
)

var digitsRE = regexp.MustCompile(`^[0-9]+$`)

// A Selector reassembles a record from a named set of resolved fields.
type Selector func(rec any) map[string]any

// CompileSelector compiles a mapping from output name to path spec.  A
// pure-digit name is positional shorthand: it is discarded and the path
// spec itself becomes the output name.  Output names containing the path
// separator are rejected as ambiguous.  Fields that do not resolve are
// omitted from the output.
func CompileSelector(fields map[string]any) (Selector, error) {
	type col struct {
		name   string
		getter Getter
	}
	cols := make([]col, 0, len(fields))
	for name, spec := range fields {
		if digitsRE.MatchString(name) {
			s, ok := spec.(string)
			if !ok {
				return nil, freshet.Invalidf("select", "unnamed field needs a path string, not %T", spec)
			}
			name = s
		}
		if strings.Contains(name, ".") {
			return nil, freshet.Invalidf("select", "output name %q is ambiguous with path syntax", name)
		}
		getter, err := CompileGetter(spec)
		if err != nil {
			return nil, err
		}
		cols = append(cols, col{name, getter})
	}
	return func(rec any) map[string]any {
		out := make(map[string]any, len(cols))
		for _, c := range cols {
			if v, ok := c.getter(rec); ok {
				out[c.name] = v
			}
		}
		return out
	}, nil
}
