package field

import "strings"

// This is the path spec meaning the whole record.
const This = "_"

// A Path names a field with a sequence of record segments from the root.
// The empty path refers to the record itself.
type Path []string

func (p Path) String() string {
	if len(p) == 0 {
		return This
	}
	return strings.Join(p, ".")
}

func (p Path) IsThis() bool {
	return len(p) == 0
}

func (p Path) Equal(to Path) bool {
	if len(p) != len(to) {
		return false
	}
	for i, s := range p {
		if s != to[i] {
			return false
		}
	}
	return true
}

// Dotted parses a dotted path string.  The identity placeholder and the
// empty string both parse to the empty path.
func Dotted(s string) Path {
	if s == "" || s == This {
		return nil
	}
	return strings.Split(s, ".")
}
