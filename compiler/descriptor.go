// Package compiler models the declarative query tree handed to the
// pipeline builder: one Descriptor per operator instance, parsed from
// YAML or assembled directly by an embedding program.  Descriptors are
// immutable once parsed; the ambient implicit context is injected by the
// builder and is overridden by explicit options.
package compiler

import (
	"fmt"
	"time"

	"github.com/freshet/freshet"
	"github.com/freshet/freshet/sched"
)

// Positional is the options key aliasing an operator's primary option.
const Positional = "0"

// A Descriptor describes one operator instance and its nested pipeline.
type Descriptor struct {
	Name string
	// Options maps string keys to scalars, nested Descriptors, or
	// name->Descriptor mappings (combinator branches).
	Options map[string]any
	// Operators is this node's nested pipeline, when applicable.
	Operators []*Descriptor
	// Pattern marks the descriptor as a stream source to be generated
	// fresh rather than a transform of an inherited stream.
	Pattern string
	// Implicit is the ambient context injected by the builder.
	Implicit Implicit
}

// Implicit is the ambient context every operator receives: the default
// flush period and the scheduler driving periodic stages.  Explicit
// options win over it.
type Implicit struct {
	Period time.Duration
	Sched  sched.Scheduler
}

// Option returns the value of an explicit option.
func (d *Descriptor) Option(key string) (any, bool) {
	v, ok := d.Options[key]
	return v, ok
}

// Primary returns the named option, falling back to the positional alias.
func (d *Descriptor) Primary(key string) (any, bool) {
	if v, ok := d.Options[key]; ok {
		return v, true
	}
	v, ok := d.Options[Positional]
	return v, ok
}

// Duration resolves a duration option, accepting a Go duration string or
// a number of milliseconds, with explicit options overriding the given
// ambient default.
func (d *Descriptor) Duration(key string, ambient time.Duration) (time.Duration, error) {
	v, ok := d.Options[key]
	if !ok {
		return ambient, nil
	}
	switch v := v.(type) {
	case time.Duration:
		return v, nil
	case int:
		return time.Duration(v) * time.Millisecond, nil
	case int64:
		return time.Duration(v) * time.Millisecond, nil
	case float64:
		return time.Duration(v * float64(time.Millisecond)), nil
	case string:
		dur, err := time.ParseDuration(v)
		if err != nil {
			return 0, freshet.Invalidf(d.Name, "option %q: %v", key, err)
		}
		return dur, nil
	}
	return 0, freshet.Invalidf(d.Name, "option %q: cannot interpret %T as a duration", key, v)
}

// Int resolves an integer option with a default.
func (d *Descriptor) Int(key string, def int) (int, error) {
	v, ok := d.Options[key]
	if !ok {
		return def, nil
	}
	switch v := v.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		return int(v), nil
	}
	return 0, freshet.Invalidf(d.Name, "option %q: cannot interpret %T as an integer", key, v)
}

// Branches collects the combinator branch mapping from options: every
// descriptor-valued option plus the contents of a descriptor mapping
// under the positional alias.  Scalar options are left alone.  A branch
// without a nested operators entry is a validation error.
func (d *Descriptor) Branches() (map[string]*Descriptor, error) {
	branches := make(map[string]*Descriptor)
	add := func(name string, v any) error {
		branch, ok := v.(*Descriptor)
		if !ok {
			return freshet.Invalidf(d.Name, "branch %q is not an operator pipeline", name)
		}
		if len(branch.Operators) == 0 && branch.Pattern == "" {
			return freshet.Invalidf(d.Name, "branch %q is missing an operators entry", name)
		}
		branches[name] = branch
		return nil
	}
	for key, v := range d.Options {
		switch v := v.(type) {
		case *Descriptor:
			if err := add(key, v); err != nil {
				return nil, err
			}
		case map[string]any:
			if key != Positional {
				return nil, freshet.Invalidf(d.Name, "branch %q is missing an operators entry", key)
			}
			for name, sub := range v {
				if err := add(name, sub); err != nil {
					return nil, err
				}
			}
		}
	}
	if len(branches) == 0 {
		return nil, freshet.Invalidf(d.Name, "no branches given")
	}
	return branches, nil
}

func (d *Descriptor) String() string {
	return fmt.Sprintf("%s(%d options, %d operators)", d.Name, len(d.Options), len(d.Operators))
}
