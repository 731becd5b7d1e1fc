// Package merge implements the structural combinators that fan multiple
// named sub-pipelines into one stream: merge (interleaved union) and zip
// (periodic tuples of each branch's latest value).
package merge

import (
	"sort"

	"github.com/freshet/freshet/compiler"
	"github.com/freshet/freshet/runtime"
	"github.com/freshet/freshet/stream"
)

func Registration() *runtime.Registration {
	// Branch state cannot be split across partitions without breaking
	// interleaving, so merge supports the transform phase only.
	return &runtime.Registration{Transform: New}
}

// New realizes every branch and interleaves their outputs in arrival
// order.  A branch carrying a source pattern is realized over a freshly
// generated stream; any other branch applies its nested pipeline to a
// fan-out duplicate of the combinator's input.
func New(b runtime.Builder, d *compiler.Descriptor, parent *stream.Stream) (*stream.Stream, error) {
	outs, _, err := realize(b, d, parent)
	if err != nil {
		return nil, err
	}
	return stream.Merge(outs...), nil
}

// realize builds each branch pipeline, in stable name order.
func realize(b runtime.Builder, d *compiler.Descriptor, parent *stream.Stream) ([]*stream.Stream, []string, error) {
	branches, err := d.Branches()
	if err != nil {
		return nil, nil, err
	}
	names := make([]string, 0, len(branches))
	for name := range branches {
		names = append(names, name)
	}
	sort.Strings(names)
	outs := make([]*stream.Stream, 0, len(names))
	for _, name := range names {
		branch := branches[name]
		in := parent
		if branch.Pattern != "" {
			if in, err = b.Source(branch); err != nil {
				return nil, nil, err
			}
		}
		out, err := b.Build(runtime.Transform, branch.Operators, in)
		if err != nil {
			return nil, nil, err
		}
		outs = append(outs, out)
	}
	return outs, names, nil
}
