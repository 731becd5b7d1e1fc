package runtime

import (
	"github.com/freshet/freshet/compiler"
	"github.com/freshet/freshet/stream"
)

// Phase selects which half of an operator's contract a pipeline is built
// for: the single-node transform, the per-partition local computation, or
// the global combination of partial results.
type Phase int

const (
	Transform Phase = iota
	PreAggregate
	Aggregate
)

func (p Phase) String() string {
	switch p {
	case Transform:
		return "transform"
	case PreAggregate:
		return "pre-aggregate"
	case Aggregate:
		return "aggregate"
	}
	return "unknown"
}

// A Proc realizes one operator phase: given the builder (for recursive
// realization of nested pipelines), the operator's descriptor, and the
// input stream, it returns the output stream or a construction error.
type Proc func(b Builder, d *compiler.Descriptor, parent *stream.Stream) (*stream.Stream, error)

// SourceFunc generates a fresh stream for a source-pattern descriptor.
type SourceFunc func(rctx *Context, d *compiler.Descriptor) (*stream.Stream, error)

// A Registration declares an operator to the router: which phases it
// supports (nil means unsupported), whether its output is periodic, and
// whether its transform phase may run independently per partition.  The
// builder consults slot presence, never reflection.
type Registration struct {
	Periodic      bool
	Distributable bool
	Transform     Proc
	PreAggregate  Proc
	Aggregate     Proc
}

// Proc returns the handler for the given phase, or nil if unsupported.
func (r *Registration) Proc(phase Phase) Proc {
	switch phase {
	case Transform:
		return r.Transform
	case PreAggregate:
		return r.PreAggregate
	case Aggregate:
		return r.Aggregate
	}
	return nil
}

// Builder is the pipeline-builder contract handed to operator
// implementations; combinators and the group-by aggregator invoke it
// recursively on nested descriptors.
type Builder interface {
	Context() *Context
	// Build realizes a chain of operators for the given phase over parent.
	Build(phase Phase, ops []*compiler.Descriptor, parent *stream.Stream) (*stream.Stream, error)
	// Source realizes a source-pattern descriptor as a fresh stream.
	Source(d *compiler.Descriptor) (*stream.Stream, error)
	// IsPeriodic reports whether a chain of operators yields a periodic
	// output.
	IsPeriodic(ops []*compiler.Descriptor) bool
}
