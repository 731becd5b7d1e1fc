// Package rungen turns descriptor trees into live stream pipelines.  A
// Builder owns the operator registry and the ambient runtime context; it
// routes each descriptor to the registered phase handler, injecting the
// implicit context so explicit options can override it.
package rungen

import (
	"github.com/freshet/freshet"
	"github.com/freshet/freshet/compiler"
	"github.com/freshet/freshet/runtime"
	"github.com/freshet/freshet/runtime/op/groupby"
	"github.com/freshet/freshet/runtime/op/merge"
	"github.com/freshet/freshet/runtime/op/window"
	"github.com/freshet/freshet/stream"
)

// Builder realizes descriptor chains over input streams.  It implements
// runtime.Builder so operators can recursively build their nested
// pipelines through the same router.
type Builder struct {
	rctx     *runtime.Context
	registry map[string]*runtime.Registration
	source   runtime.SourceFunc
}

// Option customizes a Builder at construction time.
type Option func(*Builder)

// WithSource installs the generator invoked for descriptors carrying a
// source pattern.
func WithSource(fn runtime.SourceFunc) Option {
	return func(b *Builder) { b.source = fn }
}

// WithRegistration adds or overrides an operator registration.
func WithRegistration(name string, reg *runtime.Registration) Option {
	return func(b *Builder) { b.registry[name] = reg }
}

// NewBuilder returns a Builder with the builtin operators registered.
func NewBuilder(rctx *runtime.Context, opts ...Option) *Builder {
	b := &Builder{
		rctx:     rctx,
		registry: builtins(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func builtins() map[string]*runtime.Registration {
	regs := map[string]*runtime.Registration{
		"lookup": {
			Distributable: true,
			Transform:     newLookup,
			PreAggregate:  newLookup,
			Aggregate:     newLookupAggregate,
		},
		"select": {
			Distributable: true,
			Transform:     newSelect,
			PreAggregate:  newSelect,
			Aggregate:     newSelectAggregate,
		},
		"where": {
			Distributable: true,
			Transform:     newWhere,
			PreAggregate:  newWhere,
			Aggregate:     newWhereAggregate,
		},
		"merge":    merge.Registration(),
		"zip":      merge.ZipRegistration(),
		"group-by": groupby.Registration(),
	}
	for name, reg := range window.Registrations() {
		regs[name] = reg
	}
	return regs
}

// Context returns the ambient runtime context.
func (b *Builder) Context() *runtime.Context { return b.rctx }

// Build realizes a chain of operators for the given phase over parent,
// returning the final output stream.  Construction fails fast: the first
// unknown operator, unsupported phase, or operator error aborts the
// build before any event flows.
func (b *Builder) Build(phase runtime.Phase, ops []*compiler.Descriptor, parent *stream.Stream) (*stream.Stream, error) {
	out := parent
	for _, d := range ops {
		b.inject(d)
		reg, ok := b.registry[d.Name]
		if !ok {
			return nil, freshet.Invalidf(d.Name, "unknown operator")
		}
		proc := reg.Proc(phase)
		if proc == nil {
			return nil, freshet.Invalidf(d.Name, "operator does not support the %s phase", phase)
		}
		var err error
		out, err = proc(b, d, out)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// BuildDistributed runs the chain's pre-aggregate phase independently
// over each partition stream, merges the partial outputs, and drives the
// aggregate phase over the merged stream.
func (b *Builder) BuildDistributed(ops []*compiler.Descriptor, partitions []*stream.Stream) (*stream.Stream, error) {
	partials := make([]*stream.Stream, 0, len(partitions))
	for _, p := range partitions {
		out, err := b.Build(runtime.PreAggregate, ops, p)
		if err != nil {
			return nil, err
		}
		partials = append(partials, out)
	}
	return b.Build(runtime.Aggregate, ops, stream.Merge(partials...))
}

// Source realizes a source-pattern descriptor as a fresh stream.
func (b *Builder) Source(d *compiler.Descriptor) (*stream.Stream, error) {
	if b.source == nil {
		return nil, freshet.Invalidf(d.Name, "no source generator configured for pattern %q", d.Pattern)
	}
	b.inject(d)
	return b.source(b.rctx, d)
}

// IsPeriodic reports whether any operator in the chain imposes a fixed
// emission cadence; once one does, everything downstream inherits it.
func (b *Builder) IsPeriodic(ops []*compiler.Descriptor) bool {
	for _, d := range ops {
		if reg, ok := b.registry[d.Name]; ok && reg.Periodic {
			return true
		}
	}
	return false
}

// inject layers the ambient implicit context under a descriptor's
// explicit settings, leaving anything already present untouched.
func (b *Builder) inject(d *compiler.Descriptor) {
	ambient := b.rctx.Implicit()
	if d.Implicit.Period == 0 {
		d.Implicit.Period = ambient.Period
	}
	if d.Implicit.Sched == nil {
		d.Implicit.Sched = ambient.Sched
	}
}
