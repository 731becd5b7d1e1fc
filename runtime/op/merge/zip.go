package merge

import (
	"sync"
	"time"

	"github.com/freshet/freshet/compiler"
	"github.com/freshet/freshet/runtime"
	"github.com/freshet/freshet/stream"
)

// ZipRegistration declares the zip combinator: periodic, and like merge
// not distributable.
func ZipRegistration() *runtime.Registration {
	return &runtime.Registration{
		Periodic:  true,
		Transform: NewZip,
	}
}

// NewZip realizes every branch like merge, then emits one mapping per
// flush tick in which each branch contributes its latest value under its
// own name.  A branch that has produced nothing by a tick has no slot in
// that tick's mapping; consumers must tolerate partial tuples.  It is
// the nested pipelines' responsibility (via the windowing operators) to
// emit at the flush cadence.
func NewZip(b runtime.Builder, d *compiler.Descriptor, parent *stream.Stream) (*stream.Stream, error) {
	period, err := d.Duration("period", d.Implicit.Period)
	if err != nil {
		return nil, err
	}
	outs, names, err := realize(b, d, parent)
	if err != nil {
		return nil, err
	}
	z := &zipper{
		out:    stream.New(),
		latest: make(map[string]any, len(outs)),
		open:   len(outs),
	}
	z.stop = b.Context().Sched.Every(period, z.tick)
	for i, branch := range outs {
		name := names[i]
		branch.Subscribe(func(v any) {
			z.mu.Lock()
			z.latest[name] = v
			z.mu.Unlock()
		}, z.branchClosed)
	}
	return z.out, nil
}

type zipper struct {
	mu     sync.Mutex
	out    *stream.Stream
	latest map[string]any
	open   int
	stop   func()
}

func (z *zipper) tick(time.Time) {
	z.mu.Lock()
	tuple := make(map[string]any, len(z.latest))
	for name, v := range z.latest {
		tuple[name] = v
	}
	z.mu.Unlock()
	z.out.Emit(tuple)
}

func (z *zipper) branchClosed(err error) {
	if err != nil {
		z.stop()
		z.out.Fail(err)
		return
	}
	z.mu.Lock()
	z.open--
	done := z.open == 0
	z.mu.Unlock()
	if done {
		z.stop()
		z.out.Close()
	}
}
