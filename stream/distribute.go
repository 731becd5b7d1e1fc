package stream

import (
	"fmt"
	"sync"
	"time"

	"github.com/freshet/freshet/sched"
)

// KeyFunc extracts the distribution key from an event and the value to
// forward to that key's sub-stream.  Events it cannot key (ok false) are
// dropped silently ahead of distribution.
type KeyFunc func(v any) (key any, forward any, ok bool)

// SpawnFunc builds the sub-pipeline for a newly observed key over the
// given per-key input stream.
type SpawnFunc func(key any, in *Stream) (*Stream, error)

// DistributeOpts configures keyed distribution.
type DistributeOpts struct {
	// Expiration is how long a key may stay idle before its sub-pipeline
	// is torn down.
	Expiration time.Duration
	Sched      sched.Scheduler
	// KeyID maps a key to its canonical map identity; fmt.Sprint by
	// default.
	KeyID func(key any) string
	// OnSpawn and OnExpire observe per-key lifecycle.
	OnSpawn  func(key any)
	OnExpire func(key any)
}

type entry struct {
	key  any
	in   *Stream
	last time.Time
}

type distributor struct {
	mu      sync.Mutex
	out     *Stream
	opts    DistributeOpts
	spawn   SpawnFunc
	entries map[string]*entry
	live    int
	inDone  bool
	stop    func()
}

// Distribute fans an input stream out to one dynamically created
// sub-pipeline per observed key and returns the union of their outputs.
// A key idle for at least opts.Expiration has its sub-pipeline closed and
// removed; a later event for the same key spawns a fresh one.  Closing
// the input cascade-closes every live sub-pipeline.
//
// Event dispatch is assumed to be serialized per distributor; the
// internal lock only guards against scheduler ticks racing dispatch.
func Distribute(in *Stream, key KeyFunc, spawn SpawnFunc, opts DistributeOpts) *Stream {
	if opts.KeyID == nil {
		opts.KeyID = func(key any) string { return fmt.Sprint(key) }
	}
	d := &distributor{
		out:     New(),
		opts:    opts,
		spawn:   spawn,
		entries: make(map[string]*entry),
	}
	d.stop = opts.Sched.Every(opts.Expiration, d.expire)
	in.Subscribe(func(v any) {
		k, forward, ok := key(v)
		if !ok {
			return
		}
		d.dispatch(k, forward)
	}, d.close)
	return d.out
}

func (d *distributor) dispatch(key, v any) {
	id := d.opts.KeyID(key)
	d.mu.Lock()
	e, ok := d.entries[id]
	if ok {
		e.last = d.opts.Sched.Now()
		d.mu.Unlock()
		e.in.Emit(v)
		return
	}
	e = &entry{key: key, in: New(), last: d.opts.Sched.Now()}
	d.entries[id] = e
	d.live++
	d.mu.Unlock()
	sub, err := d.spawn(key, e.in)
	if err != nil {
		d.out.Fail(err)
		return
	}
	if d.opts.OnSpawn != nil {
		d.opts.OnSpawn(key)
	}
	sub.Subscribe(d.out.Emit, d.subClosed)
	e.in.Emit(v)
}

// expire tears down every sub-pipeline idle longer than the expiration.
func (d *distributor) expire(now time.Time) {
	d.mu.Lock()
	var idle []*entry
	for id, e := range d.entries {
		if now.Sub(e.last) >= d.opts.Expiration {
			idle = append(idle, e)
			delete(d.entries, id)
		}
	}
	d.mu.Unlock()
	for _, e := range idle {
		e.in.Close()
		if d.opts.OnExpire != nil {
			d.opts.OnExpire(e.key)
		}
	}
}

// close handles the input stream closing: cascade-close all live keys and
// close the output once their sub-pipelines have drained.
func (d *distributor) close(err error) {
	d.stop()
	d.mu.Lock()
	d.inDone = true
	entries := d.entries
	d.entries = make(map[string]*entry)
	none := d.live == 0
	d.mu.Unlock()
	for _, e := range entries {
		e.in.Close()
	}
	if err != nil {
		d.out.Fail(err)
	} else if none {
		d.out.Close()
	}
}

func (d *distributor) subClosed(err error) {
	if err != nil {
		d.out.Fail(err)
		return
	}
	d.mu.Lock()
	d.live--
	done := d.inDone && d.live == 0
	d.mu.Unlock()
	if done {
		d.out.Close()
	}
}
