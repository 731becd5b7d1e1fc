// Package stream is the push-based substrate the operator layer runs on.
// A Stream delivers events synchronously to its subscribers in arrival
// order; fan-out duplication is simply multiple subscriptions.  Closing a
// stream propagates downstream, carrying the first error if any.
package stream

import "sync"

// A Stream is a push-based sequence of events terminated by a single
// close, which may carry an error from upstream.
type Stream struct {
	mu     sync.Mutex
	subs   map[int]*subscriber
	nextID int
	closed bool
	err    error
}

type subscriber struct {
	onEvent func(any)
	onClose func(error)
}

func New() *Stream {
	return &Stream{subs: make(map[int]*subscriber)}
}

// Subscribe registers callbacks for events and for the terminal close.
// If the stream is already closed, onClose fires immediately.  The
// returned function cancels the subscription.
func (s *Stream) Subscribe(onEvent func(any), onClose func(error)) (cancel func()) {
	s.mu.Lock()
	if s.closed {
		err := s.err
		s.mu.Unlock()
		if onClose != nil {
			onClose(err)
		}
		return func() {}
	}
	id := s.nextID
	s.nextID++
	s.subs[id] = &subscriber{onEvent: onEvent, onClose: onClose}
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// Emit pushes one event to all current subscribers.  Events emitted after
// close are dropped.
func (s *Stream) Emit(v any) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	subs := s.snapshot()
	s.mu.Unlock()
	for _, sub := range subs {
		if sub.onEvent != nil {
			sub.onEvent(v)
		}
	}
}

// Close terminates the stream normally.
func (s *Stream) Close() { s.close(nil) }

// Fail terminates the stream with an upstream error.
func (s *Stream) Fail(err error) { s.close(err) }

func (s *Stream) close(err error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.err = err
	subs := s.snapshot()
	s.subs = nil
	s.mu.Unlock()
	for _, sub := range subs {
		if sub.onClose != nil {
			sub.onClose(err)
		}
	}
}

func (s *Stream) snapshot() []*subscriber {
	subs := make([]*subscriber, 0, len(s.subs))
	for id := 0; id < s.nextID; id++ {
		if sub, ok := s.subs[id]; ok {
			subs = append(subs, sub)
		}
	}
	return subs
}

// Closed reports whether the stream has terminated.
func (s *Stream) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Err returns the terminal error, if any.
func (s *Stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Map derives a stream by applying fn to each event.
func Map(in *Stream, fn func(any) any) *Stream {
	out := New()
	in.Subscribe(func(v any) { out.Emit(fn(v)) }, out.close)
	return out
}

// FilterMap derives a stream of fn's results, dropping events for which
// fn reports false.  Absence propagates silently.
func FilterMap(in *Stream, fn func(any) (any, bool)) *Stream {
	out := New()
	in.Subscribe(func(v any) {
		if mapped, ok := fn(v); ok {
			out.Emit(mapped)
		}
	}, out.close)
	return out
}

// Filter derives a stream of the events satisfying pred.
func Filter(in *Stream, pred func(any) bool) *Stream {
	return FilterMap(in, func(v any) (any, bool) { return v, pred(v) })
}

// Merge interleaves the parents into one stream in arrival order.  The
// output closes when every parent has closed, or fails as soon as any
// parent fails.
func Merge(parents ...*Stream) *Stream {
	out := New()
	if len(parents) == 0 {
		out.Close()
		return out
	}
	var mu sync.Mutex
	remaining := len(parents)
	for _, p := range parents {
		p.Subscribe(out.Emit, func(err error) {
			if err != nil {
				out.Fail(err)
				return
			}
			mu.Lock()
			remaining--
			done := remaining == 0
			mu.Unlock()
			if done {
				out.Close()
			}
		})
	}
	return out
}

// Flatten re-emits the elements of sequence-valued events one at a time
// and passes other events through unchanged.
func Flatten(in *Stream) *Stream {
	out := New()
	in.Subscribe(func(v any) {
		if seq, ok := v.([]any); ok {
			for _, elem := range seq {
				out.Emit(elem)
			}
			return
		}
		out.Emit(v)
	}, out.close)
	return out
}
