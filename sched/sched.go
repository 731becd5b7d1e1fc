// Package sched provides the timer service used by periodic pipeline
// stages.  A Scheduler handle is passed explicitly through pipeline
// construction; the wall-clock implementation is defaulted once at the
// outermost boundary and tests substitute a Manual clock.
package sched

import (
	"sync"
	"time"
)

// DefaultPeriod is the flush period applied when a descriptor carries none.
const DefaultPeriod = time.Second

// A Scheduler runs periodic callbacks on behalf of pipeline stages.
type Scheduler interface {
	// Every schedules fn to run once per period until the returned stop
	// function is called.  fn receives the scheduler's notion of the
	// current time.
	Every(period time.Duration, fn func(now time.Time)) (stop func())
	Now() time.Time
}

// Ticker is the wall-clock Scheduler.  Each task runs on its own
// goroutine driven by a time.Ticker.
type Ticker struct {
	mu    sync.Mutex
	stops []chan struct{}
}

var _ Scheduler = (*Ticker)(nil)

func NewTicker() *Ticker {
	return &Ticker{}
}

func (t *Ticker) Every(period time.Duration, fn func(now time.Time)) func() {
	done := make(chan struct{})
	t.mu.Lock()
	t.stops = append(t.stops, done)
	t.mu.Unlock()
	var once sync.Once
	go func() {
		tk := time.NewTicker(period)
		defer tk.Stop()
		for {
			select {
			case now := <-tk.C:
				fn(now)
			case <-done:
				return
			}
		}
	}()
	return func() { once.Do(func() { close(done) }) }
}

func (t *Ticker) Now() time.Time { return time.Now() }

// Stop cancels every task started through this Ticker.
func (t *Ticker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, done := range t.stops {
		select {
		case <-done:
		default:
			close(done)
		}
	}
	t.stops = nil
}
