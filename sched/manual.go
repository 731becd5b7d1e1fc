package sched

import (
	"sort"
	"sync"
	"time"
)

// Manual is a deterministic Scheduler for tests.  Time only moves when
// Advance is called, firing due tasks in timestamp order.
type Manual struct {
	mu    sync.Mutex
	now   time.Time
	tasks map[int]*manualTask
	next  int
}

type manualTask struct {
	period time.Duration
	due    time.Time
	fn     func(now time.Time)
}

var _ Scheduler = (*Manual)(nil)

func NewManual(start time.Time) *Manual {
	return &Manual{now: start, tasks: make(map[int]*manualTask)}
}

func (m *Manual) Every(period time.Duration, fn func(now time.Time)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.next
	m.next++
	m.tasks[id] = &manualTask{period: period, due: m.now.Add(period), fn: fn}
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.tasks, id)
	}
}

func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Advance moves the clock forward by d, running every task that falls due,
// in order.  Callbacks run without the lock held so they may schedule or
// cancel tasks.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	deadline := m.now.Add(d)
	for {
		task, due := m.earliest(deadline)
		if task == nil {
			break
		}
		m.now = due
		task.due = due.Add(task.period)
		fn := task.fn
		m.mu.Unlock()
		fn(due)
		m.mu.Lock()
	}
	m.now = deadline
	m.mu.Unlock()
}

func (m *Manual) earliest(deadline time.Time) (*manualTask, time.Time) {
	ids := make([]int, 0, len(m.tasks))
	for id := range m.tasks {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	var best *manualTask
	var bestDue time.Time
	for _, id := range ids {
		t := m.tasks[id]
		if t.due.After(deadline) {
			continue
		}
		if best == nil || t.due.Before(bestDue) {
			best, bestDue = t, t.due
		}
	}
	return best, bestDue
}
