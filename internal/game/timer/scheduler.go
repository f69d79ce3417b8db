package timer

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Cancel stops a scheduled callback. Calling it more than once is a no-op.
type Cancel func()

// Scheduler runs fn once after d.
type Scheduler interface {
	After(d time.Duration, fn func()) Cancel
}

// LoopScheduler delivers callbacks through post, which hands them to the
// goroutine that owns the match state.
type LoopScheduler struct {
	post func(fn func())
}

// NewLoopScheduler creates a LoopScheduler.
//
// Precondition: post must be non-nil and must not block indefinitely.
func NewLoopScheduler(post func(fn func())) *LoopScheduler {
	return &LoopScheduler{post: post}
}

// After arms a wall-clock timer. A callback cancelled after it was posted
// but before the loop ran it is dropped.
func (s *LoopScheduler) After(d time.Duration, fn func()) Cancel {
	var stopped atomic.Bool
	t := time.AfterFunc(d, func() {
		s.post(func() {
			if !stopped.Load() {
				fn()
			}
		})
	})
	return func() {
		stopped.Store(true)
		t.Stop()
	}
}

type manualTask struct {
	at       time.Duration
	seq      int
	fn       func()
	canceled bool
}

// ManualScheduler is a virtual clock. Callbacks run synchronously inside
// Advance in due order, including callbacks scheduled while advancing.
type ManualScheduler struct {
	mu    sync.Mutex
	now   time.Duration
	seq   int
	tasks []*manualTask
}

// NewManualScheduler returns a ManualScheduler at virtual time zero.
func NewManualScheduler() *ManualScheduler {
	return &ManualScheduler{}
}

// After schedules fn at Now()+d.
func (s *ManualScheduler) After(d time.Duration, fn func()) Cancel {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	task := &manualTask{at: s.now + d, seq: s.seq, fn: fn}
	s.tasks = append(s.tasks, task)
	return func() {
		s.mu.Lock()
		task.canceled = true
		s.mu.Unlock()
	}
}

// Advance moves virtual time forward by d, running every callback that falls due.
func (s *ManualScheduler) Advance(d time.Duration) {
	s.mu.Lock()
	target := s.now + d
	s.mu.Unlock()
	for {
		task := s.popDue(target)
		if task == nil {
			break
		}
		task.fn()
	}
	s.mu.Lock()
	s.now = target
	s.mu.Unlock()
}

func (s *ManualScheduler) popDue(target time.Duration) *manualTask {
	s.mu.Lock()
	defer s.mu.Unlock()
	live := s.tasks[:0]
	for _, t := range s.tasks {
		if !t.canceled {
			live = append(live, t)
		}
	}
	s.tasks = live
	sort.Slice(s.tasks, func(i, j int) bool {
		if s.tasks[i].at == s.tasks[j].at {
			return s.tasks[i].seq < s.tasks[j].seq
		}
		return s.tasks[i].at < s.tasks[j].at
	})
	if len(s.tasks) == 0 || s.tasks[0].at > target {
		return nil
	}
	task := s.tasks[0]
	s.tasks = s.tasks[1:]
	s.now = task.at
	return task
}

// Now returns the current virtual time.
func (s *ManualScheduler) Now() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

// Pending returns the number of live scheduled callbacks.
func (s *ManualScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.tasks {
		if !t.canceled {
			n++
		}
	}
	return n
}
