// Package debounce schedules at most one pending task per key. Scheduling a
// key again cancels the earlier task and restarts its delay.
package debounce

import (
	"sync"
	"time"

	"github.com/alfredjeanlab/corkboard/internal/clock"
)

// Scheduler holds the pending task for each key.
type Scheduler struct {
	clock clock.Clock

	mu      sync.Mutex
	idle    *sync.Cond
	tasks   map[string]*task
	gen     uint64
	running int
}

type task struct {
	gen   uint64
	due   time.Time
	fn    func()
	timer clock.Timer
}

// New returns a Scheduler driven by c (the real clock if nil).
func New(c clock.Clock) *Scheduler {
	s := &Scheduler{
		clock: clock.OrReal(c),
		tasks: make(map[string]*task),
	}
	s.idle = sync.NewCond(&s.mu)
	return s
}

// Schedule arranges for fn to run after d, replacing any task already
// pending for key. fn runs without the scheduler's lock held.
func (s *Scheduler) Schedule(key string, d time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.tasks[key]; ok {
		old.timer.Stop()
	}
	s.gen++
	t := &task{gen: s.gen, due: s.clock.Now().Add(d), fn: fn}
	s.tasks[key] = t
	gen := t.gen
	t.timer = s.clock.AfterFunc(d, func() {
		// A timer that lost the race with Stop or Flush must not run.
		s.mu.Lock()
		cur, ok := s.tasks[key]
		if !ok || cur.gen != gen {
			s.mu.Unlock()
			return
		}
		delete(s.tasks, key)
		s.running++
		s.mu.Unlock()
		defer s.release()
		fn()
	})
}

func (s *Scheduler) release() {
	s.mu.Lock()
	s.running--
	if s.running == 0 {
		s.idle.Broadcast()
	}
	s.mu.Unlock()
}

// Flush runs every pending task now on the calling goroutine, in rounds:
// each round runs the tasks pending when it began, earliest deadline first,
// and tasks they schedule wait for the next round. Before each task Flush
// waits for tasks already running, so it returns only when the scheduler
// is empty and idle. It returns the number of tasks it ran. Flush must not
// be called from a task.
func (s *Scheduler) Flush() int {
	var n int
	s.mu.Lock()
	mark := s.gen
	s.mu.Unlock()
	for {
		s.mu.Lock()
		for s.running > 0 {
			s.idle.Wait()
		}
		key, t := s.earliestLocked(mark)
		if t == nil && len(s.tasks) > 0 {
			mark = s.gen
			key, t = s.earliestLocked(mark)
		}
		if t == nil {
			s.mu.Unlock()
			return n
		}
		t.timer.Stop()
		delete(s.tasks, key)
		s.running++
		s.mu.Unlock()

		t.fn()
		s.release()
		n++
	}
}

// earliestLocked returns the task with the earliest deadline among those
// scheduled up to generation mark.
func (s *Scheduler) earliestLocked(mark uint64) (string, *task) {
	var (
		key  string
		next *task
	)
	for k, t := range s.tasks {
		if t.gen > mark {
			continue
		}
		if next == nil || t.due.Before(next.due) || (t.due.Equal(next.due) && t.gen < next.gen) {
			key, next = k, t
		}
	}
	return key, next
}
