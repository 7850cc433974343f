package analysis

import (
	"context"
	"slices"
	"sync"
	"time"
)

// Scheduler runs keyed functions after a delay. A cancelled task never runs,
// or has its context cancelled if it already started.
type Scheduler struct {
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	tasks   map[string]*task
	stopped bool
	wg      sync.WaitGroup
}

type task struct {
	timer  *time.Timer
	cancel context.CancelFunc
}

// NewScheduler creates a Scheduler whose tasks inherit parent's cancellation.
func NewScheduler(parent context.Context) *Scheduler {
	ctx, cancel := context.WithCancel(parent)
	return &Scheduler{
		ctx:    ctx,
		cancel: cancel,
		tasks:  make(map[string]*task),
	}
}

// Schedule runs fn after delay under key, replacing any task already
// scheduled under the same key. It reports false once the scheduler is stopped.
func (s *Scheduler) Schedule(key string, delay time.Duration, fn func(ctx context.Context)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return false
	}
	s.cancelLocked(key)

	ctx, cancel := context.WithCancel(s.ctx)
	t := &task{cancel: cancel}

	s.wg.Add(1)
	t.timer = time.AfterFunc(delay, func() {
		defer s.wg.Done()
		defer s.finish(key, t)

		if ctx.Err() != nil {
			return
		}
		fn(ctx)
	})
	s.tasks[key] = t

	return true
}

// Cancel stops the task under key. It reports whether a task was pending
// or running.
func (s *Scheduler) Cancel(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelLocked(key)
}

// Pending returns the keys of tasks that have not finished, sorted.
func (s *Scheduler) Pending() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := make([]string, 0, len(s.tasks))
	for k := range s.tasks {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Stop cancels every task and waits for running ones to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	for key := range s.tasks {
		s.cancelLocked(key)
	}
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
}

func (s *Scheduler) cancelLocked(key string) bool {
	t, ok := s.tasks[key]
	if !ok {
		return false
	}
	delete(s.tasks, key)

	t.cancel()
	if t.timer.Stop() {
		s.wg.Done()
	}
	return true
}

func (s *Scheduler) finish(key string, t *task) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tasks[key] == t {
		delete(s.tasks, key)
	}
	t.cancel()
}
