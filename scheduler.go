package marginalia

import (
	"context"
	"sync"
	"time"
)

// Scheduler defers work to the next frame. Frames are keyed: requesting a
// key that is already pending replaces its work, so a burst of triggers for
// one key costs a single run.
type Scheduler struct {
	mu      sync.Mutex
	pending map[string]func()
	order   []string
	dropped int
	ran     int
}

// NewScheduler creates an idle Scheduler.
func NewScheduler() *Scheduler {
	return &Scheduler{pending: make(map[string]func())}
}

// Request queues fn under key for the next frame, replacing any work still
// pending under the same key.
func (s *Scheduler) Request(key string, fn func()) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	if _, ok := s.pending[key]; ok {
		s.dropped++
	} else {
		s.order = append(s.order, key)
	}
	s.pending[key] = fn
	s.mu.Unlock()
}

// Pending reports whether any frame is waiting to run.
func (s *Scheduler) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending) > 0
}

// Flush runs the pending frames in the order their keys were first
// requested and returns how many ran. Frames run outside the scheduler lock;
// work they request lands in the next frame.
func (s *Scheduler) Flush() int {
	s.mu.Lock()
	order := s.order
	pending := s.pending
	s.order = nil
	s.pending = make(map[string]func())
	s.ran += len(order)
	s.mu.Unlock()

	for _, key := range order {
		pending[key]()
	}
	return len(order)
}

// Stats returns how many frames ran and how many were superseded before running.
func (s *Scheduler) Stats() (ran, dropped int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ran, s.dropped
}

// Run flushes once per tick until ctx is done or ticks is closed.
func (s *Scheduler) Run(ctx context.Context, ticks <-chan time.Time) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case _, ok := <-ticks:
			if !ok {
				return nil
			}
			s.Flush()
		}
	}
}
