// Package poll provides a single-timer tick scheduler used to drive
// periodic status polling.
package poll

import (
	"errors"
	"sync"
	"time"
)

// ErrAlreadyRunning is returned by Start when the scheduler already has
// an active timer.
var ErrAlreadyRunning = errors.New("scheduler already running")

// Scheduler fires a callback at a fixed interval. At most one timer is
// active at a time. The callback reports whether the loop should keep
// ticking, so a tick can end its own loop without deadlocking on Stop.
type Scheduler struct {
	interval time.Duration

	mu      sync.Mutex
	stopCh  chan struct{}
	done    chan struct{}
	running bool
}

// NewScheduler creates a stopped scheduler with the given interval.
func NewScheduler(interval time.Duration) *Scheduler {
	return &Scheduler{interval: interval}
}

// Start launches the tick loop. The loop runs until Stop is called or
// tick returns false. It returns ErrAlreadyRunning if a loop is
// already active.
func (s *Scheduler) Start(tick func() bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return ErrAlreadyRunning
	}

	// Each loop gets its own channels so a Stop waiting on an old loop
	// can never interfere with a later one.
	s.stopCh = make(chan struct{})
	s.done = make(chan struct{})
	s.running = true

	go s.loop(tick, s.stopCh, s.done)
	return nil
}

func (s *Scheduler) loop(tick func() bool, stopCh, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if !tick() {
				s.loopExited(stopCh)
				return
			}
		case <-stopCh:
			return
		}
	}
}

// loopExited clears the running flag after a tick ended its own loop,
// unless a newer loop has already taken over.
func (s *Scheduler) loopExited(stopCh chan struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopCh == stopCh {
		s.running = false
	}
}

// Stop halts the tick loop and waits for it to exit. Stopping a stopped
// scheduler is a no-op.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	stopCh, done := s.stopCh, s.done
	s.running = false
	close(stopCh)
	s.mu.Unlock()

	<-done
}

// Running reports whether a tick loop is active.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}
