// Package reconnect implements the at-most-one deferred reconnect timer
// (C4). Scheduling a new job cancels any prior one; the orchestrator
// cancels the pending job on every tunnel transition into a state other
// than Connected, per spec.md §4.4.
package reconnect

import (
	"context"
	"sync"
)

// Fire is invoked when a scheduled delay elapses without being
// cancelled. Implementations typically send a Reconnect command onto
// the event bus and await its acknowledgement; Fire runs in its own
// goroutine so it may block.
type Fire func(ctx context.Context)

// Scheduler owns at most one pending deferred reconnect job. gen
// disambiguates the currently-armed job from ones superseded by a
// later Schedule call, so a job that fires naturally clears Pending()
// without racing a concurrent re-Schedule.
type Scheduler struct {
	mu     sync.Mutex
	cancel context.CancelFunc
	gen    uint64
}

// New creates an empty Scheduler.
func New() *Scheduler {
	return &Scheduler{}
}

// Schedule cancels any prior pending job and arms a new one that calls
// fire after delay elapses, unless cancelled first (by Cancel, by a
// later Schedule call, or by ctx itself being cancelled).
func (s *Scheduler) Schedule(ctx context.Context, delay clock, fire Fire) {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	jobCtx, cancel := context.WithCancel(ctx)
	s.gen++
	myGen := s.gen
	s.cancel = cancel
	s.mu.Unlock()

	go func() {
		select {
		case <-delay.After():
			// The timer and the cancellation can both be ready when
			// select runs; a cancelled or superseded job never fires.
			if jobCtx.Err() != nil {
				return
			}
			s.clearIfCurrent(myGen)
			fire(jobCtx)
		case <-jobCtx.Done():
		}
	}()
}

func (s *Scheduler) clearIfCurrent(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen == gen {
		s.cancel = nil
	}
}

// Cancel aborts any pending job. Idempotent.
func (s *Scheduler) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

// Pending reports whether a job is currently armed.
func (s *Scheduler) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}
