package syncer

import (
	"sync"
	"time"
)

// State is the sync indicator shown to users.
type State string

const (
	StateIdle    State = "idle"
	StateSyncing State = "syncing"
	StateSuccess State = "success"
	StateError   State = "error"
)

// DefaultStatusReset is how long success/error stay visible before the
// indicator returns to idle.
const DefaultStatusReset = 3 * time.Second

// Status tracks the current sync indicator and the last result.
type Status struct {
	mu         sync.Mutex
	state      State
	last       *Result
	resetAfter time.Duration
	timer      *time.Timer
}

// NewStatus returns an idle status that resets after resetAfter.
func NewStatus(resetAfter time.Duration) *Status {
	if resetAfter <= 0 {
		resetAfter = DefaultStatusReset
	}
	return &Status{state: StateIdle, resetAfter: resetAfter}
}

// State returns the current indicator.
func (s *Status) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Last returns a copy of the most recent result, if any.
func (s *Status) Last() (Result, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return Result{}, false
	}
	r := *s.last
	r.Errors = append([]string(nil), s.last.Errors...)
	return r, true
}

func (s *Status) begin() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopTimer()
	s.state = StateSyncing
}

func (s *Status) finish(r Result) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.last = &r
	if r.Success {
		s.state = StateSuccess
	} else {
		s.state = StateError
	}

	s.stopTimer()
	var t *time.Timer
	t = time.AfterFunc(s.resetAfter, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.timer == t {
			s.state = StateIdle
			s.timer = nil
		}
	})
	s.timer = t
}

// Stop cancels a pending reset.
func (s *Status) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopTimer()
}

func (s *Status) stopTimer() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}
