package scanner

import (
	"context"
	"sync"
	"time"
)

type sessionState int

const (
	statePending sessionState = iota // waiting for the poll timer
	statePolling                     // poll in progress
	stateFinished
)

// Session is one trigger-to-result scan. It ends when its poll classifies
// a result, when it is stopped, or when a newer trigger supersedes it.
type Session struct {
	ID      string
	Started time.Time

	timer Timer
	done  chan struct{}

	mu     sync.Mutex
	state  sessionState
	result ScanResult
}

func newSession(id string, started time.Time) *Session {
	return &Session{
		ID:      id,
		Started: started,
		done:    make(chan struct{}),
		result:  ScanResult{SessionID: id, Outcome: OutcomePending},
	}
}

// Done is closed when the session has a final result.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Result returns the final result. ok is false while the session is
// still pending.
func (s *Session) Result() (res ScanResult, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result, s.state == stateFinished
}

// Wait blocks until the session finishes or ctx is done.
func (s *Session) Wait(ctx context.Context) (ScanResult, error) {
	select {
	case <-s.done:
		res, _ := s.Result()
		return res, nil
	case <-ctx.Done():
		return ScanResult{}, ctx.Err()
	}
}

func (s *Session) setTimer(t Timer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timer = t
}

// beginPoll moves a pending session to polling. It returns false if the
// session was already stopped.
func (s *Session) beginPoll() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != statePending {
		return false
	}
	s.state = statePolling
	return true
}

// complete records the poll result.
func (s *Session) complete(res ScanResult) {
	s.mu.Lock()
	s.result = res
	s.state = stateFinished
	s.mu.Unlock()
	close(s.done)
}

// cancel stops a session whose poll has not started. It returns false if
// the poll already started or the session is finished.
func (s *Session) cancel(outcome Outcome, now time.Time) (ScanResult, bool) {
	s.mu.Lock()
	if s.state != statePending {
		s.mu.Unlock()
		return ScanResult{}, false
	}
	if s.timer != nil {
		s.timer.Stop()
	}
	s.result = ScanResult{SessionID: s.ID, Outcome: outcome, Finished: now}
	s.state = stateFinished
	res := s.result
	s.mu.Unlock()

	close(s.done)
	return res, true
}
