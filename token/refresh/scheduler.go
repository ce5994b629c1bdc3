package refresh

import (
	"sync"
	"time"
)

const (
	renewalLead     = 5 * time.Minute
	minRenewalDelay = 15 * time.Second
)

// Timer is the part of *time.Timer the scheduler needs.
type Timer interface {
	Stop() bool
}

// AfterFunc matches time.AfterFunc.
type AfterFunc func(d time.Duration, f func()) Timer

func realAfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// RenewalDelay returns max(expiry - now - 5m, 15s).
func RenewalDelay(expiry, now time.Time) time.Duration {
	d := expiry.Sub(now) - renewalLead
	if d < minRenewalDelay {
		return minRenewalDelay
	}
	return d
}

// Scheduler owns at most one pending renewal timer. Scheduling replaces and
// stops the previous timer; a replaced timer that already fired does not run.
type Scheduler struct {
	mu        sync.Mutex
	timer     Timer
	gen       uint64
	afterFunc AfterFunc
}

func NewScheduler(afterFunc AfterFunc) *Scheduler {
	if afterFunc == nil {
		afterFunc = realAfterFunc
	}
	return &Scheduler{afterFunc: afterFunc}
}

func (s *Scheduler) Schedule(d time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.timer != nil {
		s.timer.Stop()
	}
	s.gen++
	gen := s.gen
	s.timer = s.afterFunc(d, func() {
		s.mu.Lock()
		current := gen == s.gen
		if current {
			s.timer = nil
		}
		s.mu.Unlock()
		if current {
			fn()
		}
	})
}

func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.gen++
}

func (s *Scheduler) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timer != nil
}
