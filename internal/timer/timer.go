// Package timer schedules one-shot and repeating callbacks. There are no
// per-timer goroutines: the session's I/O loop asks the scheduler when the
// next timer is due, bounds its readiness wait by that, and fires whatever
// has come due on each iteration.
package timer

import (
	"time"

	"github.com/sirupsen/logrus"
)

// Timer is one scheduled callback.
type Timer struct {
	due      time.Time
	interval time.Duration
	repeat   bool
	fn       func()
	stopped  bool
}

// Stop cancels the timer. Safe to call more than once.
func (t *Timer) Stop() {
	t.stopped = true
}

// Scheduler owns the pending timers for one session.
type Scheduler struct {
	timers []*Timer
	now    func() time.Time
	log    *logrus.Entry
}

// NewScheduler creates an empty scheduler.
func NewScheduler(log *logrus.Entry) *Scheduler {
	return &Scheduler{now: time.Now, log: log}
}

// After schedules fn to run once after d.
func (s *Scheduler) After(d time.Duration, fn func()) *Timer {
	return s.add(d, false, fn)
}

// Every schedules fn to run every d until stopped.
func (s *Scheduler) Every(d time.Duration, fn func()) *Timer {
	return s.add(d, true, fn)
}

func (s *Scheduler) add(d time.Duration, repeat bool, fn func()) *Timer {
	t := &Timer{
		due:      s.now().Add(d),
		interval: d,
		repeat:   repeat,
		fn:       fn,
	}
	s.timers = append(s.timers, t)
	s.log.Debugf("timer scheduled in %v (repeat: %v)", d, repeat)
	return t
}

// StopAll cancels every pending timer. Called on reconnect so stale
// callbacks referencing a dead session never fire.
func (s *Scheduler) StopAll() {
	for _, t := range s.timers {
		t.stopped = true
	}
	s.timers = nil
}

// NextDue returns the earliest due time and whether any timer is pending.
func (s *Scheduler) NextDue() (time.Time, bool) {
	var next time.Time
	var any bool
	for _, t := range s.timers {
		if t.stopped {
			continue
		}
		if !any || t.due.Before(next) {
			next = t.due
			any = true
		}
	}
	return next, any
}

// Fire runs every timer that has come due, rescheduling repeating ones and
// dropping the rest. A callback may schedule new timers; they are kept for
// the next pass, never fired in this one.
func (s *Scheduler) Fire() {
	now := s.now()

	pending := s.timers
	s.timers = nil

	var keep []*Timer
	for _, t := range pending {
		if t.stopped {
			continue
		}
		if t.due.After(now) {
			keep = append(keep, t)
			continue
		}

		t.fn()

		if t.repeat && !t.stopped {
			t.due = now.Add(t.interval)
			keep = append(keep, t)
		}
	}

	s.timers = append(keep, s.timers...)
}
