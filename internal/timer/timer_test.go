package timer

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func testLog() *logrus.Entry {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return logrus.NewEntry(l)
}

// fakeClock lets the tests move time forward deterministically.
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time { return c.t }

func newTestScheduler() (*Scheduler, *fakeClock) {
	clock := &fakeClock{t: time.Unix(1000, 0)}
	s := NewScheduler(testLog())
	s.now = clock.now
	return s, clock
}

func TestAfterFiresOnce(t *testing.T) {
	s, clock := newTestScheduler()

	var fired int
	s.After(10*time.Second, func() { fired++ })

	s.Fire()
	if fired != 0 {
		t.Fatal("timer fired before its due time")
	}

	clock.t = clock.t.Add(11 * time.Second)
	s.Fire()
	if fired != 1 {
		t.Fatalf("expected 1 firing, got %d", fired)
	}

	clock.t = clock.t.Add(time.Minute)
	s.Fire()
	if fired != 1 {
		t.Errorf("one-shot timer fired again, total %d", fired)
	}
}

func TestEveryRepeats(t *testing.T) {
	s, clock := newTestScheduler()

	var fired int
	s.Every(5*time.Second, func() { fired++ })

	for i := 0; i < 3; i++ {
		clock.t = clock.t.Add(5 * time.Second)
		s.Fire()
	}

	if fired != 3 {
		t.Errorf("expected 3 firings, got %d", fired)
	}
}

func TestStop(t *testing.T) {
	s, clock := newTestScheduler()

	var fired int
	tm := s.Every(5*time.Second, func() { fired++ })
	tm.Stop()

	clock.t = clock.t.Add(time.Minute)
	s.Fire()

	if fired != 0 {
		t.Errorf("stopped timer fired %d times", fired)
	}
}

func TestStopAll(t *testing.T) {
	s, clock := newTestScheduler()

	var fired int
	s.After(time.Second, func() { fired++ })
	s.Every(time.Second, func() { fired++ })
	s.StopAll()

	clock.t = clock.t.Add(time.Minute)
	s.Fire()

	if fired != 0 {
		t.Errorf("timers fired after StopAll: %d", fired)
	}
	if _, any := s.NextDue(); any {
		t.Error("NextDue reports pending timers after StopAll")
	}
}

func TestScheduleFromCallback(t *testing.T) {
	s, clock := newTestScheduler()

	var followUp int
	s.After(time.Second, func() {
		s.After(time.Second, func() { followUp++ })
	})

	clock.t = clock.t.Add(2 * time.Second)
	s.Fire()

	// The follow-up was scheduled mid-Fire; it must survive to the next
	// pass, not fire in this one and not get lost.
	if followUp != 0 {
		t.Fatal("follow-up timer fired in the same Fire pass")
	}
	if _, any := s.NextDue(); !any {
		t.Fatal("timer scheduled from a callback is not pending")
	}

	clock.t = clock.t.Add(2 * time.Second)
	s.Fire()
	if followUp != 1 {
		t.Errorf("follow-up timer fired %d times, want 1", followUp)
	}
}

func TestNextDue(t *testing.T) {
	s, clock := newTestScheduler()

	if _, any := s.NextDue(); any {
		t.Fatal("empty scheduler reports a pending timer")
	}

	s.After(30*time.Second, func() {})
	s.After(10*time.Second, func() {})

	next, any := s.NextDue()
	if !any {
		t.Fatal("expected a pending timer")
	}
	if want := clock.t.Add(10 * time.Second); !next.Equal(want) {
		t.Errorf("NextDue = %v, want %v", next, want)
	}
}
