package event

import (
	"testing"

	"github.com/sirupsen/logrus"
)

func testLog() *logrus.Entry {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return logrus.NewEntry(l)
}

func TestHandlerOrder(t *testing.T) {
	q := NewQueue(testLog())

	var order []string
	q.Handle("greeting", func(args ...interface{}) {
		order = append(order, "A")
	})
	q.Handle("greeting", func(args ...interface{}) {
		order = append(order, "B")
	})

	q.Post("greeting")
	q.Run()

	if len(order) != 2 || order[0] != "A" || order[1] != "B" {
		t.Errorf("expected handlers in registration order, got %v", order)
	}
}

func TestRunDrainsNestedPosts(t *testing.T) {
	q := NewQueue(testLog())

	var sawSecond bool
	q.Handle("first", func(args ...interface{}) {
		q.Post("second")
	})
	q.Handle("second", func(args ...interface{}) {
		sawSecond = true
	})

	q.Post("first")
	q.Run()

	if !sawSecond {
		t.Error("event posted during Run was not processed before Run returned")
	}
	if q.NeedsRun() {
		t.Error("queue should be empty after Run")
	}
}

func TestArgsDelivered(t *testing.T) {
	q := NewQueue(testLog())

	var got []interface{}
	q.Handle("args", func(args ...interface{}) {
		got = args
	})

	q.Post("args", "one", 2)
	q.Run()

	if len(got) != 2 || got[0] != "one" || got[1] != 2 {
		t.Errorf("expected args [one 2], got %v", got)
	}
}

func TestNoHandlerIsNotAnError(t *testing.T) {
	q := NewQueue(testLog())
	q.Post("nobody_cares")
	q.Run()

	if q.NeedsRun() {
		t.Error("unhandled event should still be consumed")
	}
}
