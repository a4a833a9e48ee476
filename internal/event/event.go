// Package event implements the ordered publish/subscribe queue that
// decouples protocol state changes from the services that react to them.
package event

import (
	"github.com/sirupsen/logrus"
)

// Names of the events posted by the core. Services subscribe to these;
// the core never references a service by name.
const (
	ServerAdded          = "server_added"
	UserAdded            = "user_added"
	UserDeleted          = "user_deleted"
	ChannelAdded         = "channel_added"
	ChannelDeleted       = "channel_deleted"
	UserJoinedChannel    = "user_joined_channel"
	UserPartedChannel    = "user_parted_channel"
	ModeAddedOnChannel   = "mode_added_on_channel"
	ModeDeletedOnChannel = "mode_deleted_on_channel"
	ModeAddedToUser      = "mode_added_to_user"
	ModeDeletedFromUser  = "mode_deleted_from_user"
	NickChanged          = "nick_changed"
	Connected            = "connected"
	Disconnected         = "disconnected"
	EndOfBurst           = "end_of_burst"
)

// Event is one posted occurrence: a name plus the arguments handed to
// every handler registered for that name.
type Event struct {
	Name string
	Args []interface{}
}

// Handler is a subscriber callback. Handlers run synchronously on the
// session loop and must not block.
type Handler func(args ...interface{})

// Queue is a FIFO of pending events plus the handler lists keyed by
// event name. One Queue is owned by one uplink session.
type Queue struct {
	queue    []Event
	handlers map[string][]Handler
	log      *logrus.Entry
}

// NewQueue creates an empty queue.
func NewQueue(log *logrus.Entry) *Queue {
	return &Queue{
		handlers: make(map[string][]Handler),
		log:      log,
	}
}

// Post enqueues an event to be handled on the next Run.
func (q *Queue) Post(name string, args ...interface{}) {
	q.queue = append(q.queue, Event{Name: name, Args: args})
	q.log.Debugf("posted new event: %s", name)
}

// Handle registers a handler for an event. Handlers for the same name
// run in registration order.
func (q *Queue) Handle(name string, h Handler) {
	q.handlers[name] = append(q.handlers[name], h)
	q.log.Debugf("registered handler for event: %s", name)
}

// NeedsRun reports whether the queue has pending events.
func (q *Queue) NeedsRun() bool {
	return len(q.queue) > 0
}

// Run drains the queue. Events posted by handlers during the drain are
// processed before Run returns.
func (q *Queue) Run() {
	for len(q.queue) > 0 {
		e := q.queue[0]
		q.queue = q.queue[1:]

		hs := q.handlers[e.Name]
		if len(hs) == 0 {
			q.log.Debugf("no handlers for event: %s", e.Name)
			continue
		}

		q.log.Debugf("dispatching handlers for event: %s", e.Name)
		for _, h := range hs {
			h(e.Args...)
		}
	}
}
