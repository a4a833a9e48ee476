// Package protocol defines the interface a server-linking dialect module
// implements, and the registry the uplink uses to find one by its
// configured name.
package protocol

import (
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/dalnet/athena/internal/config"
	"github.com/dalnet/athena/internal/event"
	"github.com/dalnet/athena/internal/message"
	"github.com/dalnet/athena/internal/state"
)

// Sender is the outbound half of the uplink: modules enqueue lines and
// flag the link dead on fatal protocol violations. The uplink implements
// this.
type Sender interface {
	Send(format string, args ...interface{})
	SetDead()
}

// Env is everything a dialect module needs from its session, passed in at
// construction instead of reached for globally.
type Env struct {
	Me     *config.Me
	Uplink *config.UplinkConfig

	Network *state.Network
	Events  *event.Queue
	Sender  Sender
	Log     *logrus.Entry
}

// Module is one dialect of the server-linking protocol, attached to
// exactly one uplink session.
type Module interface {
	// SendHandshake emits the dialect's fixed outbound handshake sequence
	// immediately after connecting, before any input is required.
	SendHandshake()

	// Handle dispatches a parsed line to the dialect's handler for its
	// command, if any. Returns false when the command is unknown, which
	// is not an error.
	Handle(m *message.Message) bool

	// IntroduceUser brings a pseudo-client onto the network and returns
	// its local state entry.
	IntroduceUser(nick, user, host, real, umodes string) *state.User

	// Join places one of our pseudo-clients in a channel, with ops.
	Join(u *state.User, channel string)

	// Privmsg and Notice send a message from one of our pseudo-clients.
	Privmsg(from *state.User, target, text string)
	Notice(from *state.User, target, text string)

	// Quit removes one of our pseudo-clients from the network.
	Quit(u *state.User, reason string)

	// Raw enqueues a protocol line verbatim.
	Raw(line string)
}

// Factory builds a module bound to one session.
type Factory func(env *Env) Module

var registry = make(map[string]Factory)

// Register makes a dialect available under a case-insensitive name.
// Called from dialect package init functions.
func Register(name string, f Factory) {
	registry[strings.ToLower(name)] = f
}

// Find returns the factory for a dialect name, or nil.
func Find(name string) Factory {
	return registry[strings.ToLower(name)]
}
