// Package state holds the in-memory model of the remote network: the
// server, user, and channel registries one uplink session maintains, and
// the mode parser that mutates them.
//
// A Network is owned by a single session and handed explicitly to the
// components that need lookups. Registrations are last-writer-wins: a
// duplicate key is logged loudly and overwritten rather than refused,
// because one bad remote line must never take the daemon down.
package state

import (
	"github.com/sirupsen/logrus"

	"github.com/dalnet/athena/internal/event"
)

// Network is the session's view of the remote IRC network.
type Network struct {
	// UserModes and ChanModes are the dialect's letter tables, supplied
	// by the protocol module at session setup.
	UserModes map[byte]Mode
	ChanModes ModeTables

	servers  map[string]*Server
	users    map[string]*User
	channels map[string]*Channel

	events *event.Queue
	log    *logrus.Entry
}

// NewNetwork creates an empty network model.
func NewNetwork(events *event.Queue, log *logrus.Entry) *Network {
	return &Network{
		servers:  make(map[string]*Server),
		users:    make(map[string]*User),
		channels: make(map[string]*Channel),
		events:   events,
		log:      log,
	}
}

// Servers returns the server registry, keyed by server ID.
func (n *Network) Servers() map[string]*Server { return n.servers }

// Users returns the user registry, keyed by user ID.
func (n *Network) Users() map[string]*User { return n.users }

// Channels returns the channel registry, keyed by name.
func (n *Network) Channels() map[string]*Channel { return n.channels }

// AddServer registers a server and posts server_added.
func (n *Network) AddServer(id, name, description string, hops int) *Server {
	if _, ok := n.servers[id]; ok {
		n.log.Errorf("new server replacing server with same ID: %s", id)
	}

	s := &Server{
		ID:          id,
		Name:        name,
		Description: description,
		Hops:        hops,
		users:       make(map[string]*User),
	}
	n.servers[id] = s

	n.log.Debugf("new server: %s [%s]", name, id)
	n.events.Post(event.ServerAdded, s)

	return s
}

// FindServer looks up a server by ID.
func (n *Network) FindServer(id string) *Server {
	return n.servers[id]
}

// DeleteServer removes a server and every user it introduced.
func (n *Network) DeleteServer(id string) *Server {
	s, ok := n.servers[id]
	if !ok {
		return nil
	}

	for _, u := range s.users {
		n.DeleteUser(u.ID)
	}
	delete(n.servers, id)

	n.log.Debugf("server leaving: %s [%s]", s.Name, id)
	return s
}

// AddUser registers a user, attaches it to its server, and posts
// user_added.
func (n *Network) AddUser(server *Server, id, nick, user, host, ip, real string, ts int64) *User {
	if _, ok := n.users[id]; ok {
		n.log.Errorf("new user replacing user with same ID: %s", id)
	}

	u := &User{
		ID:          id,
		Nickname:    nick,
		Username:    user,
		Hostname:    host,
		IP:          ip,
		Realname:    real,
		TS:          ts,
		Server:      server,
		Modes:       make(map[Mode]bool),
		statusModes: make(map[string][]Mode),
	}
	n.users[id] = u
	if server != nil {
		server.AddUser(u)
	}

	n.log.Debugf("new user: %s!%s@%s (%s) [%s]", nick, user, host, real, id)
	n.events.Post(event.UserAdded, u)

	return u
}

// FindUser looks up a user by ID.
func (n *Network) FindUser(id string) *User {
	return n.users[id]
}

// FindUserByNick scans for a user by nickname. Some dialects use IDs and
// nicknames interchangeably in member lists, so this is the fallback when
// an ID lookup misses.
func (n *Network) FindUserByNick(nick string) *User {
	for _, u := range n.users {
		if u.Nickname == nick {
			return u
		}
	}
	return nil
}

// DeleteUser removes a user, detaching it from its server and from every
// channel it was on. Channels left empty are deleted. Posts user_deleted
// after the membership cascade.
func (n *Network) DeleteUser(id string) *User {
	u, ok := n.users[id]
	if !ok {
		return nil
	}

	for _, ch := range n.channels {
		if _, member := ch.members[id]; member {
			n.PartChannel(u, ch)
		}
	}

	if u.Server != nil {
		u.Server.DeleteUser(u)
	}
	delete(n.users, id)

	n.log.Debugf("user quit: %s [%s]", u.Nickname, id)
	n.events.Post(event.UserDeleted, u)

	return u
}

// ChangeNick renames a user in place. The registry key is the ID, so the
// key is stable across renames; for nickname-keyed dialects the caller
// rekeys via DeleteUser/AddUser instead.
func (n *Network) ChangeNick(u *User, nick string) {
	n.log.Debugf("nick change: %s -> %s [%s]", u.Nickname, nick, u.ID)
	old := u.Nickname
	u.Nickname = nick
	n.events.Post(event.NickChanged, u, old)
}

// AddChannel registers a channel and posts channel_added.
func (n *Network) AddChannel(name string, ts int64) *Channel {
	if _, ok := n.channels[name]; ok {
		n.log.Errorf("new channel replacing channel with same name: %s", name)
	}

	ch := &Channel{
		Name:    name,
		TS:      ts,
		Modes:   make(map[Mode]bool),
		Lists:   make(map[Mode][]string),
		members: make(map[string]*User),
	}
	n.channels[name] = ch

	n.log.Debugf("new channel: %s (%d)", name, ts)
	n.events.Post(event.ChannelAdded, ch)

	return ch
}

// FindChannel looks up a channel by name.
func (n *Network) FindChannel(name string) *Channel {
	return n.channels[name]
}

// JoinChannel adds a user to a channel's membership and posts
// user_joined_channel.
func (n *Network) JoinChannel(u *User, ch *Channel) {
	ch.members[u.ID] = u

	n.log.Debugf("new user in %s: %s [%s]", ch.Name, u.Nickname, u.ID)
	n.events.Post(event.UserJoinedChannel, u, ch)
}

// PartChannel removes a user from a channel's membership, dropping the
// user's status entry for it. A channel with no members left is deleted
// and channel_deleted posted.
func (n *Network) PartChannel(u *User, ch *Channel) {
	delete(ch.members, u.ID)
	u.forgetChannel(ch)

	n.log.Debugf("user left %s: %s (%d)", ch.Name, u.Nickname, len(ch.members))
	n.events.Post(event.UserPartedChannel, u, ch)

	if len(ch.members) == 0 {
		delete(n.channels, ch.Name)
		n.log.Debugf("channel deleted: %s", ch.Name)
		n.events.Post(event.ChannelDeleted, ch)
	}
}

// ClearChannelStatus clears every member's status modes on the channel.
// Used when the channel loses a TS conflict.
func (n *Network) ClearChannelStatus(ch *Channel) {
	for _, u := range ch.members {
		u.ClearStatusModes(ch)
	}
}
