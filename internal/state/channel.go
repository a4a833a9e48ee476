package state

import "github.com/sirupsen/logrus"

// Channel is one channel on the network.
type Channel struct {
	// Name is the registry key.
	Name string

	// TS is the channel timestamp used for burst conflict resolution.
	// It only ever moves backward (see SetTS).
	TS int64

	// Modes is the set of boolean/parameterized channel modes.
	Modes map[Mode]bool

	// Lists holds accumulated list-mode masks (bans and friends).
	Lists map[Mode][]string

	// Key and Limit carry the +k and +l parameters while set.
	Key   string
	Limit int

	// members is keyed by user ID.
	members map[string]*User
}

func (ch *Channel) String() string {
	return ch.Name
}

// Members returns the membership map, keyed by user ID.
func (ch *Channel) Members() map[string]*User {
	return ch.members
}

// HasMode reports whether a boolean/parameterized mode is set.
func (ch *Channel) HasMode(mode Mode) bool {
	return ch.Modes[mode]
}

// SetTS changes the channel timestamp. A move to a later value is never
// part of normal TS resolution, so it is logged loudly but still applied,
// matching the forgiving posture taken toward the network feed.
func (ch *Channel) SetTS(ts int64, log *logrus.Entry) {
	if ts > ch.TS {
		log.Warnf("changing timestamp to a later value? %s -> %d > %d", ch.Name, ts, ch.TS)
	}

	log.Debugf("%s: timestamp changed: %d -> %d", ch.Name, ch.TS, ts)
	ch.TS = ts
}

// ClearModes drops every channel mode, list entry, key, and limit. Used
// when losing a TS conflict.
func (ch *Channel) ClearModes() {
	ch.Modes = make(map[Mode]bool)
	ch.Lists = make(map[Mode][]string)
	ch.Key = ""
	ch.Limit = 0
}
