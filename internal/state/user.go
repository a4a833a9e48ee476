package state

// User is one client on the network.
type User struct {
	// ID is the registry key: the UID for TS6-family dialects, the
	// nickname for dialects without UIDs.
	ID       string
	Nickname string
	Username string
	Hostname string
	IP       string
	Realname string

	// TS is the signon timestamp.
	TS int64

	// Server that introduced this user. The server owns the lifecycle;
	// this is a lookup reference only.
	Server *Server

	// Modes is the set of global user modes.
	Modes map[Mode]bool

	// statusModes holds per-channel status flags (op, voice, ...), keyed
	// by channel name. An entry exists only while the user is a member.
	statusModes map[string][]Mode
}

func (u *User) String() string {
	return u.Nickname
}

// IsOperator reports whether the user has the global operator mode.
func (u *User) IsOperator() bool {
	return u.Modes[Operator]
}

// StatusModes returns the user's status flags on the given channel.
func (u *User) StatusModes(ch *Channel) []Mode {
	return u.statusModes[ch.Name]
}

// HasStatusMode reports whether the user holds mode on the channel.
func (u *User) HasStatusMode(ch *Channel, mode Mode) bool {
	for _, m := range u.statusModes[ch.Name] {
		if m == mode {
			return true
		}
	}
	return false
}

// AddStatusMode grants a status flag on one channel.
func (u *User) AddStatusMode(ch *Channel, mode Mode) {
	if u.HasStatusMode(ch, mode) {
		return
	}
	u.statusModes[ch.Name] = append(u.statusModes[ch.Name], mode)
}

// DeleteStatusMode revokes a status flag on one channel.
func (u *User) DeleteStatusMode(ch *Channel, mode Mode) {
	modes := u.statusModes[ch.Name]
	for i, m := range modes {
		if m == mode {
			u.statusModes[ch.Name] = append(modes[:i], modes[i+1:]...)
			return
		}
	}
}

// ClearStatusModes drops every status flag the user holds on the channel.
func (u *User) ClearStatusModes(ch *Channel) {
	if _, ok := u.statusModes[ch.Name]; ok {
		u.statusModes[ch.Name] = nil
	}
}

// forgetChannel drops the channel's status entry entirely. Called when the
// user leaves so the map only ever has entries for current memberships.
func (u *User) forgetChannel(ch *Channel) {
	delete(u.statusModes, ch.Name)
}
