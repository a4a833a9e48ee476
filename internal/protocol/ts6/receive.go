package ts6

import (
	"strconv"
	"strings"
	"time"

	"github.com/dalnet/athena/internal/event"
	"github.com/dalnet/athena/internal/state"
)

// Clock-skew thresholds for SVINFO validation, in seconds.
const (
	skewWarn  = 60
	skewFatal = 300
)

// Handles an incoming PASS.
//
//	parv[0] -> password
//	parv[1] -> 'TS'
//	parv[2] -> ts version
//	parv[3] -> sid of remote server
func (t *TS6) ircPass(origin string, parv []string) {
	if len(parv) < 4 {
		t.log.Errorf("malformed PASS from %s", t.env.Uplink.Name)
		t.env.Sender.SetDead()
		return
	}

	if parv[0] != t.env.Uplink.ReceivePassword {
		t.log.Errorf("incorrect password received from `%s`", t.env.Uplink.Name)
		t.env.Sender.SetDead()
		return
	}

	t.uplinkSID = parv[3]
}

// Handles an incoming SERVER.
//
//	parv[0] -> server name
//	parv[1] -> hops
//	parv[2] -> server description
func (t *TS6) ircServer(origin string, parv []string) {
	if len(parv) < 3 {
		t.log.Errorf("malformed SERVER from %s", t.env.Uplink.Name)
		return
	}

	if origin != "" {
		// An origin means a server introduction, but a TS5 one, and we
		// only support TS6-only networks.
		t.log.Warnf("got non-TS6 server introduction on TS6-only network: %s (%s)",
			parv[0], parv[2])
		return
	}

	// No origin means we're handshaking, so this must be our uplink.
	if parv[0] != t.env.Uplink.Name {
		t.log.Errorf("name mismatch from uplink: %s != %s", parv[0], t.env.Uplink.Name)
		t.env.Sender.SetDead()
		return
	}

	if t.uplinkSID == "" {
		t.log.Errorf("SERVER before PASS from %s", t.env.Uplink.Name)
		t.env.Sender.SetDead()
		return
	}

	t.env.Network.AddServer(t.uplinkSID, parv[0], parv[2], atoi(parv[1]))

	// Handshake validated; the remote's burst follows.
	t.burstStart = t.now()
}

// Handles an incoming SVINFO.
//
//	parv[0] -> max ts version
//	parv[1] -> min ts version
//	parv[2] -> '0'
//	parv[3] -> current ts
func (t *TS6) ircSvinfo(origin string, parv []string) {
	if len(parv) < 4 {
		t.log.Errorf("malformed SVINFO from %s", t.env.Uplink.Name)
		t.env.Sender.SetDead()
		return
	}

	if atoi(parv[0]) < 6 {
		t.log.Errorf("%s doesn't support TS6", t.env.Uplink.Name)
		t.env.Sender.SetDead()
		return
	}

	delta := atoi64(parv[3]) - t.now().Unix()
	if delta < 0 {
		delta = -delta
	}

	switch {
	case delta >= skewFatal:
		t.log.Errorf("%s TS delta exceeds five minutes: %d", t.env.Uplink.Name, delta)
		t.env.Sender.SetDead()
	case delta >= skewWarn:
		t.log.Warnf("%s has excessive TS delta: %d", t.env.Uplink.Name, delta)
	}
}

// Handles an incoming PING. ratbox-family servers send a PING at the end
// of their burst, so the first PING while bursting completes the sync.
//
//	parv[0] -> origin server name
func (t *TS6) ircPing(origin string, parv []string) {
	if len(parv) < 1 {
		return
	}

	t.sendPong(parv[0])

	if t.bursting() {
		delta := t.now().Sub(t.burstStart)
		t.burstStart = time.Time{}
		t.env.Events.Post(event.EndOfBurst, delta)
	}
}

// Handles an incoming SID (server introduction).
//
//	parv[0] -> server name
//	parv[1] -> hops
//	parv[2] -> sid
//	parv[3] -> description
func (t *TS6) ircSID(origin string, parv []string) {
	if len(parv) < 4 {
		t.log.Errorf("malformed SID from %s", t.env.Uplink.Name)
		return
	}

	s := t.env.Network.AddServer(parv[2], parv[0], parv[3], atoi(parv[1]))
	s.Via = origin
}

// Handles an incoming SQUIT (server disconnection). Removes the server's
// users too, to comply with CAPAB QS.
//
//	parv[0] -> SID leaving
//	parv[1] -> server's uplink's name
func (t *TS6) ircSquit(origin string, parv []string) {
	if len(parv) < 1 {
		return
	}

	if t.env.Network.DeleteServer(parv[0]) == nil {
		t.log.Errorf("received SQUIT for unknown SID: %s", parv[0])
	}
}

// Handles an incoming UID (user introduction).
//
//	parv[0] -> nickname
//	parv[1] -> hops
//	parv[2] -> timestamp
//	parv[3] -> '+' umodes
//	parv[4] -> username
//	parv[5] -> hostname
//	parv[6] -> ip
//	parv[7] -> uid
//	parv[8] -> realname
func (t *TS6) ircUID(origin string, parv []string) {
	if len(parv) < 9 {
		t.log.Errorf("malformed UID from %s", origin)
		return
	}

	s := t.env.Network.FindServer(origin)
	if s == nil {
		t.log.Errorf("got UID from unknown SID: %s", origin)
		return
	}

	u := t.env.Network.AddUser(s, parv[7], parv[0], parv[4], parv[5], parv[6],
		parv[8], atoi64(parv[2]))
	t.env.Network.ApplyUserModes(u, parv[3])
}

// Handles an incoming NICK. A parameter count other than two is a TS5
// user introduction, which we ignore.
//
//	parv[0] -> new nickname
//	parv[1] -> ts
func (t *TS6) ircNick(origin string, parv []string) {
	if len(parv) != 2 {
		return
	}

	u := t.env.Network.FindUser(origin)
	if u == nil {
		t.log.Errorf("got nick change for non-existent UID: %s", origin)
		return
	}

	t.env.Network.ChangeNick(u, parv[0])
}

// Handles an incoming QUIT.
//
//	parv[0] -> quit message
func (t *TS6) ircQuit(origin string, parv []string) {
	if t.env.Network.DeleteUser(origin) == nil {
		t.log.Errorf("received QUIT for unknown UID: %s", origin)
	}
}

// Handles an incoming SJOIN (channel burst).
//
//	parv[0]  -> timestamp
//	parv[1]  -> channel name
//	parv[2]  -> '+' cmodes
//	parv...  -> cmode params (if any)
//	parv[-1] -> members as UIDs, with status sigils
//
// TS rules: if their TS is strictly older they win, so our members lose
// every status mode, the channel loses every mode, and we adopt their
// TS. Members always merge in, but their status sigils only apply when
// we are not strictly losing (their TS <= ours after resolution), so a
// stale split can't re-op itself.
func (t *TS6) ircSjoin(origin string, parv []string) {
	if len(parv) < 4 {
		t.log.Errorf("malformed SJOIN from %s", origin)
		return
	}

	theirTS := atoi64(parv[0])
	n := t.env.Network

	ch := n.FindChannel(parv[1])
	if ch == nil {
		ch = n.AddChannel(parv[1], theirTS)
	} else if theirTS < ch.TS {
		n.ClearChannelStatus(ch)
		ch.ClearModes()
		ch.SetTS(theirTS, t.log)
	}

	if theirTS <= ch.TS {
		modes := parv[2]
		params := parv[3 : len(parv)-1]
		if modes != "0" {
			n.ApplyChannelModes(ch, modes, params)
		}
	}

	for _, member := range strings.Fields(parv[len(parv)-1]) {
		var status []state.Mode
		for len(member) > 0 {
			mode, ok := memberPrefixes[member[0]]
			if !ok {
				break
			}
			status = append(status, mode)
			member = member[1:]
		}

		u := n.FindUser(member)
		if u == nil {
			// Maybe it's a nickname?
			u = n.FindUserByNick(member)
		}
		if u == nil {
			t.log.Errorf("got non-existent UID in SJOIN: %s", member)
			continue
		}

		n.JoinChannel(u, ch)

		if theirTS <= ch.TS {
			for _, mode := range status {
				u.AddStatusMode(ch, mode)
				t.env.Events.Post(event.ModeAddedOnChannel, mode, u, ch)
			}
		}
	}
}

// Handles an incoming JOIN (non-burst channel join). An older timestamp
// triggers the same clear-and-adopt as SJOIN.
//
//	parv[0] -> timestamp
//	parv[1] -> channel name
//	parv[2] -> '+'
func (t *TS6) ircJoin(origin string, parv []string) {
	if len(parv) < 2 {
		return
	}

	u, ch := t.findUserAndChannel(origin, parv[1], "JOIN")
	if u == nil || ch == nil {
		return
	}

	n := t.env.Network
	if theirTS := atoi64(parv[0]); theirTS < ch.TS {
		n.ClearChannelStatus(ch)
		ch.ClearModes()
		ch.SetTS(theirTS, t.log)
	}

	n.JoinChannel(u, ch)
}

// Handles an incoming PART.
//
//	parv[0] -> channel name
func (t *TS6) ircPart(origin string, parv []string) {
	if len(parv) < 1 {
		return
	}

	u, ch := t.findUserAndChannel(origin, parv[0], "PART")
	if u == nil || ch == nil {
		return
	}

	t.env.Network.PartChannel(u, ch)
}

// Handles an incoming KICK.
//
//	parv[0] -> channel name
//	parv[1] -> UID of kicked user
//	parv[2] -> kick reason
func (t *TS6) ircKick(origin string, parv []string) {
	if len(parv) < 2 {
		return
	}

	u, ch := t.findUserAndChannel(parv[1], parv[0], "KICK")
	if u == nil || ch == nil {
		return
	}

	t.env.Network.PartChannel(u, ch)
}

// Handles an incoming TMODE. A TMODE whose timestamp is newer than the
// channel's is from the losing side of a split and is ignored; an older
// or equal one applies its mode changes only, never a full resync.
//
//	parv[0] -> timestamp
//	parv[1] -> channel name
//	parv[2] -> mode string
//	parv... -> mode params (if any)
func (t *TS6) ircTmode(origin string, parv []string) {
	if len(parv) < 3 {
		return
	}

	ch := t.env.Network.FindChannel(parv[1])
	if ch == nil {
		t.log.Errorf("got TMODE for unknown channel: %s", parv[1])
		return
	}

	if atoi64(parv[0]) > ch.TS {
		t.log.Debugf("ignoring TMODE with newer TS on %s", ch.Name)
		return
	}

	t.env.Network.ApplyChannelModes(ch, parv[2], parv[3:])
}

// Handles an incoming PRIVMSG. Channel traffic is not ours to handle;
// messages to one of our clients are posted for the owning service.
//
//	parv[0] -> target
//	parv[1] -> message
func (t *TS6) ircPrivmsg(origin string, parv []string) {
	if len(parv) < 2 {
		return
	}

	if strings.HasPrefix(parv[0], "#") {
		return
	}

	from := t.env.Network.FindUser(origin)
	t.env.Events.Post("privmsg", from, parv[0], parv[1])
}

// findUserAndChannel resolves the user and channel a command refers to,
// logging whichever lookup misses.
func (t *TS6) findUserAndChannel(uid, name, cmd string) (*state.User, *state.Channel) {
	u := t.env.Network.FindUser(uid)
	if u == nil {
		t.log.Errorf("got %s for non-existent UID: %s", cmd, uid)
	}

	ch := t.env.Network.FindChannel(name)
	if ch == nil {
		t.log.Errorf("got %s for non-existent channel: %s", cmd, name)
	}

	return u, ch
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func atoi64(s string) int64 {
	n, _ := strconv.ParseInt(s, 10, 64)
	return n
}
