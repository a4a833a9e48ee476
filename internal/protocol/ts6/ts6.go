// Package ts6 implements the TS6 server-linking protocol as spoken by
// the ratbox family of IRC daemons.
package ts6

import (
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dalnet/athena/internal/message"
	"github.com/dalnet/athena/internal/protocol"
	"github.com/dalnet/athena/internal/state"
)

func init() {
	protocol.Register("ts6", New)
}

// Ratbox user modes.
var userModes = map[byte]state.Mode{
	'a': state.Admin,
	'i': state.Invisible,
	'o': state.Operator,
	'w': state.Wallop,
	'D': state.Deaf,
}

// Ratbox channel modes.
var chanModes = state.ModeTables{
	Status: map[byte]state.Mode{
		'o': state.Operator,
		'v': state.Voice,
	},
	List: map[byte]state.Mode{
		'b': state.Ban,
		'e': state.Except,
		'I': state.Invex,
	},
	Param: map[byte]state.Mode{
		'k': state.Keyed,
		'l': state.Limited,
	},
	Bool: map[byte]state.Mode{
		'i': state.InviteOnly,
		'm': state.Moderated,
		'n': state.NoExternal,
		'p': state.Private,
		's': state.Secret,
		't': state.TopicLock,
	},
}

// Member-list status sigils, stripped left to right.
var memberPrefixes = map[byte]state.Mode{
	'@': state.Operator,
	'+': state.Voice,
}

type handler func(origin string, parv []string)

// TS6 is one TS6 session's protocol state.
type TS6 struct {
	env *protocol.Env
	log *logrus.Entry

	handlers map[string]handler

	// uplinkSID is the remote server's SID, learned from its PASS.
	uplinkSID string

	// burstStart is non-zero from handshake validation until the PING
	// that ends the remote's burst.
	burstStart time.Time

	// uidCounter is the base-36-style suffix for UIDs we allocate.
	uidCounter []byte

	now func() time.Time
}

// New builds a TS6 module bound to one session and installs the dialect's
// mode tables on its network model.
func New(env *protocol.Env) protocol.Module {
	t := &TS6{
		env:        env,
		log:        env.Log,
		uidCounter: []byte("AAAAAA"),
		now:        time.Now,
	}

	env.Network.UserModes = userModes
	env.Network.ChanModes = chanModes

	t.handlers = map[string]handler{
		"PASS":    t.ircPass,
		"SERVER":  t.ircServer,
		"SVINFO":  t.ircSvinfo,
		"PING":    t.ircPing,
		"SID":     t.ircSID,
		"SQUIT":   t.ircSquit,
		"UID":     t.ircUID,
		"NICK":    t.ircNick,
		"QUIT":    t.ircQuit,
		"SJOIN":   t.ircSjoin,
		"JOIN":    t.ircJoin,
		"PART":    t.ircPart,
		"KICK":    t.ircKick,
		"TMODE":   t.ircTmode,
		"PRIVMSG": t.ircPrivmsg,
	}

	return t
}

// Handle dispatches a parsed line to this dialect's handler for its
// command. Unknown commands are not errors; the uplink logs them at
// debug level and extensions still see the raw event.
func (t *TS6) Handle(m *message.Message) bool {
	h, ok := t.handlers[strings.ToUpper(m.Command)]
	if !ok {
		return false
	}
	h(m.Origin, m.Parv)
	return true
}

// nextUID returns the next SID-prefixed UID. The six-character suffix
// counts up through A-Z with carry, so UIDs are unique for the life of
// the process.
func (t *TS6) nextUID() string {
	uid := t.env.Me.SID + string(t.uidCounter)

	for i := len(t.uidCounter) - 1; i >= 0; i-- {
		if t.uidCounter[i] < 'Z' {
			t.uidCounter[i]++
			break
		}
		t.uidCounter[i] = 'A'
	}

	return uid
}

func (t *TS6) bursting() bool {
	return !t.burstStart.IsZero()
}
