package state

import (
	"strconv"

	"github.com/dalnet/athena/internal/event"
)

// Mode is a named mode capability, independent of the letter any one
// dialect assigns to it.
type Mode string

// Modes shared by every dialect we speak. Dialect tables map their own
// letters onto these; a dialect may also define extras of its own.
const (
	// Status modes (per user, per channel)
	Operator Mode = "operator"
	Voice    Mode = "voice"
	Halfop   Mode = "halfop"
	Admin    Mode = "administrator"

	// List modes
	Ban    Mode = "ban"
	Except Mode = "except"
	Invex  Mode = "invex"

	// Parameterized modes
	Keyed   Mode = "keyed"
	Limited Mode = "limited"

	// Boolean channel modes
	InviteOnly Mode = "invite_only"
	Moderated  Mode = "moderated"
	NoExternal Mode = "no_external"
	Private    Mode = "private"
	Secret     Mode = "secret"
	TopicLock  Mode = "topic_lock"

	// User modes
	Invisible Mode = "invisible"
	Wallop    Mode = "wallop"
	Deaf      Mode = "deaf"
)

// ModeTables is one dialect's letter-to-mode mapping for channel modes.
// The parsing algorithm is the same for every dialect; only the tables
// differ.
type ModeTables struct {
	Status map[byte]Mode
	List   map[byte]Mode
	Param  map[byte]Mode
	Bool   map[byte]Mode
}

// ModeAction says whether a delta adds or removes a mode.
type ModeAction int

const (
	ModeAdd ModeAction = iota
	ModeDelete
)

func (a ModeAction) String() string {
	if a == ModeAdd {
		return "+"
	}
	return "-"
}

// Delta is one parsed mode change.
type Delta struct {
	Action ModeAction
	Mode   Mode
	Param  string
}

// ApplyChannelModes interprets a "+..."/"-..." mode string against the
// dialect's channel tables, consuming positional parameters as each mode
// requires, and applies the result: boolean modes land in the channel's
// mode set, key/limit update their fields, list modes update their lists,
// and status modes are routed to the named member's per-channel status
// map (never to the channel's own mode set).
//
// Running out of parameters mid-string is a protocol error: the remainder
// of the string is abandoned, deltas already applied stand. Unknown mode
// letters are skipped so protocol extensions don't break us.
func (n *Network) ApplyChannelModes(ch *Channel, modeStr string, params []string) []Delta {
	var deltas []Delta
	action := ModeAdd

	shift := func() (string, bool) {
		if len(params) == 0 {
			return "", false
		}
		p := params[0]
		params = params[1:]
		return p, true
	}

	for i := 0; i < len(modeStr); i++ {
		c := modeStr[i]

		switch c {
		case '+':
			action = ModeAdd
			continue
		case '-':
			action = ModeDelete
			continue
		}

		t := n.ChanModes

		if mode, ok := t.Status[c]; ok {
			param, ok := shift()
			if !ok {
				n.log.Errorf("ran out of params parsing modes on %s: %s", ch.Name, modeStr)
				return deltas
			}
			n.applyStatusMode(ch, action, mode, param)
			deltas = append(deltas, Delta{action, mode, param})
			continue
		}

		if mode, ok := t.List[c]; ok {
			param, ok := shift()
			if !ok {
				n.log.Errorf("ran out of params parsing modes on %s: %s", ch.Name, modeStr)
				return deltas
			}
			if action == ModeAdd {
				ch.Lists[mode] = append(ch.Lists[mode], param)
			} else {
				ch.Lists[mode] = remove(ch.Lists[mode], param)
			}
			deltas = append(deltas, Delta{action, mode, param})
			n.postChannelModeEvent(action, mode, ch)
			continue
		}

		if mode, ok := t.Param[c]; ok {
			var param string
			// The limit mode has no parameter on removal; a key is always
			// accompanied by one (some servers send the key, some '*').
			if mode != Limited || action == ModeAdd {
				var ok bool
				param, ok = shift()
				if !ok {
					n.log.Errorf("ran out of params parsing modes on %s: %s", ch.Name, modeStr)
					return deltas
				}
			}

			switch mode {
			case Keyed:
				if action == ModeAdd {
					ch.Key = param
					ch.Modes[mode] = true
				} else {
					ch.Key = ""
					delete(ch.Modes, mode)
				}
			case Limited:
				if action == ModeAdd {
					ch.Limit = atoi(param)
					ch.Modes[mode] = true
				} else {
					ch.Limit = 0
					delete(ch.Modes, mode)
				}
			default:
				if action == ModeAdd {
					ch.Modes[mode] = true
				} else {
					delete(ch.Modes, mode)
				}
			}

			deltas = append(deltas, Delta{action, mode, param})
			n.postChannelModeEvent(action, mode, ch)
			continue
		}

		if mode, ok := t.Bool[c]; ok {
			if action == ModeAdd {
				ch.Modes[mode] = true
			} else {
				delete(ch.Modes, mode)
			}
			deltas = append(deltas, Delta{action, mode, ""})
			n.postChannelModeEvent(action, mode, ch)
			continue
		}

		n.log.Debugf("unknown channel mode letter: %c", c)
	}

	return deltas
}

// applyStatusMode routes a status-mode change to the affected member.
func (n *Network) applyStatusMode(ch *Channel, action ModeAction, mode Mode, key string) {
	user := n.FindUser(key)
	if user == nil {
		user = n.FindUserByNick(key)
	}
	if user == nil {
		n.log.Warnf("cannot parse a status mode for an unknown user: %s %s%s (%s)",
			key, action, mode, ch.Name)
		return
	}

	if action == ModeAdd {
		user.AddStatusMode(ch, mode)
		n.events.Post(event.ModeAddedOnChannel, mode, user, ch)
	} else {
		user.DeleteStatusMode(ch, mode)
		n.events.Post(event.ModeDeletedOnChannel, mode, user, ch)
	}

	n.log.Debugf("%s %s%s %s", ch.Name, action, mode, user.Nickname)
}

func (n *Network) postChannelModeEvent(action ModeAction, mode Mode, ch *Channel) {
	if action == ModeAdd {
		n.events.Post(event.ModeAddedOnChannel, mode, nil, ch)
	} else {
		n.events.Post(event.ModeDeletedOnChannel, mode, nil, ch)
	}
}

// ApplyUserModes interprets a user-mode string (no parameters) against the
// dialect's user-mode table.
func (n *Network) ApplyUserModes(u *User, modeStr string) []Delta {
	var deltas []Delta
	action := ModeAdd

	for i := 0; i < len(modeStr); i++ {
		c := modeStr[i]

		switch c {
		case '+':
			action = ModeAdd
			continue
		case '-':
			action = ModeDelete
			continue
		}

		mode, ok := n.UserModes[c]
		if !ok {
			continue
		}

		if action == ModeAdd {
			u.Modes[mode] = true
			n.events.Post(event.ModeAddedToUser, mode, u)
		} else {
			delete(u.Modes, mode)
			n.events.Post(event.ModeDeletedFromUser, mode, u)
		}

		n.log.Debugf("mode %s: %s -> %s", action, u.Nickname, mode)
		deltas = append(deltas, Delta{action, mode, ""})
	}

	return deltas
}

func remove(list []string, s string) []string {
	out := list[:0]
	for _, v := range list {
		if v != s {
			out = append(out, v)
		}
	}
	return out
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
