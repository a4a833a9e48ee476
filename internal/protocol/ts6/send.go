package ts6

import (
	"github.com/dalnet/athena/internal/state"
)

// SendHandshake emits the fixed TS6 handshake. It goes out immediately
// on connect, before any input from the remote.
//
//	PASS <password> TS 6 :<SID>
//	CAPAB :<capabs>
//	SERVER <name> 1 :<description>
//	SVINFO <max_ts_ver> <min_ts_ver> 0 :<ts>
func (t *TS6) SendHandshake() {
	t.env.Sender.Send("PASS %s TS 6 :%s", t.env.Uplink.SendPassword, t.env.Me.SID)
	t.env.Sender.Send("CAPAB :QS EX IE KLN UNKLN ENCAP")
	t.env.Sender.Send("SERVER %s 1 :%s", t.env.Me.Name, t.env.Me.Description)
	t.env.Sender.Send("SVINFO 6 6 0 :%d", t.now().Unix())
}

// PONG <NAME> :<PARAM>
func (t *TS6) sendPong(param string) {
	t.env.Sender.Send("PONG %s :%s", t.env.Me.Name, param)
}

// IntroduceUser brings a pseudo-client onto the network:
//
//	UID <nick> 1 <ts> +<umodes> <user> <host> <ip> <uid> :<real>
func (t *TS6) IntroduceUser(nick, user, host, real, umodes string) *state.User {
	ts := t.now().Unix()
	ip := t.env.Uplink.BindHost
	if ip == "" {
		ip = "255.255.255.255"
	}
	uid := t.nextUID()

	t.env.Sender.Send("UID %s 1 %d +%s %s %s %s %s :%s",
		nick, ts, umodes, user, host, ip, uid, real)

	u := t.env.Network.AddUser(nil, uid, nick, user, host, ip, real, ts)
	t.env.Network.ApplyUserModes(u, "+"+umodes)
	return u
}

// Join places one of our pseudo-clients in a channel, as an op:
//
//	SJOIN <TS> <CHANNAME> + :@<UID>
func (t *TS6) Join(u *state.User, channel string) {
	ch := t.env.Network.FindChannel(channel)
	if ch == nil {
		ch = t.env.Network.AddChannel(channel, t.now().Unix())
	}

	t.env.Sender.Send("SJOIN %d %s + :@%s", ch.TS, channel, u.ID)

	t.env.Network.JoinChannel(u, ch)
	u.AddStatusMode(ch, state.Operator)
}

// :<UID> PRIVMSG <TARGET> :<MESSAGE>
func (t *TS6) Privmsg(from *state.User, target, text string) {
	t.env.Sender.Send(":%s PRIVMSG %s :%s", from.ID, target, text)
}

// :<UID> NOTICE <TARGET> :<MESSAGE>
func (t *TS6) Notice(from *state.User, target, text string) {
	t.env.Sender.Send(":%s NOTICE %s :%s", from.ID, target, text)
}

// Quit removes one of our pseudo-clients:
//
//	:<UID> QUIT :<REASON>
func (t *TS6) Quit(u *state.User, reason string) {
	t.env.Sender.Send(":%s QUIT :%s", u.ID, reason)
	t.env.Network.DeleteUser(u.ID)
}

// Raw enqueues a protocol line verbatim.
func (t *TS6) Raw(line string) {
	t.env.Sender.Send("%s", line)
}
