// Package message parses one inbound protocol line into the classic
// (origin, command, parv) triple.
package message

import (
	"strings"

	"github.com/ergochat/irc-go/ircmsg"
)

// Message is one parsed protocol line. It lives only as long as dispatch.
type Message struct {
	// Origin is the sender, without the leading colon. Empty when the
	// line carried no prefix.
	Origin string

	// Command as received; dispatch keys are uppercased by the caller.
	Command string

	// Positional parameters. The last element may contain spaces when the
	// line carried a trailing parameter.
	Parv []string

	// Raw is the line as received, CR/LF stripped.
	Raw string

	// When the origin is a nick!user@host mask these carry the pieces.
	// All empty when the origin is a server name or SID.
	OriginNick string
	OriginUser string
	OriginHost string
}

// Parse splits a line (CR/LF already stripped) per the IRC line grammar.
// It returns nil for an empty line and for a line with no command.
//
// A trailing parameter is appended iff the " :" separator was present,
// even when the trailing text itself is empty. "CMD arg :" therefore
// yields parv ["arg", ""] while "CMD arg" yields ["arg"].
func Parse(line string) *Message {
	if line == "" {
		return nil
	}

	m := &Message{Raw: line}
	rest := line

	if rest[0] == ':' {
		var origin string
		origin, rest, _ = strings.Cut(rest, " ")
		m.Origin = origin[1:]

		if nuh, err := ircmsg.ParseNUH(m.Origin); err == nil && nuh.User != "" {
			m.OriginNick = nuh.Name
			m.OriginUser = nuh.User
			m.OriginHost = nuh.Host
		}
	}

	tokens, trailing, hasTrailing := strings.Cut(rest, " :")

	parv := strings.Split(tokens, " ")
	m.Command = parv[0]
	m.Parv = parv[1:]

	if hasTrailing {
		m.Parv = append(m.Parv, trailing)
	}

	if m.Command == "" {
		return nil
	}

	return m
}

// ToChannel reports whether the message's first parameter names a channel.
func (m *Message) ToChannel() bool {
	if len(m.Parv) == 0 || m.Parv[0] == "" {
		return false
	}
	switch m.Parv[0][0] {
	case '#', '&', '!':
		return true
	}
	return false
}
