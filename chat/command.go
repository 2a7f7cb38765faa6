package chat

import (
	"errors"
	"strings"
	"unicode"
)

const (
	actionJoin = "join"
	actionExit = "exit"
	actionSend = "send"
	actionRead = "read"
)

const (
	replyOK = "OK"

	reasonInvalidCommand  = "invalid command"
	reasonTooLong         = "channel or nick too long"
	reasonUnknownCommand  = "unknown command"
	reasonTooManyConns    = "too many connections"
	reasonInternalFailure = "internal error"
)

type command struct {
	action  string
	channel string
	nick    string
	// text is the rest of the line after nick, trimmed.
	text string
}

// parseCommand splits a line into action, channel, nick and the free text
// that follows them.
func parseCommand(line string) command {
	var cmd command
	rest := line
	cmd.action, rest = nextField(rest)
	cmd.channel, rest = nextField(rest)
	cmd.nick, rest = nextField(rest)
	cmd.text = strings.TrimSpace(rest)
	return cmd
}

func nextField(s string) (field, rest string) {
	s = strings.TrimLeftFunc(s, unicode.IsSpace)
	i := strings.IndexFunc(s, unicode.IsSpace)
	if i < 0 {
		return s, ""
	}
	return s[:i], s[i:]
}

// validate returns the error reason for a malformed command, or "".
func (cmd command) validate() string {
	if cmd.action == "" || cmd.channel == "" || cmd.nick == "" {
		return reasonInvalidCommand
	}
	if len(cmd.channel) > MaxNameLength || len(cmd.nick) > MaxNameLength {
		return reasonTooLong
	}
	return ""
}

// createsChannel reports whether the action may create an unknown channel.
func (cmd command) createsChannel() bool {
	return cmd.action == actionJoin || cmd.action == actionSend
}

func errorLine(reason string) string {
	return "ERROR: " + reason
}

// errorReply maps a domain error to its protocol line.
func errorReply(err error) string {
	switch {
	case errors.Is(err, ErrAlreadyMember):
		return errorLine(ErrAlreadyMember.Error())
	case errors.Is(err, ErrNotMember):
		return errorLine(ErrNotMember.Error())
	case errors.Is(err, ErrEmptyMessage):
		return errorLine(ErrEmptyMessage.Error())
	case errors.Is(err, ErrNoSuchChannel):
		return errorLine(ErrNoSuchChannel.Error())
	default:
		return errorLine(reasonInternalFailure)
	}
}
