package chat

import (
	"strings"
	"sync"
	"time"
)

// Channel holds one channel's members and its bounded history. All methods
// take the channel's own lock for the in-memory work only and never perform
// I/O while holding it.
type Channel struct {
	name string

	mu       sync.Mutex
	members  map[string]struct{}
	messages []Message
}

func newChannel(name string) *Channel {
	return &Channel{
		name:     name,
		members:  make(map[string]struct{}),
		messages: make([]Message, 0, MaxHistory),
	}
}

func (ch *Channel) Name() string {
	return ch.name
}

// Join adds nick to the members.
func (ch *Channel) Join(nick string) error {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	if _, ok := ch.members[nick]; ok {
		return ErrAlreadyMember
	}
	ch.members[nick] = struct{}{}
	return nil
}

// Leave removes nick from the members.
func (ch *Channel) Leave(nick string) error {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	if _, ok := ch.members[nick]; !ok {
		return ErrNotMember
	}
	delete(ch.members, nick)
	return nil
}

// Post appends a message from nick, evicting the oldest one once the history
// is full. Text is trimmed and cut to MaxTextLength bytes. The stored message
// is returned so the caller can archive it after the lock is released.
func (ch *Channel) Post(nick, text string) (Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Message{}, ErrEmptyMessage
	}
	msg := Message{
		Time: time.Now(),
		Nick: nick,
		Text: truncateText(text),
	}

	ch.mu.Lock()
	defer ch.mu.Unlock()
	if _, ok := ch.members[nick]; !ok {
		return Message{}, ErrNotMember
	}
	if len(ch.messages) >= MaxHistory {
		// Shift in place so the backing array never grows past MaxHistory.
		n := copy(ch.messages, ch.messages[len(ch.messages)-MaxHistory+1:])
		ch.messages = ch.messages[:n]
	}
	ch.messages = append(ch.messages, msg)
	return msg, nil
}

// Snapshot returns a copy of the history, oldest first, if nick is a member.
func (ch *Channel) Snapshot(nick string) ([]Message, error) {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	if _, ok := ch.members[nick]; !ok {
		return nil, ErrNotMember
	}
	out := make([]Message, len(ch.messages))
	copy(out, ch.messages)
	return out, nil
}

// Members returns the current nicknames in no particular order.
func (ch *Channel) Members() []string {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	out := make([]string, 0, len(ch.members))
	for nick := range ch.members {
		out = append(out, nick)
	}
	return out
}

// Len returns the number of stored messages.
func (ch *Channel) Len() int {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return len(ch.messages)
}
