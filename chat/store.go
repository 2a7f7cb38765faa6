package chat

import (
	"sync"
)

// MessageStore archives posted messages. The archive is write-mostly: it is
// never used to rebuild channel history.
type MessageStore interface {
	Init() error
	AppendMessage(channel string, msg Message) error
	// GetMessages returns up to limit messages of channel, oldest first.
	// offset counts back from the newest message (0 is the newest).
	GetMessages(channel string, offset, limit int) ([]Message, error)
	Close() error
}

// NullMessageStore is a message store that does nothing.
type NullMessageStore struct{}

func NewNullMessageStore() *NullMessageStore {
	return &NullMessageStore{}
}

func (s *NullMessageStore) Init() error { return nil }

func (s *NullMessageStore) AppendMessage(string, Message) error { return nil }

func (s *NullMessageStore) GetMessages(string, int, int) ([]Message, error) {
	return []Message{}, nil
}

func (s *NullMessageStore) Close() error { return nil }

// MemoryMessageStore keeps the most recent messages of every channel in
// process memory.
type MemoryMessageStore struct {
	mu       sync.RWMutex
	limit    int
	messages map[string][]Message
}

// NewMemoryMessageStore creates a store keeping at most limit messages per
// channel. A non-positive limit means 4000.
func NewMemoryMessageStore(limit int) *MemoryMessageStore {
	if limit <= 0 {
		limit = 4000
	}
	return &MemoryMessageStore{
		limit:    limit,
		messages: make(map[string][]Message),
	}
}

func (s *MemoryMessageStore) Init() error {
	return nil
}

func (s *MemoryMessageStore) AppendMessage(channel string, msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs := append(s.messages[channel], msg)
	if len(msgs) > s.limit {
		msgs = msgs[len(msgs)-s.limit:]
	}
	s.messages[channel] = msgs
	return nil
}

func (s *MemoryMessageStore) GetMessages(channel string, offset, limit int) ([]Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs := s.messages[channel]
	end := len(msgs) - offset
	if end < 0 {
		end = 0
	}
	start := end - limit
	if start < 0 {
		start = 0
	}
	out := make([]Message, end-start)
	copy(out, msgs[start:end])
	return out, nil
}

func (s *MemoryMessageStore) Close() error {
	return nil
}
