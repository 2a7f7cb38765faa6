package chat

import (
	"time"
)

const (
	// MaxHistory is the number of messages a channel keeps.
	MaxHistory = 40
	// MaxTextLength is the longest stored message text, in bytes.
	MaxTextLength = 256
	// MaxNameLength bounds channel names and nicknames, in bytes.
	MaxNameLength = 24
)

type Message struct {
	Time time.Time
	Nick string
	Text string
}

// truncateText cuts text to MaxTextLength bytes.
func truncateText(text string) string {
	if len(text) > MaxTextLength {
		return text[:MaxTextLength]
	}
	return text
}
