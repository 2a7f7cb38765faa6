package chat

import (
	"time"

	"github.com/iwanhae/chanline/linewire"
)

// Config holds the runtime settings of a ChatServer.
type Config struct {
	// IOTimeout bounds every read and write on a client connection.
	IOTimeout time.Duration
	// ShutdownTimeout bounds how long Shutdown waits for handlers when the
	// caller's context has no deadline of its own.
	ShutdownTimeout time.Duration
	// MaxPerIP caps simultaneous connections from one address. Zero
	// disables the cap.
	MaxPerIP int
	// HostKeyPath is the SSH host key file. Empty means a key is generated
	// at startup.
	HostKeyPath string
}

func DefaultConfig() Config {
	return Config{
		IOTimeout:       linewire.DefaultTimeout,
		ShutdownTimeout: 10 * time.Second,
	}
}

// Sanitize replaces out-of-range values with defaults.
func (c Config) Sanitize() Config {
	def := DefaultConfig()
	if c.IOTimeout <= 0 {
		c.IOTimeout = def.IOTimeout
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = def.ShutdownTimeout
	}
	if c.MaxPerIP < 0 {
		c.MaxPerIP = 0
	}
	return c
}
