// Package linewire frames a byte stream into newline-terminated lines with a
// bounded wait per I/O operation.
package linewire

import (
	"bufio"
	"io"
	"sync"
	"time"
)

// MaxLineLength is the longest line, in bytes and excluding the terminating
// line feed, that ReadLine accepts.
const MaxLineLength = 1024

// DefaultTimeout bounds every read and write when the caller passes zero.
const DefaultTimeout = 30 * time.Second

type readDeadliner interface {
	SetReadDeadline(t time.Time) error
}

type writeDeadliner interface {
	SetWriteDeadline(t time.Time) error
}

// Conn reads and writes lines on a stream. Deadlines are applied when the
// stream supports them (net.Conn does); other streams rely on their own idle
// handling. A Conn is owned by one goroutine, except Close, which may be
// called concurrently to abort a blocked read or write.
type Conn struct {
	rw   io.ReadWriteCloser
	r    *bufio.Reader
	line []byte

	closeOnce sync.Once
	closeErr  error
}

// NewConn wraps rw.
func NewConn(rw io.ReadWriteCloser) *Conn {
	return &Conn{
		rw:   rw,
		r:    bufio.NewReaderSize(rw, 4096),
		line: make([]byte, 0, 128),
	}
}

// ReadLine returns the next line without its line feed and without a
// trailing carriage return. It fails with ErrTimeout when no byte arrives
// within timeout, ErrConnectionClosed when the peer goes away, and
// ErrLineTooLong when more than MaxLineLength bytes precede the terminator.
func (c *Conn) ReadLine(timeout time.Duration) (string, error) {
	c.line = c.line[:0]
	for {
		// The deadline is armed only when the next byte has to come from
		// the peer, so a slow sender gets the full timeout per byte.
		if c.r.Buffered() == 0 {
			c.armRead(timeout)
		}
		b, err := c.r.ReadByte()
		if err != nil {
			return "", classify("read", err)
		}
		if b == '\n' {
			break
		}
		if len(c.line) >= MaxLineLength {
			return "", &Error{Op: "read", Kind: ErrLineTooLong}
		}
		c.line = append(c.line, b)
	}

	line := c.line
	if n := len(line); n > 0 && line[n-1] == '\r' {
		line = line[:n-1]
	}
	return string(line), nil
}

// WriteAll writes all of p. Partial writes are continued as long as each
// attempt makes progress within timeout.
func (c *Conn) WriteAll(p []byte, timeout time.Duration) error {
	for len(p) > 0 {
		c.armWrite(timeout)
		n, err := c.rw.Write(p)
		if n < 0 || n > len(p) {
			n = 0
		}
		p = p[n:]
		if err != nil {
			werr := classify("write", err)
			if n > 0 && Kind(werr) == ErrTimeout {
				continue
			}
			return werr
		}
		if n == 0 {
			return &Error{Op: "write", Kind: ErrConnectionClosed, Err: io.ErrShortWrite}
		}
	}
	return nil
}

// WriteLine writes s followed by a line feed.
func (c *Conn) WriteLine(s string, timeout time.Duration) error {
	buf := make([]byte, 0, len(s)+1)
	buf = append(buf, s...)
	buf = append(buf, '\n')
	return c.WriteAll(buf, timeout)
}

// Close closes the underlying stream. It is safe to call more than once and
// from another goroutine; pending reads and writes fail afterwards.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.rw.Close()
	})
	return c.closeErr
}

func (c *Conn) armRead(timeout time.Duration) {
	if d, ok := c.rw.(readDeadliner); ok {
		_ = d.SetReadDeadline(time.Now().Add(normalize(timeout)))
	}
}

func (c *Conn) armWrite(timeout time.Duration) {
	if d, ok := c.rw.(writeDeadliner); ok {
		_ = d.SetWriteDeadline(time.Now().Add(normalize(timeout)))
	}
}

func normalize(timeout time.Duration) time.Duration {
	if timeout <= 0 {
		return DefaultTimeout
	}
	return timeout
}
