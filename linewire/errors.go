package linewire

import (
	"errors"
	"io"
	"net"
	"os"
	"syscall"
)

// Transport failure kinds. Every error returned by Conn matches exactly one
// of them with errors.Is.
var (
	ErrTimeout          = errors.New("timeout")
	ErrConnectionClosed = errors.New("connection closed")
	ErrLineTooLong      = errors.New("line too long")
	ErrConnectionReset  = errors.New("connection reset")
	ErrBrokenPipe       = errors.New("broken pipe")
)

// Error carries the failure kind together with the underlying cause.
type Error struct {
	Op   string
	Kind error
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Op + ": " + e.Kind.Error()
	}
	return e.Op + ": " + e.Kind.Error() + ": " + e.Err.Error()
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Kind reports the transport failure kind of err, or nil when err did not
// come from a Conn.
func Kind(err error) error {
	var le *Error
	if errors.As(err, &le) {
		return le.Kind
	}
	return nil
}

func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var le *Error
	if errors.As(err, &le) {
		return err
	}

	kind := ErrConnectionClosed
	var ne net.Error
	switch {
	case errors.Is(err, os.ErrDeadlineExceeded):
		kind = ErrTimeout
	case errors.As(err, &ne) && ne.Timeout():
		kind = ErrTimeout
	case errors.Is(err, syscall.ECONNRESET), errors.Is(err, syscall.ECONNABORTED):
		kind = ErrConnectionReset
	case errors.Is(err, syscall.EPIPE):
		kind = ErrBrokenPipe
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF), errors.Is(err, net.ErrClosed):
		kind = ErrConnectionClosed
	}
	return &Error{Op: op, Kind: kind, Err: err}
}
