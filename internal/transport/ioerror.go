package transport

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"syscall"
)

// IOError is a failure at the socket or stream I/O layer.
type IOError struct {
	Op  string
	Err error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("i/o error during %s: %v", e.Op, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// IsIOError reports whether err itself, not its causes, is an I/O failure:
// an *IOError, a net/os operation error, a raw errno, or one of the io
// sentinel errors for broken streams.
func IsIOError(err error) bool {
	switch err.(type) {
	case *IOError, *net.OpError, *os.PathError, *os.SyscallError, syscall.Errno:
		return true
	}
	return err == io.ErrUnexpectedEOF || err == io.ErrClosedPipe || err == net.ErrClosed
}

// IOCause returns the I/O error that err must be surfaced as, or nil.
// A top-level I/O error is returned as is; otherwise only the direct cause
// of err (one Unwrap step) is considered.
func IOCause(err error) error {
	if err == nil {
		return nil
	}
	if IsIOError(err) {
		return err
	}
	if cause := errors.Unwrap(err); cause != nil && IsIOError(cause) {
		return cause
	}
	return nil
}
