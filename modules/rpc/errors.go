package rpc

import (
	"errors"
	"fmt"
)

var (
	// ErrTimeout is returned when no reply arrived before the call's deadline.
	ErrTimeout = errors.New("rpc: timeout")
	// ErrConnection covers dialing, writing and reading failures.
	ErrConnection = errors.New("rpc: connection failure")
	// ErrClosed is returned by calls on a closed client.
	ErrClosed = errors.New("rpc: client closed")
)

// RemoteError carries the "err" member of a reply: the remote handler threw.
type RemoteError struct {
	Pattern string
	Body    []byte
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("rpc: remote error for %s: %s", e.Pattern, e.Body)
}
