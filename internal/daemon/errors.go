package daemon

import (
	"errors"
	"fmt"
)

// Admin connectivity errors.
var (
	// ErrNotAdmin is returned when the endpoint answers but does not speak
	// the cjdns admin protocol.
	ErrNotAdmin = errors.New("endpoint is not a cjdns admin port")

	// ErrCannotConnect is returned when no datagram can be exchanged with
	// the admin endpoint. Usually cjdroute is not running.
	ErrCannotConnect = errors.New("cannot connect to cjdns admin")

	// ErrTimeout is returned when the router does not answer in time.
	ErrTimeout = errors.New("timeout waiting for cjdns admin")

	// ErrAuthFailed is returned when the router rejects the admin password.
	ErrAuthFailed = errors.New("cjdns admin authentication failed")

	// ErrMalformedReply is returned when a reply lacks a required field.
	ErrMalformedReply = errors.New("malformed admin reply")

	// ErrNoPeers is returned when the router has no established peer to
	// bootstrap from.
	ErrNoPeers = errors.New("no established peers")
)

// RemoteError is an error string returned by an admin function.
type RemoteError struct {
	Func    string
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s: %s", e.Func, e.Message)
}

// AdminStatus represents the result of checking the admin endpoint.
type AdminStatus int

const (
	// AdminStatusOK indicates the endpoint answered a ping with a pong.
	AdminStatusOK AdminStatus = iota

	// AdminStatusWrongService indicates something answered but not cjdns.
	AdminStatusWrongService

	// AdminStatusCannotConnect indicates the datagram could not be delivered.
	AdminStatusCannotConnect

	// AdminStatusTimeout indicates no answer arrived in time.
	AdminStatusTimeout
)

// String returns a human-readable description of the status.
func (s AdminStatus) String() string {
	switch s {
	case AdminStatusOK:
		return "OK"
	case AdminStatusWrongService:
		return "wrong service (not cjdns)"
	case AdminStatusCannotConnect:
		return "cannot connect"
	case AdminStatusTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// Error returns the appropriate error for this status, or nil if OK.
func (s AdminStatus) Error() error {
	switch s {
	case AdminStatusOK:
		return nil
	case AdminStatusWrongService:
		return ErrNotAdmin
	case AdminStatusCannotConnect:
		return ErrCannotConnect
	case AdminStatusTimeout:
		return ErrTimeout
	default:
		return errors.New("unknown admin status")
	}
}
