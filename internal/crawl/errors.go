package crawl

import (
	"errors"
	"fmt"

	"github.com/cjdelisle/cjdnswalk/internal/label"
)

// ErrProtocolViolation matches every *ProtocolError. A session that
// returns it has stopped and cannot be resumed.
var ErrProtocolViolation = errors.New("protocol violation")

var (
	// ErrAlreadyStarted is returned when Start is called twice.
	ErrAlreadyStarted = errors.New("crawl already started")

	// ErrLinkClosed is returned by Run when the inbound channel closes
	// before the crawl completes.
	ErrLinkClosed = errors.New("router link closed")

	errHorizonTarget = errors.New("horizon is not a query target")
)

// ViolationKind classifies a ProtocolError.
type ViolationKind int

// Violation kinds.
const (
	// SchemeChanged means a known node reported a different encoding
	// scheme.
	SchemeChanged ViolationKind = iota + 1

	// UnexpectedPath means a response arrived over a route other than the
	// one it was queried on.
	UnexpectedPath

	// QueueInvariant means the scheduler merged two distinct entries.
	QueueInvariant

	// MalformedName means a node name could not be parsed.
	MalformedName
)

func (k ViolationKind) String() string {
	switch k {
	case SchemeChanged:
		return "scheme changed"
	case UnexpectedPath:
		return "unexpected path"
	case QueueInvariant:
		return "queue invariant"
	case MalformedName:
		return "malformed name"
	default:
		return fmt.Sprintf("violation(%d)", int(k))
	}
}

// ProtocolError is a condition the crawl cannot continue past.
type ProtocolError struct {
	Kind   ViolationKind
	Detail string
	Err    error
}

func (e *ProtocolError) Error() string {
	msg := "protocol violation: " + e.Kind.String()
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Is reports whether target is ErrProtocolViolation.
func (e *ProtocolError) Is(target error) bool {
	return target == ErrProtocolViolation
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

func violation(kind ViolationKind, err error, format string, args ...any) error {
	return &ProtocolError{Kind: kind, Detail: fmt.Sprintf(format, args...), Err: err}
}

// ParseBootstrap parses the bootstrap peer name given by the operator.
func ParseBootstrap(s string) (label.NodeName, error) {
	n, err := label.ParseNodeName(s)
	if err != nil {
		return label.NodeName{}, violation(MalformedName, err, "bootstrap peer")
	}
	return n, nil
}
