package label

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
)

// ErrMalformedName is returned when a node name does not match
// v<version>.<label>.<key>.k.
var ErrMalformedName = errors.New("malformed node name")

var nodeNamePattern = regexp.MustCompile(`^v([0-9]+)\.([0-9a-f.]{19})\.([^.]{52})\.k$`)

// NodeName addresses a node through a specific route.
type NodeName struct {
	// Version is the protocol version the node advertises.
	Version int

	// Path is the route to the node.
	Path Label

	// Key is the node's public key in text form, including the ".k" suffix.
	Key string
}

// ParseNodeName decodes v<version>.<label>.<key>.k.
func ParseNodeName(s string) (NodeName, error) {
	m := nodeNamePattern.FindStringSubmatch(s)
	if m == nil {
		return NodeName{}, fmt.Errorf("%w: %q", ErrMalformedName, s)
	}

	version, err := strconv.Atoi(m[1])
	if err != nil {
		return NodeName{}, fmt.Errorf("%w: %q: %v", ErrMalformedName, s, err)
	}

	path, err := Parse(m[2])
	if err != nil {
		return NodeName{}, fmt.Errorf("%w: %q: %v", ErrMalformedName, s, err)
	}

	return NodeName{
		Version: version,
		Path:    path,
		Key:     m[3] + ".k",
	}, nil
}

// String returns the wire text form.
func (n NodeName) String() string {
	return fmt.Sprintf("v%d.%s.%s", n.Version, n.Path, n.Key)
}

// WithPath returns a copy of n routed through path.
func (n NodeName) WithPath(path Label) NodeName {
	n.Path = path
	return n
}
