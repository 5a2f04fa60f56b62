package label

import (
	"errors"
	"fmt"
)

var (
	// ErrZeroLabel is returned when a label with no terminating bit is
	// used as a route.
	ErrZeroLabel = errors.New("zero label")

	// ErrSplicedTooShort is returned when a composed route is shorter than
	// the route it extends. Such a result can only come from corrupt input.
	ErrSplicedTooShort = errors.New("spliced label shorter than parent")
)

// Splice composes a route reaching child through parent. child is the label
// the parent router uses for the child; parent is the route from here to the
// parent router.
//
// Horizon on either side yields Horizon, as does a composition that would not
// fit in a label.
func Splice(child, parent Label) (Label, error) {
	if child == Horizon || parent == Horizon {
		return Horizon, nil
	}
	if parent == 0 {
		return 0, fmt.Errorf("%w: parent", ErrZeroLabel)
	}

	parentLen := parent.Len()
	if child.Len()+parentLen > maxLabelBits {
		return Horizon, nil
	}

	out := Label((uint64(child)^1)<<uint(parentLen) ^ uint64(parent))
	if out.Len() < parentLen {
		return 0, fmt.Errorf("%w: %s via %s", ErrSplicedTooShort, child, parent)
	}
	return out, nil
}
