package label

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"math/bits"
)

// Label is a switch label.
type Label uint64

const (
	// Self is the label addressing the local router.
	Self Label = 1

	// Horizon is the sentinel for a route that cannot be composed.
	// It is never spliced and never dispatched as a query target.
	Horizon Label = math.MaxUint64
)

// textLen is the length of the dotted text form (16 hex digits + 3 dots).
const textLen = 19

// ErrMalformedLabel is returned when label text or bytes cannot be decoded.
var ErrMalformedLabel = errors.New("malformed label")

// Parse decodes the dotted hex text form of a label.
func Parse(s string) (Label, error) {
	if len(s) != textLen {
		return 0, fmt.Errorf("%w: %q", ErrMalformedLabel, s)
	}

	var v uint64
	for i := 0; i < textLen; i++ {
		c := s[i]
		if isDot(i) {
			if c != '.' {
				return 0, fmt.Errorf("%w: %q", ErrMalformedLabel, s)
			}
			continue
		}

		var d byte
		switch {
		case c >= '0' && c <= '9':
			d = c - '0'
		case c >= 'a' && c <= 'f':
			d = c - 'a' + 10
		default:
			return 0, fmt.Errorf("%w: %q", ErrMalformedLabel, s)
		}
		v = v<<4 | uint64(d)
	}

	return Label(v), nil
}

// MustParse is like Parse but panics on malformed input.
// It is intended for constants and tests.
func MustParse(s string) Label {
	l, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return l
}

// String returns the dotted hex text form.
func (l Label) String() string {
	const digits = "0123456789abcdef"

	var buf [textLen]byte
	v := uint64(l)
	for i := textLen - 1; i >= 0; i-- {
		if isDot(i) {
			buf[i] = '.'
			continue
		}
		buf[i] = digits[v&0xf]
		v >>= 4
	}
	return string(buf[:])
}

// Bytes returns the big-endian wire form of the label.
func (l Label) Bytes() []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(l))
	return b
}

// FromBytes decodes an 8-byte big-endian label.
func FromBytes(b []byte) (Label, error) {
	if len(b) != 8 {
		return 0, fmt.Errorf("%w: %d bytes", ErrMalformedLabel, len(b))
	}
	return Label(binary.BigEndian.Uint64(b)), nil
}

// Len returns the number of significant bits below the terminating bit,
// which is log2 of the label. The zero label has length -1.
func (l Label) Len() int {
	return bits.Len64(uint64(l)) - 1
}

// IsSelf reports whether l addresses the local router.
func (l Label) IsSelf() bool { return l == Self }

// IsHorizon reports whether l is the unreachable sentinel.
func (l Label) IsHorizon() bool { return l == Horizon }

func isDot(i int) bool {
	return i == 4 || i == 9 || i == 14
}
