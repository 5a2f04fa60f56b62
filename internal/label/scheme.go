package label

import (
	"errors"
	"fmt"
	"math/bits"
	"strings"
)

// CanonicalForm asks ReEncode for the smallest form able to hold the director.
const CanonicalForm = -1

// maxLabelBits is the number of bits a label may use below the terminating bit.
const maxLabelBits = 59

var (
	// ErrMalformedScheme is returned when scheme bytes cannot be decoded
	// or describe an impossible scheme.
	ErrMalformedScheme = errors.New("malformed encoding scheme")

	// ErrUnknownForm is returned when a label matches no form of a scheme.
	ErrUnknownForm = errors.New("label matches no encoding form")

	// ErrCannotConvert is returned when a label cannot be expressed in the
	// requested form.
	ErrCannotConvert = errors.New("label cannot be converted to form")
)

// Form is one prefix-coded director width of an encoding scheme.
type Form struct {
	// BitCount is the width of the director.
	BitCount uint8

	// PrefixLen is the number of low bits identifying this form.
	PrefixLen uint8

	// Prefix is the value of those bits.
	Prefix uint32
}

// Scheme is the ordered list of forms a node uses to pack its directors.
// Forms are ordered by ascending BitCount; form 0 is the most compact.
type Scheme []Form

// StandardScheme is the 3/5/8-bit scheme used by stock cjdns routers.
var StandardScheme = Scheme{
	{BitCount: 3, PrefixLen: 1, Prefix: 1},
	{BitCount: 5, PrefixLen: 2, Prefix: 2},
	{BitCount: 8, PrefixLen: 2, Prefix: 0},
}

// ParseScheme decodes the compact bit-packed wire form of a scheme.
// Each form is packed LSB first as prefixLen(5) bitCount(5) prefix(prefixLen);
// trailing padding shorter than one form header is ignored.
func ParseScheme(b []byte) (Scheme, error) {
	r := bitReader{data: b}

	var s Scheme
	for r.remaining() >= 10 {
		prefixLen := r.read(5)
		bitCount := r.read(5)
		if r.remaining() < int(prefixLen) {
			return nil, fmt.Errorf("%w: truncated prefix", ErrMalformedScheme)
		}
		prefix := r.read(uint(prefixLen))
		s = append(s, Form{
			BitCount:  uint8(bitCount),
			PrefixLen: uint8(prefixLen),
			Prefix:    uint32(prefix),
		})
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate reports whether the scheme is usable for label conversion.
func (s Scheme) Validate() error {
	if len(s) == 0 {
		return fmt.Errorf("%w: no forms", ErrMalformedScheme)
	}
	for i, f := range s {
		if f.BitCount == 0 || f.BitCount > 31 || f.PrefixLen > 31 {
			return fmt.Errorf("%w: form %d out of range", ErrMalformedScheme, i)
		}
		if len(s) == 1 {
			continue
		}
		if f.PrefixLen == 0 {
			return fmt.Errorf("%w: form %d has no prefix", ErrMalformedScheme, i)
		}
		if i > 0 && f.BitCount <= s[i-1].BitCount {
			return fmt.Errorf("%w: form %d not wider than form %d", ErrMalformedScheme, i, i-1)
		}
	}
	return nil
}

// Bytes returns the compact wire form of the scheme.
func (s Scheme) Bytes() []byte {
	var (
		out []byte
		acc uint64
		n   uint
	)
	for _, f := range s {
		v := uint64(f.PrefixLen) | uint64(f.BitCount)<<5 | uint64(f.Prefix)<<10
		acc |= v << n
		n += 10 + uint(f.PrefixLen)
		for n >= 8 {
			out = append(out, byte(acc))
			acc >>= 8
			n -= 8
		}
	}
	if n > 0 {
		out = append(out, byte(acc))
	}
	return out
}

// String renders the scheme as bitCount/prefixLen/prefix triples.
func (s Scheme) String() string {
	parts := make([]string, len(s))
	for i, f := range s {
		parts[i] = fmt.Sprintf("%d/%d/%b", f.BitCount, f.PrefixLen, f.Prefix)
	}
	return "[" + strings.Join(parts, " ") + "]"
}

// FormNum returns the index of the form l is encoded with, or -1.
func (s Scheme) FormNum(l Label) int {
	if len(s) == 1 {
		return 0
	}
	for i, f := range s {
		if uint64(l)&mask(uint(f.PrefixLen)) == uint64(f.Prefix) {
			return i
		}
	}
	return -1
}

// ReEncode rewrites the first director of l, which is expressed in scheme s,
// into form to of the same scheme. With CanonicalForm the smallest form able
// to hold the director is chosen, which makes labels learned through
// different routers comparable.
//
// In form 0 of a multi-form scheme directors 0 and 1 are swapped so that
// 0001 always names the router itself.
func ReEncode(l Label, s Scheme, to int) (Label, error) {
	if l == Horizon {
		return Horizon, nil
	}

	from := s.FormNum(l)
	if from < 0 {
		return 0, fmt.Errorf("%w: %s", ErrUnknownForm, l)
	}
	cur := s[from]

	if len(s) == 1 || uint64(l)&mask(uint(cur.PrefixLen)+uint(cur.BitCount)) == 1 {
		if to == 0 || to == CanonicalForm {
			return l, nil
		}
		return 0, fmt.Errorf("%w: %s to %d", ErrCannotConvert, l, to)
	}

	rest := uint64(l) >> cur.PrefixLen
	director := rest & mask(uint(cur.BitCount))
	rest >>= cur.BitCount

	iface := director
	if from == 0 {
		iface = swapSelf(director)
	}

	if to == CanonicalForm {
		to = -1
		for i := range s {
			if fits(s[i], i, iface) {
				to = i
				break
			}
		}
	}
	if to < 0 || to >= len(s) || !fits(s[to], to, iface) {
		return 0, fmt.Errorf("%w: %s to %d", ErrCannotConvert, l, to)
	}

	next := s[to]
	if to == 0 {
		director = swapSelf(iface)
	} else {
		director = iface
	}

	if bits.Len64(rest)-1+int(next.BitCount)+int(next.PrefixLen) > maxLabelBits {
		return 0, fmt.Errorf("%w: %s overflows", ErrCannotConvert, l)
	}

	out := (rest<<next.BitCount|director)<<next.PrefixLen | uint64(next.Prefix)
	return Label(out), nil
}

func fits(f Form, idx int, iface uint64) bool {
	d := iface
	if idx == 0 {
		d = swapSelf(iface)
	}
	return bits.Len64(d) <= int(f.BitCount)
}

func swapSelf(v uint64) uint64 {
	if v < 2 {
		return v ^ 1
	}
	return v
}

func mask(n uint) uint64 {
	if n >= 64 {
		return ^uint64(0)
	}
	return uint64(1)<<n - 1
}

// bitReader reads little-endian bit fields from a byte slice.
type bitReader struct {
	data []byte
	pos  int
}

func (r *bitReader) remaining() int {
	return len(r.data)*8 - r.pos
}

func (r *bitReader) read(width uint) uint64 {
	var v uint64
	for i := uint(0); i < width; i++ {
		byteIdx := r.pos / 8
		bit := (r.data[byteIdx] >> (r.pos % 8)) & 1
		v |= uint64(bit) << i
		r.pos++
	}
	return v
}
