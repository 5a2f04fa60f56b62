package label

import (
	"crypto/sha512"
	"errors"
	"fmt"
	"net/netip"
	"strings"
)

// KeySize is the length of a public key in bytes.
const KeySize = 32

// keyAlphabet is the cjdns base32 alphabet.
const keyAlphabet = "0123456789bcdfghjklmnpqrstuvwxyz"

// keySuffix terminates every public key in text form.
const keySuffix = ".k"

// ErrMalformedKey is returned when a public key cannot be decoded.
var ErrMalformedKey = errors.New("malformed public key")

var keyDigits = func() [256]int8 {
	var t [256]int8
	for i := range t {
		t[i] = -1
	}
	for i := 0; i < len(keyAlphabet); i++ {
		t[keyAlphabet[i]] = int8(i)
	}
	return t
}()

// KeyString encodes raw key bytes into text form, LSB first, with the
// ".k" suffix.
func KeyString(key [KeySize]byte) string {
	var sb strings.Builder
	sb.Grow(52 + len(keySuffix))

	var work, nbits uint32
	for _, b := range key {
		work |= uint32(b) << nbits
		nbits += 8
		for nbits >= 5 {
			sb.WriteByte(keyAlphabet[work&31])
			work >>= 5
			nbits -= 5
		}
	}
	if nbits > 0 {
		sb.WriteByte(keyAlphabet[work&31])
	}

	sb.WriteString(keySuffix)
	return sb.String()
}

// KeyBytes decodes a public key in text form.
func KeyBytes(key string) ([KeySize]byte, error) {
	var out [KeySize]byte

	body, ok := strings.CutSuffix(key, keySuffix)
	if !ok || len(body) != 52 {
		return out, fmt.Errorf("%w: %q", ErrMalformedKey, key)
	}

	var work, nbits uint32
	n := 0
	for i := 0; i < len(body); i++ {
		d := keyDigits[body[i]]
		if d < 0 {
			return out, fmt.Errorf("%w: %q", ErrMalformedKey, key)
		}
		work |= uint32(d) << nbits
		nbits += 5
		if nbits >= 8 {
			if n == KeySize {
				return out, fmt.Errorf("%w: %q", ErrMalformedKey, key)
			}
			out[n] = byte(work)
			n++
			work >>= 8
			nbits -= 8
		}
	}
	if n != KeySize || work != 0 {
		return out, fmt.Errorf("%w: %q", ErrMalformedKey, key)
	}
	return out, nil
}

// IPv6 returns the address derived from a public key: the first 16 bytes
// of sha512(sha512(key)).
func IPv6(key string) (netip.Addr, error) {
	raw, err := KeyBytes(key)
	if err != nil {
		return netip.Addr{}, err
	}
	return AddrFromKey(raw), nil
}

// AddrFromKey derives the IPv6 address for raw key bytes.
func AddrFromKey(key [KeySize]byte) netip.Addr {
	first := sha512.Sum512(key[:])
	second := sha512.Sum512(first[:])

	var a [16]byte
	copy(a[:], second[:16])
	return netip.AddrFrom16(a)
}
