// Package label implements cjdns switch label arithmetic.
//
// A switch label is a 64-bit source route read from the least significant
// bit upward. Each hop consumes a prefix-coded "director" chosen from the
// hop's encoding scheme; the highest set bit terminates the route. The text
// form is sixteen lowercase hex digits in four dot-separated groups, for
// example 0000.0000.0000.0013.
//
// The package covers:
//   - Parsing and formatting labels (Parse, Label.String)
//   - Encoding schemes and their compact wire form (ParseScheme, Scheme.Bytes)
//   - Converting a label between the forms of a scheme (ReEncode)
//   - Composing routes (Splice)
//   - Node names of the form v<version>.<label>.<key>.k (ParseNodeName)
//   - cjdns base32 public keys and the IPv6 address derived from them
//
// Two labels are reserved: Self (0000.0000.0000.0001) routes to the local
// router and Horizon (ffff.ffff.ffff.ffff) marks a destination that cannot
// be reached by splicing.
package label
