// Package wire implements the byte-exact formats exchanged with a cjdns
// router: the bencoded CJDHT query/response dictionary, the packed peer
// list carried in responses, the route and data headers that frame every
// message on the local link, and switch control messages (key pings and
// error reports).
//
// Everything here is pure encoding. Nothing in this package performs I/O.
package wire
