// Package directory keeps the registry of nodes discovered during a crawl.
//
// A node is split into two parts. Its Identity (public key, protocol
// version, encoding scheme) is fixed when the node is first seen and never
// changes afterwards; a later observation reporting a different scheme is
// rejected with ErrSchemeChanged. Everything else on a Node is liveness
// state that the crawl updates as responses arrive: the last time the node
// was heard from, whether its neighbors have been enumerated, which parents
// it is reachable from, which of its own peers have been queried through it
// and the peer hints collected while enumerating it.
//
// The directory is not safe for concurrent use. The crawl mutates it from a
// single event loop.
package directory
