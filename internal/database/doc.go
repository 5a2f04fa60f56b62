// Package database provides SQLite-based storage for exported graphs.
//
// GraphDB keeps one import per event log run through `cjdnswalk graph`:
// the deduplicated nodes (address, version) and undirected edges of that
// log, plus where it came from and which crawl session produced it.
// Successive imports can be listed and compared, and a node's sightings
// across imports looked up by address.
//
// The crawl itself never touches the database; it only ever receives an
// event log that has already been written.
//
// SQLite comes from modernc.org/sqlite, a CGO-free driver, with WAL
// journaling enabled by default.
package database
