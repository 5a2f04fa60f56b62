// Package model defines the graph export data structures shared by the
// graph, database and report packages.
//
// Graph is the payload a downstream topology collector receives: nodes
// identified by cjdns IPv6 address and version, and undirected edges
// between two addresses. Summary condenses a Graph for the text and
// Markdown reports, and Import describes one event log stored in the
// graph database.
//
// The types serialize to JSON; Graph's encoding is the collector's wire
// format, so its field names are fixed.
package model
