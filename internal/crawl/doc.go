// Package crawl walks a cjdns mesh and reconstructs its topology.
//
// A Session starts from one bootstrap peer and asks it for its peers with
// get-peers queries. Responses come back in pages: as long as a node keeps
// reporting peers not seen before, the session asks again, searching near
// the first reported path. Once a node has nothing new to report its
// enumeration is complete. The link from its parent is recorded, the node
// is marked visited and each collected peer is queried in turn through the
// route composed from the visited node.
//
// All session state lives on one goroutine. Inbound frames, the dispatch
// tick, the progress tick and per-query retry timers are serialized through
// Session.Run, so nothing in this package takes a lock.
//
// Outbound queries are not sent directly. They are placed in a Scheduler
// ordered by route, shortest first, and the session releases one per tick.
// A query that is not answered within the retry interval is queued again
// up to a fixed number of times. From the second attempt on, a key ping is
// sent along the same route, and after the second attempt a single
// liveness-only query is queued as a fallback. A query that exhausts its
// retries is abandoned and recorded as a failure.
//
// A crawl ends when nothing is queued and nothing is outstanding.
package crawl
