package crawl

import (
	"github.com/cjdelisle/cjdnswalk/internal/directory"
	"github.com/cjdelisle/cjdnswalk/internal/label"
	"github.com/cjdelisle/cjdnswalk/internal/wire"
)

// dispatchClass breaks ties between queries on the same route.
type dispatchClass uint8

const (
	// classSelf is a get-peers query starting at the target itself.
	classSelf dispatchClass = iota

	// classSearch is a follow-up get-peers query searching near a path.
	classSearch

	// classLiveness is a liveness-only query.
	classLiveness
)

func (c dispatchClass) String() string {
	switch c {
	case classSelf:
		return "self"
	case classSearch:
		return "search"
	default:
		return "liveness"
	}
}

// PendingQuery is one query from issue until it is retired. The session
// hands the same value to the correlator, the scheduler and its retry
// timer.
type PendingQuery struct {
	id CorrelationID

	// kind is wire.QueryGetPeers or wire.QueryPing.
	kind string

	// target is the node queried, with Path the full route to it.
	target label.NodeName

	// parent is the node target was learned from.
	parent *directory.Node

	// link is parent's canonical label for target.
	link label.Label

	// near is the path the responder should enumerate around.
	near label.Label

	// scratch holds the peer keys already collected along this
	// enumeration. Follow-up queries inherit it.
	scratch directory.Set[string]

	frame wire.Frame

	// attempts counts sends so far.
	attempts int

	// retries is the number of sends allowed after the first.
	retries int

	// fallback marks the liveness-only query issued for an unresponsive
	// get-peers target.
	fallback bool

	// fellBack records that this query already issued its fallback.
	fellBack bool

	// enqueued is the scheduler stamp of the latest time the query was
	// queued.
	enqueued uint64

	timer Timer

	// gen changes whenever timer is replaced or stopped, so a timer that
	// fires late can tell it is stale.
	gen uint64

	done bool
}

// ID returns the query's correlation id.
func (q *PendingQuery) ID() CorrelationID { return q.id }

// Target returns the queried node.
func (q *PendingQuery) Target() label.NodeName { return q.target }

// Attempts returns the number of sends so far.
func (q *PendingQuery) Attempts() int { return q.attempts }

func (q *PendingQuery) class() dispatchClass {
	switch {
	case q.kind == wire.QueryPing:
		return classLiveness
	case q.near == label.Self:
		return classSelf
	default:
		return classSearch
	}
}

// settle stops the retry timer and marks the query retired.
func (q *PendingQuery) settle() {
	q.done = true
	q.gen++
	if q.timer != nil {
		q.timer.Stop()
		q.timer = nil
	}
}
