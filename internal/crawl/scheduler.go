package crawl

import (
	"bytes"
	"time"

	"github.com/google/btree"
)

// btreeDegree is the branching factor of the send queue.
const btreeDegree = 16

// scheduled is one entry of the send queue.
type scheduled struct {
	path   uint64
	class  dispatchClass
	target string
	id     CorrelationID
	q      *PendingQuery
}

func lessScheduled(a, b *scheduled) bool {
	if a.path != b.path {
		return a.path < b.path
	}
	if a.class != b.class {
		return a.class < b.class
	}
	if a.target != b.target {
		return a.target < b.target
	}
	return bytes.Compare(a.id[:], b.id[:]) < 0
}

// Scheduler is the send queue. Entries are ordered by route, then by
// dispatch class, then by target name, so the crawl spreads outwards from
// the local node.
type Scheduler struct {
	tree  *btree.BTreeG[*scheduled]
	stamp uint64
}

// NewScheduler returns an empty Scheduler.
func NewScheduler() *Scheduler {
	return &Scheduler{tree: btree.NewG(btreeDegree, lessScheduled)}
}

// Push queues qs. It fails with a QueueInvariant violation if the queue did
// not grow by exactly len(qs), which means an entry replaced another.
func (s *Scheduler) Push(qs ...*PendingQuery) error {
	before := s.tree.Len()
	for _, q := range qs {
		q.enqueued = s.next()
		s.tree.ReplaceOrInsert(&scheduled{
			path:   uint64(q.target.Path),
			class:  q.class(),
			target: q.target.String(),
			id:     q.id,
			q:      q,
		})
	}
	if after := s.tree.Len(); after != before+len(qs) {
		return violation(QueueInvariant, nil, "queue grew by %d, want %d", after-before, len(qs))
	}
	return nil
}

// Len returns the number of queued entries.
func (s *Scheduler) Len() int {
	return s.tree.Len()
}

// Tick pops the head of the queue and passes it to dispatch. While dispatch
// reports the entry redundant, popping continues within the same tick. It
// returns the number of entries popped.
func (s *Scheduler) Tick(dispatch func(*PendingQuery) (redundant bool, err error)) (int, error) {
	popped := 0
	for {
		e, ok := s.tree.DeleteMin()
		if !ok {
			return popped, nil
		}
		popped++

		redundant, err := dispatch(e.q)
		if err != nil {
			return popped, err
		}
		if !redundant {
			return popped, nil
		}
	}
}

// next returns a fresh stamp. Stamps order queue insertions against other
// session events.
func (s *Scheduler) next() uint64 {
	s.stamp++
	return s.stamp
}

// RetryPolicy bounds how often a query is sent.
type RetryPolicy struct {
	// Interval is the time allowed for a response before the query is
	// queued again.
	Interval time.Duration

	// MaxRetries is the number of sends allowed after the first.
	MaxRetries int
}

// DefaultRetryPolicy returns the policy used when none is configured.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Interval: 30 * time.Second, MaxRetries: 10}
}

// probes reports whether a key ping accompanies the given attempt.
func (RetryPolicy) probes(attempt int) bool {
	return attempt >= 2
}

// fallsBack reports whether a timeout after the given number of attempts
// issues the liveness-only fallback.
func (RetryPolicy) fallsBack(attempts int) bool {
	return attempts == 2
}
