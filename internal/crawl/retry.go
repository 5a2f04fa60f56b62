package crawl

import (
	"github.com/cjdelisle/cjdnswalk/internal/directory"
	"github.com/cjdelisle/cjdnswalk/internal/label"
	"github.com/cjdelisle/cjdnswalk/internal/wire"
)

func (s *Session) newQuery(kind string, target label.NodeName, near label.Label, parent *directory.Node, link label.Label, scratch directory.Set[string]) *PendingQuery {
	return &PendingQuery{
		kind:    kind,
		target:  target,
		parent:  parent,
		link:    link,
		near:    near,
		scratch: scratch,
		retries: s.policy.MaxRetries,
	}
}

// issue gives q a correlation id and queues it. Only errors that stop the
// crawl are returned; a query that cannot be addressed is logged and
// skipped.
func (s *Session) issue(q *PendingQuery) error {
	if q.target.Path == label.Horizon {
		s.log.Warn("refusing to query unreachable node", "key", q.target.Key)
		return nil
	}

	id, err := s.newID()
	if err != nil {
		return err
	}
	q.id = id

	msg := wire.NewQuery(q.kind, q.near, id[:], s.self.Name.Version, s.selfScheme, q.target.Path)
	payload, err := msg.Marshal()
	if err != nil {
		return err
	}
	frame, err := wire.NewDHTFrame(q.target, payload)
	if err != nil {
		s.log.Warn("cannot address node", "target", q.target.String(), "error", err)
		return nil
	}
	q.frame = frame

	if err := s.corr.Insert(id, q); err != nil {
		return err
	}
	return s.sched.Push(q)
}

func (s *Session) newID() (CorrelationID, error) {
	for {
		id, err := newCorrelationID(s.rand)
		if err != nil {
			return id, err
		}
		if !s.corr.Contains(id) {
			return id, nil
		}
	}
}

// dispatch sends q. It reports q redundant when it was retired while
// queued or an equivalent query has been answered since it was queued.
func (s *Session) dispatch(q *PendingQuery) (bool, error) {
	if q.done {
		return true, nil
	}
	if s.redundant(q) {
		s.log.Debug("skipping redundant query", "target", q.target.String(), "query", q.kind, "id", q.id.String())
		s.retire(q)
		return true, nil
	}

	q.attempts++
	attr := queryAttr(q.kind)
	s.metrics.sent.Add(s.ctx, 1, attr)
	if q.attempts > 1 {
		s.metrics.retried.Add(s.ctx, 1, attr)
	}

	if s.policy.probes(q.attempts) {
		if err := s.probe.Probe(q.target, q.id); err != nil {
			s.log.Warn("key ping failed", "target", q.target.String(), "error", err)
		} else {
			s.metrics.probes.Add(s.ctx, 1)
		}
	}

	s.log.Debug("send",
		"target", q.target.String(),
		"query", q.kind,
		"near", q.near.String(),
		"attempt", q.attempts,
		"id", q.id.String())
	if err := s.link.Send(q.frame); err != nil {
		s.log.Warn("send failed", "target", q.target.String(), "error", err)
	}

	s.arm(q)
	return false, nil
}

func (s *Session) redundant(q *PendingQuery) bool {
	link := linkKey{parent: q.parent.Key(), child: q.target.Key}
	confirmed := s.confirmed[link] > q.enqueued

	if q.kind == wire.QueryPing {
		return confirmed
	}
	if s.answered[answerKey{kind: q.kind, target: q.target.String(), near: q.near}] > q.enqueued {
		return true
	}
	if confirmed {
		n, ok := s.dir.Get(q.target.Key)
		return ok && n.Visited()
	}
	return false
}

// arm starts the retry timer for the send just made.
func (s *Session) arm(q *PendingQuery) {
	q.gen++
	gen := q.gen
	post := s.post
	q.timer = s.clock.AfterFunc(s.policy.Interval, func() {
		post(func() { s.onTimeout(q, gen) })
	})
}

func (s *Session) onTimeout(q *PendingQuery, gen uint64) {
	if q.done || q.gen != gen {
		return
	}
	q.timer = nil

	if q.attempts > q.retries {
		s.abandon(q)
		return
	}

	if q.kind == wire.QueryGetPeers && !q.fallback && !q.fellBack && s.policy.fallsBack(q.attempts) {
		q.fellBack = true
		fb := s.newQuery(wire.QueryPing, q.target, label.Self, q.parent, q.link, nil)
		fb.fallback = true
		fb.retries = 0
		if err := s.issue(fb); err != nil {
			s.fail(err)
			return
		}
	}

	if err := s.sched.Push(q); err != nil {
		s.fail(err)
	}
}

// abandon retires q after its last attempt went unanswered.
func (s *Session) abandon(q *PendingQuery) {
	s.retire(q)
	if q.fallback {
		s.log.Debug("liveness fallback unanswered", "target", q.target.String())
		return
	}

	s.metrics.abandoned.Add(s.ctx, 1, queryAttr(q.kind))
	s.log.Info("abandoning query", "target", q.target.String(), "attempts", q.attempts)
	if err := s.emit.Failure(q.target); err != nil {
		s.fail(err)
	}
}

// retire releases q's correlation id and probe and stops its timer.
func (s *Session) retire(q *PendingQuery) {
	s.corr.TakeAndRemove(q.id)
	s.probe.Forget(q.id)
	q.settle()
}
