package crawl

import (
	"errors"
	"fmt"

	"github.com/cjdelisle/cjdnswalk/internal/directory"
	"github.com/cjdelisle/cjdnswalk/internal/label"
	"github.com/cjdelisle/cjdnswalk/internal/wire"
)

// HandleFrame processes one frame from the router. Frames that are stale,
// duplicated or malformed are logged and dropped. An error is returned only
// when the crawl cannot continue.
func (s *Session) HandleFrame(f wire.Frame) error {
	if s.fatal != nil {
		return s.fatal
	}
	if f.Route.Ctrl {
		s.handleControl(f)
		return nil
	}
	if f.Data.ContentType != wire.ContentTypeCJDHT {
		s.drop("unexpected content type", "content_type", f.Data.ContentType)
		return nil
	}

	m, err := wire.ParseMessage(f.Content)
	if err != nil {
		s.drop("malformed message", "error", err)
		return nil
	}
	id, ok := correlationIDFrom(m.TxID)
	if !ok {
		s.drop("foreign txid", "length", len(m.TxID))
		return nil
	}

	q, ok := s.corr.TakeAndRemove(id)
	if !ok {
		s.drop("stale or duplicate response", "id", id.String())
		return nil
	}
	q.settle()
	s.probe.Forget(id)
	s.metrics.accepted.Add(s.ctx, 1, queryAttr(q.kind))
	s.answered[answerKey{kind: q.kind, target: q.target.String(), near: q.near}] = s.sched.next()

	if err := s.onResponse(q, f, m); err != nil {
		if errors.Is(err, ErrProtocolViolation) {
			s.fail(err)
			return err
		}
		s.log.Warn("dropping response", "target", q.target.String(), "error", err)
	}
	return s.fatal
}

func (s *Session) drop(reason string, args ...any) {
	s.metrics.dropped.Add(s.ctx, 1)
	s.log.Debug("dropping message: "+reason, args...)
}

func (s *Session) handleControl(f wire.Frame) {
	ev, err := s.probe.HandleControl(f)
	if err != nil {
		s.drop("malformed control message", "error", err)
		return
	}
	switch ev.Outcome {
	case ProbeConfirmed:
		if n, ok := s.dir.Get(ev.Key); ok {
			n.Touch(s.clock.Now())
		}
	case ProbeMismatch, ProbeUnsolicited:
		s.metrics.dropped.Add(s.ctx, 1)
	}
}

// onResponse applies an accepted response to the crawl state.
func (s *Session) onResponse(q *PendingQuery, f wire.Frame, m *wire.Message) error {
	now := s.clock.Now()
	key := f.Route.KeyString()
	path := f.Route.Switch.Label

	node, created, err := s.dir.GetOrCreate(key, m.Scheme, q.target)
	if errors.Is(err, directory.ErrSchemeChanged) {
		return violation(SchemeChanged, err, "response to %s", q.target)
	}
	if err != nil {
		return err
	}
	if created {
		if _, err := s.emit.Node(q.target); err != nil {
			s.fail(err)
			return err
		}
	}
	node.Touch(now)

	if path != q.target.Path {
		return violation(UnexpectedPath, nil, "%s queried over %s answered over %s", key, q.target.Path, path)
	}

	formNum := int(m.FormNum)
	node.RecordReachability(q.parent.Key(), directory.Reachability{Label: q.link, FormNum: formNum, Time: now})
	s.log.Debug("recv", "target", q.target.String(), "query", q.kind, "id", q.id.String())

	if q.kind == wire.QueryPing {
		return s.confirmLink(q, node, formNum)
	}

	hints, err := wire.ParsePeers(m)
	if err != nil {
		return err
	}

	found, err := s.collectHints(q, node, path, hints)
	if err != nil {
		return err
	}
	if found {
		// More pages may follow. Ask again, searching near the first
		// reported peer.
		next := s.newQuery(wire.QueryGetPeers, q.target, hints[0].Path, q.parent, q.link, q.scratch)
		return s.issue(next)
	}

	if err := s.confirmLink(q, node, formNum); err != nil {
		return err
	}
	if node.MarkVisited() {
		return s.fanOut(node, path)
	}
	return nil
}

// collectHints stores the peers in hints that node has not reported
// before. It reports whether anything new was stored.
func (s *Session) collectHints(q *PendingQuery, node *directory.Node, via label.Label, hints []label.NodeName) (bool, error) {
	if node.Visited() {
		return false, nil
	}
	if q.scratch == nil {
		q.scratch = directory.NewSet[string]()
	}

	scheme := node.Identity().Scheme
	var fresh []directory.Hint
	for _, h := range hints {
		if h.Path == label.Self {
			continue
		}
		if node.HasTestedPeer(h.Key) || node.HasHint(h.Key) || q.scratch.Has(h.Key) {
			continue
		}

		canonical, err := label.ReEncode(h.Path, scheme, label.CanonicalForm)
		if err != nil {
			s.log.Warn("skipping peer hint", "node", node.Key(), "peer", h.String(), "error", err)
			continue
		}
		full, err := label.Splice(h.Path, via)
		if err != nil {
			return false, fmt.Errorf("peer %s via %s: %w", h, via, err)
		}
		fresh = append(fresh, directory.Hint{Name: h, Canonical: canonical, FullPath: full})
	}

	for _, h := range fresh {
		if !node.AddHint(h) {
			continue
		}
		q.scratch.Add(h.Name.Key)
		s.log.Debug("peer hint", "node", node.Key(), "peer", h.Name.Key, "label", h.Canonical.String())
	}
	return len(fresh) > 0, nil
}

// confirmLink records that the link from q's parent to node works.
func (s *Session) confirmLink(q *PendingQuery, node *directory.Node, formNum int) error {
	if _, err := s.emit.Link(q.parent.Key(), node.Key(), q.link, formNum); err != nil {
		s.fail(err)
		return err
	}
	s.confirmed[linkKey{parent: q.parent.Key(), child: node.Key()}] = s.sched.next()
	q.parent.AddTestedPeer(node.Key())
	return nil
}

// fanOut queries every peer collected from node, which was reached over
// via and has just been marked visited.
func (s *Session) fanOut(node *directory.Node, via label.Label) error {
	for _, h := range node.Hints() {
		child, known := s.dir.Get(h.Name.Key)
		if known {
			if _, ok := child.ReachableBy(node.Key()); ok {
				continue
			}
		}

		if h.FullPath == label.Horizon {
			if _, err := s.emit.Horizon(h.Name.Key, h.Name.Path, via); err != nil {
				s.fail(err)
				return err
			}
			s.log.Debug("peer beyond horizon", "node", node.Key(), "peer", h.Name.Key)
			continue
		}
		if h.Name.Key == s.self.Name.Key {
			continue
		}

		kind := wire.QueryGetPeers
		if known && child.Visited() {
			kind = wire.QueryPing
		}
		target := label.NodeName{Version: h.Name.Version, Path: h.FullPath, Key: h.Name.Key}
		if err := s.issue(s.newQuery(kind, target, label.Self, node, h.Canonical, nil)); err != nil {
			return err
		}
	}
	return nil
}
