package graph

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/zeebo/blake3"

	"github.com/cjdelisle/cjdnswalk/internal/label"
)

// Kind names a record in the event log.
type Kind string

// Record kinds.
const (
	KindNode    Kind = "node"
	KindLink    Kind = "link"
	KindHorizon Kind = "hzn"
	KindFailure Kind = "fail"
	KindInfo    Kind = "info"
)

// Emitter appends records to the event log.
type Emitter struct {
	w    io.Writer
	now  func() time.Time
	seen seenSet

	// counts of records written, by kind.
	counts map[Kind]int
}

// EmitterOption configures an Emitter.
type EmitterOption func(*Emitter)

// WithClock sets the time source used for record timestamps.
func WithClock(now func() time.Time) EmitterOption {
	return func(e *Emitter) {
		e.now = now
	}
}

// NewEmitter returns an Emitter writing to w.
func NewEmitter(w io.Writer, opts ...EmitterOption) *Emitter {
	e := &Emitter{
		w:      w,
		now:    time.Now,
		seen:   make(seenSet),
		counts: make(map[Kind]int),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Node records a newly discovered node. It reports whether a record was
// written; a key that was already recorded is skipped.
func (e *Emitter) Node(name label.NodeName) (bool, error) {
	if !e.seen.first(KindNode, name.Key) {
		return false, nil
	}
	return true, e.write(KindNode, name.Version, name.String())
}

// Link records that childKey is reachable from parentKey over l, which is
// in formNum of the child's scheme. Repeated tuples are skipped.
func (e *Emitter) Link(parentKey, childKey string, l label.Label, formNum int) (bool, error) {
	if !e.seen.first(KindLink, childKey, parentKey, l.String()) {
		return false, nil
	}
	return true, e.write(KindLink, l.String(), parentKey, childKey, formNum)
}

// Horizon records a peer of the node reached over via that cannot be
// addressed from here. Repeated tuples are skipped.
func (e *Emitter) Horizon(childKey string, childPath, via label.Label) (bool, error) {
	if !e.seen.first(KindHorizon, childKey, childPath.String(), via.String()) {
		return false, nil
	}
	return true, e.write(KindHorizon, childKey, childPath.String(), via.String())
}

// Failure records a query abandoned after exhausting its retries.
func (e *Emitter) Failure(target label.NodeName) error {
	return e.write(KindFailure, target.String())
}

// Info records crawl progress.
func (e *Emitter) Info(queueSize, outstanding int, sessionID string) error {
	return e.write(KindInfo, queueSize, outstanding, sessionID)
}

// Count returns the number of records of kind written so far.
func (e *Emitter) Count(kind Kind) int {
	return e.counts[kind]
}

// seenSet remembers record tuples by their blake3 digest.
type seenSet map[[32]byte]struct{}

// first reports whether the tuple has not been seen before, and marks it.
func (s seenSet) first(kind Kind, fields ...string) bool {
	buf := []byte(kind)
	for _, f := range fields {
		buf = append(buf, 0)
		buf = append(buf, f...)
	}

	sum := blake3.Sum256(buf)
	if _, ok := s[sum]; ok {
		return false
	}
	s[sum] = struct{}{}
	return true
}

func (e *Emitter) write(kind Kind, fields ...any) error {
	rec := make([]any, 0, len(fields)+2)
	rec = append(rec, kind, e.now().UnixMilli())
	rec = append(rec, fields...)

	b, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode %s record: %w", kind, err)
	}
	b = append(b, '\n')
	if _, err := e.w.Write(b); err != nil {
		return fmt.Errorf("failed to write %s record: %w", kind, err)
	}
	e.counts[kind]++
	return nil
}
