package crawl

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"github.com/cjdelisle/cjdnswalk/internal/wire"
)

// ErrDuplicateID is returned when a correlation id is already outstanding.
var ErrDuplicateID = errors.New("correlation id already outstanding")

// CorrelationID is the transaction id echoed by a responder.
type CorrelationID [wire.TxIDSize]byte

// String returns the id in base64.
func (id CorrelationID) String() string {
	return base64.RawStdEncoding.EncodeToString(id[:])
}

func newCorrelationID(r io.Reader) (CorrelationID, error) {
	var id CorrelationID
	if _, err := io.ReadFull(r, id[:]); err != nil {
		return id, fmt.Errorf("failed to generate correlation id: %w", err)
	}
	return id, nil
}

func correlationIDFrom(b []byte) (CorrelationID, bool) {
	var id CorrelationID
	if len(b) != len(id) {
		return id, false
	}
	copy(id[:], b)
	return id, true
}

// Correlator holds the queries that have been issued and not yet retired.
// It never expires entries itself; the session retires a query when it is
// answered, found redundant or abandoned.
type Correlator struct {
	pending map[CorrelationID]*PendingQuery
}

// NewCorrelator returns an empty Correlator.
func NewCorrelator() *Correlator {
	return &Correlator{pending: make(map[CorrelationID]*PendingQuery)}
}

// Insert registers q under id.
func (c *Correlator) Insert(id CorrelationID, q *PendingQuery) error {
	if _, ok := c.pending[id]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateID, id)
	}
	c.pending[id] = q
	return nil
}

// TakeAndRemove retires id and returns its query. The second result is
// false when id is unknown or was already retired.
func (c *Correlator) TakeAndRemove(id CorrelationID) (*PendingQuery, bool) {
	q, ok := c.pending[id]
	if ok {
		delete(c.pending, id)
	}
	return q, ok
}

// Contains reports whether id is outstanding.
func (c *Correlator) Contains(id CorrelationID) bool {
	_, ok := c.pending[id]
	return ok
}

// Len returns the number of outstanding queries.
func (c *Correlator) Len() int {
	return len(c.pending)
}
