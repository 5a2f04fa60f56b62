package graph

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/cjdelisle/cjdnswalk/internal/label"
)

// maxLineSize bounds a single record in the log.
const maxLineSize = 1 << 20

// ErrMalformedRecord is returned when a log line is not a valid record.
var ErrMalformedRecord = errors.New("malformed event record")

// Record is one decoded log line.
type Record struct {
	Kind Kind
	Time time.Time

	// Fields holds the elements after the timestamp.
	Fields []json.RawMessage
}

// NodeRecord is the payload of a node record.
type NodeRecord struct {
	Name label.NodeName
}

// LinkRecord is the payload of a link record.
type LinkRecord struct {
	Label     label.Label
	ParentKey string
	ChildKey  string
	FormNum   int
}

// ReadRecords calls fn for every record in r, in order. Blank lines are
// skipped. Reading stops at the first malformed line or the first error
// returned by fn.
func ReadRecords(r io.Reader, fn func(Record) error) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxLineSize)

	line := 0
	for sc.Scan() {
		line++
		b := sc.Bytes()
		if len(b) == 0 {
			continue
		}

		rec, err := parseRecord(b)
		if err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("failed to read event log: %w", err)
	}
	return nil
}

func parseRecord(b []byte) (Record, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}
	if len(raw) < 2 {
		return Record{}, fmt.Errorf("%w: %d elements", ErrMalformedRecord, len(raw))
	}

	var kind string
	if err := json.Unmarshal(raw[0], &kind); err != nil {
		return Record{}, fmt.Errorf("%w: kind: %v", ErrMalformedRecord, err)
	}
	var ms int64
	if err := json.Unmarshal(raw[1], &ms); err != nil {
		return Record{}, fmt.Errorf("%w: timestamp: %v", ErrMalformedRecord, err)
	}

	return Record{
		Kind:   Kind(kind),
		Time:   time.UnixMilli(ms),
		Fields: raw[2:],
	}, nil
}

// Node decodes a node record.
func (r Record) Node() (NodeRecord, error) {
	if r.Kind != KindNode || len(r.Fields) < 2 {
		return NodeRecord{}, fmt.Errorf("%w: not a node record", ErrMalformedRecord)
	}
	var s string
	if err := json.Unmarshal(r.Fields[1], &s); err != nil {
		return NodeRecord{}, fmt.Errorf("%w: name: %v", ErrMalformedRecord, err)
	}
	name, err := label.ParseNodeName(s)
	if err != nil {
		return NodeRecord{}, err
	}
	return NodeRecord{Name: name}, nil
}

// Link decodes a link record.
func (r Record) Link() (LinkRecord, error) {
	if r.Kind != KindLink || len(r.Fields) < 4 {
		return LinkRecord{}, fmt.Errorf("%w: not a link record", ErrMalformedRecord)
	}

	var (
		text string
		out  LinkRecord
	)
	if err := json.Unmarshal(r.Fields[0], &text); err != nil {
		return LinkRecord{}, fmt.Errorf("%w: label: %v", ErrMalformedRecord, err)
	}
	l, err := label.Parse(text)
	if err != nil {
		return LinkRecord{}, err
	}
	out.Label = l

	if err := json.Unmarshal(r.Fields[1], &out.ParentKey); err != nil {
		return LinkRecord{}, fmt.Errorf("%w: parent: %v", ErrMalformedRecord, err)
	}
	if err := json.Unmarshal(r.Fields[2], &out.ChildKey); err != nil {
		return LinkRecord{}, fmt.Errorf("%w: child: %v", ErrMalformedRecord, err)
	}
	if err := json.Unmarshal(r.Fields[3], &out.FormNum); err != nil {
		return LinkRecord{}, fmt.Errorf("%w: form: %v", ErrMalformedRecord, err)
	}
	return out, nil
}
