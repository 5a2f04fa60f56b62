package crawl

import (
	"bytes"
	"io"
	"log/slog"
	"math/rand"
	"testing"
	"time"

	"go.opentelemetry.io/otel/metric/noop"

	"github.com/cjdelisle/cjdnswalk/internal/graph"
	"github.com/cjdelisle/cjdnswalk/internal/label"
	"github.com/cjdelisle/cjdnswalk/internal/wire"
)

// manualClock fires timers only when advanced.
type manualClock struct {
	now    time.Time
	timers []*manualTimer
}

type manualTimer struct {
	at      time.Time
	f       func()
	stopped bool
	fired   bool
}

func (t *manualTimer) Stop() bool {
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

func newManualClock() *manualClock {
	return &manualClock{now: time.Unix(1700000000, 0)}
}

func (c *manualClock) Now() time.Time { return c.now }

func (c *manualClock) AfterFunc(d time.Duration, f func()) Timer {
	t := &manualTimer{at: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

func (c *manualClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
	for {
		var next *manualTimer
		for _, t := range c.timers {
			if t.stopped || t.fired || t.at.After(c.now) {
				continue
			}
			if next == nil || t.at.Before(next.at) {
				next = t
			}
		}
		if next == nil {
			return
		}
		next.fired = true
		next.f()
	}
}

func (c *manualClock) Active() int {
	n := 0
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

// fakeLink records every frame sent.
type fakeLink struct {
	frames []wire.Frame
}

func (l *fakeLink) Send(f wire.Frame) error {
	l.frames = append(l.frames, f)
	return nil
}

type sentQuery struct {
	path label.Label
	key  string
	msg  *wire.Message
}

// queries decodes the DHT frames sent so far.
func (l *fakeLink) queries(t *testing.T) []sentQuery {
	t.Helper()
	var out []sentQuery
	for _, f := range l.frames {
		if f.Route.Ctrl {
			continue
		}
		m, err := wire.ParseMessage(f.Content)
		if err != nil {
			t.Fatalf("sent an undecodable query: %v", err)
		}
		out = append(out, sentQuery{path: f.Route.Switch.Label, key: f.Route.KeyString(), msg: m})
	}
	return out
}

func (l *fakeLink) controls() int {
	n := 0
	for _, f := range l.frames {
		if f.Route.Ctrl {
			n++
		}
	}
	return n
}

func (l *fakeLink) last(t *testing.T) sentQuery {
	t.Helper()
	qs := l.queries(t)
	if len(qs) == 0 {
		t.Fatal("no query sent")
	}
	return qs[len(qs)-1]
}

func testKey(seed byte) string {
	var raw [label.KeySize]byte
	for i := range raw {
		raw[i] = seed*17 + byte(i)
	}
	return label.KeyString(raw)
}

var (
	selfName = label.NodeName{Version: 18, Path: label.Self, Key: testKey(1)}
	xName    = label.NodeName{Version: 18, Path: 0x13, Key: testKey(2)}
	aName    = label.NodeName{Version: 18, Path: 0x15, Key: testKey(3)}
	bName    = label.NodeName{Version: 18, Path: 0x17, Key: testKey(4)}
	hName    = label.NodeName{Version: 18, Path: label.Horizon, Key: testKey(5)}
)

type testSession struct {
	*Session
	link  *fakeLink
	clock *manualClock
	out   *bytes.Buffer
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestSession(t *testing.T, opts ...Option) *testSession {
	t.Helper()

	link := &fakeLink{}
	clock := newManualClock()
	out := &bytes.Buffer{}
	emit := graph.NewEmitter(out, graph.WithClock(clock.Now))

	base := []Option{
		WithClock(clock),
		WithRandom(rand.New(rand.NewSource(1))), //nolint:gosec // deterministic ids
		WithMeterProvider(noop.NewMeterProvider()),
		WithLogger(discardLogger()),
		WithSessionID("test"),
	}
	s, err := NewSession(Self{Name: selfName, Scheme: label.StandardScheme.Bytes()}, link, emit, append(base, opts...)...)
	if err != nil {
		t.Fatalf("failed to create session: %v", err)
	}
	return &testSession{Session: s, link: link, clock: clock, out: out}
}

// response builds the frame node sends back over path in answer to q.
func response(t *testing.T, q sentQuery, node label.NodeName, path label.Label, scheme label.Scheme, peers []label.NodeName) wire.Frame {
	t.Helper()

	m := &wire.Message{
		TxID:    q.msg.TxID,
		Version: int64(node.Version),
		Scheme:  scheme.Bytes(),
		FormNum: int64(max(scheme.FormNum(path), 0)),
	}
	if q.msg.Query == wire.QueryGetPeers {
		if err := wire.EncodePeers(m, peers); err != nil {
			t.Fatal(err)
		}
	}
	payload, err := m.Marshal()
	if err != nil {
		t.Fatal(err)
	}
	key, err := label.KeyBytes(node.Key)
	if err != nil {
		t.Fatal(err)
	}
	return wire.Frame{
		Route: wire.RouteHeader{
			PublicKey: key,
			Switch:    wire.SwitchHeader{Label: path, Version: wire.CurrentSwitchVersion},
			Version:   uint32(node.Version),
			Incoming:  true,
		},
		Data:    wire.DataHeader{Version: wire.CurrentDataVersion, ContentType: wire.ContentTypeCJDHT},
		Content: payload,
	}
}

func (ts *testSession) records(t *testing.T) map[graph.Kind][]graph.Record {
	t.Helper()
	out := make(map[graph.Kind][]graph.Record)
	err := graph.ReadRecords(bytes.NewReader(ts.out.Bytes()), func(r graph.Record) error {
		out[r.Kind] = append(out[r.Kind], r)
		return nil
	})
	if err != nil {
		t.Fatalf("unreadable event log: %v", err)
	}
	return out
}

func (ts *testSession) tick(t *testing.T) {
	t.Helper()
	if err := ts.Tick(); err != nil {
		t.Fatalf("unexpected tick error: %v", err)
	}
}

func (ts *testSession) deliver(t *testing.T, f wire.Frame) {
	t.Helper()
	if err := ts.HandleFrame(f); err != nil {
		t.Fatalf("unexpected error handling frame: %v", err)
	}
}
