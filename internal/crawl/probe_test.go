package crawl

import (
	"bytes"
	"testing"

	"github.com/cjdelisle/cjdnswalk/internal/label"
	"github.com/cjdelisle/cjdnswalk/internal/wire"
)

func newTestProbe(t *testing.T) (*Probe, *fakeLink) {
	t.Helper()
	link := &fakeLink{}
	p, err := NewProbe(link, selfName, bytes.Repeat([]byte{7}, 32), discardLogger())
	if err != nil {
		t.Fatal(err)
	}
	return p, link
}

func sentPing(t *testing.T, link *fakeLink) *wire.Ping {
	t.Helper()
	f := link.frames[len(link.frames)-1]
	if !f.Route.Ctrl {
		t.Fatal("expected a control frame")
	}
	c, err := wire.ParseControl(f.Content)
	if err != nil {
		t.Fatal(err)
	}
	if c.Type != wire.ControlKeyPing {
		t.Fatalf("expected KEYPING, got %s", c.Type)
	}
	return c.Ping
}

func pong(t *testing.T, from label.NodeName, path label.Label, data []byte) wire.Frame {
	t.Helper()
	key, err := label.KeyBytes(from.Key)
	if err != nil {
		t.Fatal(err)
	}
	c := &wire.Control{Type: wire.ControlKeyPong, Ping: &wire.Ping{Version: 18, Key: key, Data: data}}
	return wire.NewControlFrame(path, c)
}

func TestProbe(t *testing.T) {
	t.Parallel()

	var id CorrelationID
	id[0] = 42

	t.Run("matching pong confirms once", func(t *testing.T) {
		t.Parallel()
		p, link := newTestProbe(t)
		if err := p.Probe(xName, id); err != nil {
			t.Fatal(err)
		}
		ping := sentPing(t, link)
		if link.frames[0].Route.Switch.Label != xName.Path {
			t.Errorf("ping must travel the probed path, got %s", link.frames[0].Route.Switch.Label)
		}

		ev, err := p.HandleControl(pong(t, xName, xName.Path, ping.Data))
		if err != nil {
			t.Fatal(err)
		}
		if ev.Outcome != ProbeConfirmed || ev.Key != xName.Key {
			t.Errorf("expected confirmation, got %+v", ev)
		}

		ev, _ = p.HandleControl(pong(t, xName, xName.Path, ping.Data))
		if ev.Outcome != ProbeUnsolicited {
			t.Errorf("a second pong is unsolicited, got %s", ev.Outcome)
		}
	})

	t.Run("wrong responder", func(t *testing.T) {
		t.Parallel()
		p, link := newTestProbe(t)
		if err := p.Probe(xName, id); err != nil {
			t.Fatal(err)
		}
		ping := sentPing(t, link)

		ev, _ := p.HandleControl(pong(t, aName, xName.Path, ping.Data))
		if ev.Outcome != ProbeMismatch {
			t.Errorf("expected mismatch for wrong key, got %s", ev.Outcome)
		}
		ev, _ = p.HandleControl(pong(t, xName, 0x15, ping.Data))
		if ev.Outcome != ProbeMismatch {
			t.Errorf("expected mismatch for wrong path, got %s", ev.Outcome)
		}
		if p.Pending() != 1 {
			t.Errorf("mismatches must not clear the probe, got %d pending", p.Pending())
		}
	})

	t.Run("forged data", func(t *testing.T) {
		t.Parallel()
		p, link := newTestProbe(t)
		if err := p.Probe(xName, id); err != nil {
			t.Fatal(err)
		}
		data := bytes.Clone(sentPing(t, link).Data)
		data[len(data)-1] ^= 1

		ev, _ := p.HandleControl(pong(t, xName, xName.Path, data))
		if ev.Outcome != ProbeUnsolicited {
			t.Errorf("expected unsolicited, got %s", ev.Outcome)
		}
		ev, _ = p.HandleControl(pong(t, xName, xName.Path, []byte("short")))
		if ev.Outcome != ProbeUnsolicited {
			t.Errorf("expected unsolicited, got %s", ev.Outcome)
		}
	})

	t.Run("forgotten probe", func(t *testing.T) {
		t.Parallel()
		p, link := newTestProbe(t)
		if err := p.Probe(xName, id); err != nil {
			t.Fatal(err)
		}
		ping := sentPing(t, link)
		p.Forget(id)

		ev, _ := p.HandleControl(pong(t, xName, xName.Path, ping.Data))
		if ev.Outcome != ProbeUnsolicited {
			t.Errorf("expected unsolicited, got %s", ev.Outcome)
		}
	})

	t.Run("switch error", func(t *testing.T) {
		t.Parallel()
		p, _ := newTestProbe(t)
		c := &wire.Control{
			Type:  wire.ControlError,
			Error: &wire.SwitchError{Type: wire.ErrorUndeliverable, Cause: wire.SwitchHeader{Label: 0x153}},
		}
		ev, err := p.HandleControl(wire.NewControlFrame(0x13, c))
		if err != nil {
			t.Fatal(err)
		}
		if ev.Outcome != ProbeSwitchError || ev.Error.Type != wire.ErrorUndeliverable {
			t.Errorf("unexpected event %+v", ev)
		}
	})

	t.Run("horizon is never probed", func(t *testing.T) {
		t.Parallel()
		p, link := newTestProbe(t)
		if err := p.Probe(hName, id); err == nil {
			t.Error("expected an error")
		}
		if len(link.frames) != 0 {
			t.Error("nothing should be sent")
		}
	})
}
