package crawl

import (
	"crypto/subtle"
	"fmt"
	"log/slog"

	"golang.org/x/crypto/blake2b"

	"github.com/cjdelisle/cjdnswalk/internal/label"
	"github.com/cjdelisle/cjdnswalk/internal/wire"
)

const probeMACSize = 16

// ProbeOutcome classifies an inbound control message.
type ProbeOutcome int

// Probe outcomes.
const (
	// ProbeIgnored is a control message the crawl has no use for.
	ProbeIgnored ProbeOutcome = iota

	// ProbeConfirmed is a key pong from the probed node over the probed
	// route.
	ProbeConfirmed

	// ProbeMismatch is a key pong for a known probe whose key or route
	// differs from the probe's target.
	ProbeMismatch

	// ProbeUnsolicited is a key pong that answers no outstanding probe.
	ProbeUnsolicited

	// ProbeSwitchError is an error report from a switch.
	ProbeSwitchError
)

func (o ProbeOutcome) String() string {
	switch o {
	case ProbeConfirmed:
		return "confirmed"
	case ProbeMismatch:
		return "mismatch"
	case ProbeUnsolicited:
		return "unsolicited"
	case ProbeSwitchError:
		return "switch error"
	default:
		return "ignored"
	}
}

// ProbeEvent is the result of ingesting one control message.
type ProbeEvent struct {
	Outcome ProbeOutcome

	// Key is the key claimed by the responder of a key pong.
	Key string

	// Path is the route the message arrived on.
	Path label.Label

	// Error is set for ProbeSwitchError.
	Error *wire.SwitchError
}

// Probe sends key pings along query routes and checks the pongs. A ping
// carries the query's correlation id and a MAC over the id and the probed
// target, so a pong can only be matched to a probe this session sent.
type Probe struct {
	link    Sender
	version uint32
	self    [label.KeySize]byte
	secret  []byte
	pending map[CorrelationID]label.NodeName
	log     *slog.Logger
}

// NewProbe returns a Probe sending through link on behalf of the local
// node. secret keys the probe MAC.
func NewProbe(link Sender, self label.NodeName, secret []byte, logger *slog.Logger) (*Probe, error) {
	key, err := label.KeyBytes(self.Key)
	if err != nil {
		return nil, err
	}
	if len(secret) == 0 || len(secret) > blake2b.Size {
		return nil, fmt.Errorf("probe secret must be 1 to %d bytes", blake2b.Size)
	}
	return &Probe{
		link:    link,
		version: uint32(self.Version),
		self:    key,
		secret:  secret,
		pending: make(map[CorrelationID]label.NodeName),
		log:     logger,
	}, nil
}

// Probe sends a key ping to target over target.Path on behalf of the query
// identified by id.
func (p *Probe) Probe(target label.NodeName, id CorrelationID) error {
	if target.Path == label.Horizon {
		return errHorizonTarget
	}

	data := make([]byte, 0, len(id)+probeMACSize)
	data = append(data, id[:]...)
	data = append(data, p.mac(id, target)...)

	ping := wire.NewKeyPing(p.version, p.self, data)
	if err := p.link.Send(wire.NewControlFrame(target.Path, ping)); err != nil {
		return fmt.Errorf("failed to send key ping: %w", err)
	}
	p.pending[id] = target
	return nil
}

// Forget drops the probe for id.
func (p *Probe) Forget(id CorrelationID) {
	delete(p.pending, id)
}

// Pending returns the number of probes awaiting a pong.
func (p *Probe) Pending() int {
	return len(p.pending)
}

// HandleControl ingests a control frame. Mismatched and unsolicited pongs
// and switch errors are logged; none of them is an error.
func (p *Probe) HandleControl(f wire.Frame) (ProbeEvent, error) {
	c, err := wire.ParseControl(f.Content)
	if err != nil {
		return ProbeEvent{}, err
	}

	ev := ProbeEvent{Path: f.Route.Switch.Label}
	switch c.Type {
	case wire.ControlKeyPong:
		ev.Key = label.KeyString(c.Ping.Key)
		ev.Outcome = p.matchPong(c.Ping, f.Route.Switch.Label)
	case wire.ControlError:
		ev.Outcome = ProbeSwitchError
		ev.Error = c.Error
		p.log.Info("switch error",
			"type", c.Error.Type.String(),
			"path", f.Route.Switch.Label.String(),
			"cause_label", c.Error.Cause.Label.String())
	default:
		ev.Outcome = ProbeIgnored
		p.log.Debug("ignoring control message", "type", c.Type.String())
	}
	return ev, nil
}

func (p *Probe) matchPong(pong *wire.Ping, path label.Label) ProbeOutcome {
	key := label.KeyString(pong.Key)
	if len(pong.Data) != len(CorrelationID{})+probeMACSize {
		p.log.Warn("unsolicited key pong", "key", key, "path", path.String())
		return ProbeUnsolicited
	}

	id, _ := correlationIDFrom(pong.Data[:len(CorrelationID{})])
	target, ok := p.pending[id]
	if !ok || subtle.ConstantTimeCompare(pong.Data[len(id):], p.mac(id, target)) != 1 {
		p.log.Warn("unsolicited key pong", "key", key, "path", path.String())
		return ProbeUnsolicited
	}

	if key != target.Key || path != target.Path {
		p.log.Warn("key pong mismatch",
			"expected_key", target.Key,
			"key", key,
			"expected_path", target.Path.String(),
			"path", path.String())
		return ProbeMismatch
	}

	delete(p.pending, id)
	p.log.Debug("key pong", "key", key, "path", path.String(), "id", id.String())
	return ProbeConfirmed
}

func (p *Probe) mac(id CorrelationID, target label.NodeName) []byte {
	h, err := blake2b.New(probeMACSize, p.secret)
	if err != nil {
		// Key length is checked in NewProbe.
		panic(err)
	}
	h.Write(id[:])
	h.Write(target.Path.Bytes())
	h.Write([]byte(target.Key))
	return h.Sum(nil)
}
