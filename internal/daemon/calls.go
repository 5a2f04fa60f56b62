package daemon

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/cjdelisle/cjdnswalk/internal/label"
	"github.com/cjdelisle/cjdnswalk/internal/wire"
)

const (
	// PeerEstablished is the peer state of a working link.
	PeerEstablished = "ESTABLISHED"

	// ContentTypeCtrl is the content type under which the router hands
	// switch control frames to an upper-level handler.
	ContentTypeCtrl = 0xffff

	maxPeerPages = 64
)

// NodeInfo describes the local router.
type NodeInfo struct {
	// Name is the router's own node name; its path is label.Self.
	Name label.NodeName

	// Scheme is the wire form of the router's encoding scheme.
	Scheme []byte

	// IP is the router's cjdns IPv6 address as reported.
	IP string
}

// Peer is one entry of the router's peer table.
type Peer struct {
	Name     label.NodeName
	State    string
	Incoming bool
}

// NodeInfo calls Core_nodeInfo.
func (c *Client) NodeInfo(ctx context.Context) (NodeInfo, error) {
	resp, err := c.Call(ctx, "Core_nodeInfo", nil)
	if err != nil {
		return NodeInfo{}, err
	}

	addr, _ := stringField(resp["myAddr"])
	name, err := label.ParseNodeName(addr)
	if err != nil {
		return NodeInfo{}, fmt.Errorf("Core_nodeInfo: %w: myAddr: %v", ErrMalformedReply, err)
	}

	schemeHex, _ := stringField(resp["compressedSchemeHex"])
	scheme, err := hex.DecodeString(schemeHex)
	if err != nil {
		return NodeInfo{}, fmt.Errorf("Core_nodeInfo: %w: compressedSchemeHex: %v", ErrMalformedReply, err)
	}
	if _, err := label.ParseScheme(scheme); err != nil {
		return NodeInfo{}, fmt.Errorf("Core_nodeInfo: %w: %v", ErrMalformedReply, err)
	}

	ip, _ := stringField(resp["myIp6"])
	return NodeInfo{Name: name, Scheme: scheme, IP: ip}, nil
}

// Peers calls InterfaceController_peerStats, following pagination.
// Entries with an unparseable address are skipped.
func (c *Client) Peers(ctx context.Context) ([]Peer, error) {
	var peers []Peer
	for page := 0; page < maxPeerPages; page++ {
		resp, err := c.Call(ctx, "InterfaceController_peerStats", map[string]any{"page": page})
		if err != nil {
			return nil, err
		}

		list, _ := resp["peers"].([]any)
		for _, item := range list {
			m, ok := item.(map[string]any)
			if !ok {
				continue
			}
			addr, _ := stringField(m["addr"])
			name, err := label.ParseNodeName(addr)
			if err != nil {
				c.log.Debug("skipping peer", "addr", addr, "error", err)
				continue
			}
			state, _ := stringField(m["state"])
			incoming, _ := intField(m["isIncoming"])
			peers = append(peers, Peer{Name: name, State: state, Incoming: incoming != 0})
		}

		if more, _ := intField(resp["more"]); more == 0 {
			break
		}
	}
	return peers, nil
}

// Bootstrap returns the first established peer.
func (c *Client) Bootstrap(ctx context.Context) (label.NodeName, error) {
	peers, err := c.Peers(ctx)
	if err != nil {
		return label.NodeName{}, err
	}
	for _, p := range peers {
		if p.State == PeerEstablished {
			return p.Name, nil
		}
	}
	return label.NodeName{}, ErrNoPeers
}

// RegisterHandler asks the router to deliver frames of contentType to the
// given local UDP port.
func (c *Client) RegisterHandler(ctx context.Context, contentType, udpPort int) error {
	_, err := c.Call(ctx, "UpperDistributor_registerHandler", map[string]any{
		"contentType": contentType,
		"udpPort":     udpPort,
	})
	return err
}

// UnregisterHandler removes every registration for udpPort.
func (c *Client) UnregisterHandler(ctx context.Context, udpPort int) error {
	_, err := c.Call(ctx, "UpperDistributor_unregisterHandler", map[string]any{
		"udpPort": udpPort,
	})
	return err
}

// Attach registers link for CJDHT and control traffic. The returned
// function unregisters it.
func (c *Client) Attach(ctx context.Context, link *Link) (func(context.Context) error, error) {
	port := link.Port()
	for _, ct := range []int{wire.ContentTypeCJDHT, ContentTypeCtrl} {
		if err := c.RegisterHandler(ctx, ct, port); err != nil {
			return nil, err
		}
	}
	return func(ctx context.Context) error {
		return c.UnregisterHandler(ctx, port)
	}, nil
}
