package daemon

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/zeebo/bencode"
)

const (
	// DefaultTimeout bounds one admin round trip.
	DefaultTimeout = 10 * time.Second

	// maxDatagram is the largest UDP payload.
	maxDatagram = 65535
)

// Client speaks the cjdroute admin RPC protocol: bencoded dictionaries
// over UDP, with every function call authenticated by a fresh cookie.
//
// A Client serializes its calls. It is meant for the handful of calls made
// while setting up a walk, not for high call rates.
type Client struct {
	conn     net.Conn
	password string
	timeout  time.Duration
	log      *slog.Logger

	mu  sync.Mutex
	buf []byte
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the per-call timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// Dial creates a client for the admin endpoint at addr ("host:port").
// No datagram is sent; call CheckConnection to verify the router is there.
func Dial(ctx context.Context, addr, password string, opts ...Option) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "udp", addr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCannotConnect, err)
	}

	c := &Client{
		conn:     conn,
		password: password,
		timeout:  DefaultTimeout,
		log:      slog.Default(),
		buf:      make([]byte, maxDatagram),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// RemoteAddr returns the admin endpoint.
func (c *Client) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

// Close releases the socket.
func (c *Client) Close() error {
	return c.conn.Close()
}

// CheckConnection sends an unauthenticated ping and classifies the result.
func (c *Client) CheckConnection(ctx context.Context) AdminStatus {
	c.mu.Lock()
	defer c.mu.Unlock()

	resp, err := c.roundTrip(ctx, map[string]any{"q": "ping"})
	switch {
	case err == nil:
		if q, _ := stringField(resp["q"]); q == "pong" {
			return AdminStatusOK
		}
		return AdminStatusWrongService
	case errors.Is(err, ErrNotAdmin):
		return AdminStatusWrongService
	case errors.Is(err, ErrTimeout):
		return AdminStatusTimeout
	default:
		return AdminStatusCannotConnect
	}
}

// Call invokes an authenticated admin function and returns its reply.
// A reply whose "error" field is anything but "none" becomes a
// *RemoteError, or ErrAuthFailed when the password was rejected.
func (c *Client) Call(ctx context.Context, fn string, args map[string]any) (map[string]any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cr, err := c.roundTrip(ctx, map[string]any{"q": "cookie"})
	if err != nil {
		return nil, fmt.Errorf("%s: cookie: %w", fn, err)
	}
	cookie, ok := stringField(cr["cookie"])
	if !ok {
		return nil, fmt.Errorf("%s: %w: no cookie", fn, ErrMalformedReply)
	}

	if args == nil {
		args = map[string]any{}
	}
	req := map[string]any{
		"q":      "auth",
		"aq":     fn,
		"args":   args,
		"cookie": cookie,
		"hash":   sha256Hex([]byte(c.password + cookie)),
		"txid":   newTxID(),
	}
	// The final hash covers the whole request, including the first hash.
	b, err := bencode.EncodeBytes(req)
	if err != nil {
		return nil, fmt.Errorf("%s: encode: %w", fn, err)
	}
	req["hash"] = sha256Hex(b)

	c.log.Debug("admin call", "fn", fn, "cookie", cookie)

	resp, err := c.roundTrip(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", fn, err)
	}
	if msg, ok := stringField(resp["error"]); ok && msg != "none" {
		if strings.HasPrefix(strings.ToLower(msg), "auth failed") {
			return nil, fmt.Errorf("%s: %w", fn, ErrAuthFailed)
		}
		return nil, &RemoteError{Func: fn, Message: msg}
	}
	return resp, nil
}

// roundTrip sends req and waits for the reply carrying the same txid.
// Replies to other transactions and undecodable datagrams are skipped.
// The caller holds c.mu.
func (c *Client) roundTrip(ctx context.Context, req map[string]any) (map[string]any, error) {
	txid, ok := req["txid"].(string)
	if !ok {
		txid = newTxID()
		req["txid"] = txid
	}
	b, err := bencode.EncodeBytes(req)
	if err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}

	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := c.conn.SetDeadline(deadline); err != nil {
		return nil, err
	}
	stop := context.AfterFunc(ctx, func() {
		_ = c.conn.SetDeadline(time.Now()) //nolint:errcheck // wakes the blocked read
	})
	defer stop()

	if _, err := c.conn.Write(b); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", ErrCannotConnect, err)
	}

	garbage := false
	for {
		n, err := c.conn.Read(c.buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if errors.Is(err, os.ErrDeadlineExceeded) {
				if garbage {
					return nil, ErrNotAdmin
				}
				return nil, ErrTimeout
			}
			return nil, fmt.Errorf("%w: %v", ErrCannotConnect, err)
		}

		var resp map[string]any
		if err := bencode.DecodeBytes(c.buf[:n], &resp); err != nil {
			garbage = true
			c.log.Debug("skipping undecodable admin datagram", "length", n, "error", err)
			continue
		}
		if got, _ := stringField(resp["txid"]); got != txid {
			c.log.Debug("skipping admin reply for another transaction", "txid", got)
			continue
		}
		return resp, nil
	}
}

func newTxID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// stringField reads a bencoded byte string out of a decoded reply.
func stringField(v any) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case []byte:
		return string(s), true
	default:
		return "", false
	}
}

// intField reads a bencoded integer out of a decoded reply.
func intField(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case uint64:
		return int64(n), true //nolint:gosec // admin integers are small
	default:
		return 0, false
	}
}
