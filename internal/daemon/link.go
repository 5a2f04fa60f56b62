package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/cjdelisle/cjdnswalk/internal/wire"
)

// Link exchanges frames with the router over a local UDP socket registered
// through RegisterHandler. Frames are sent to the router address given at
// creation until a frame arrives, after which replies go to the address the
// router actually sends from.
type Link struct {
	conn *net.UDPConn
	log  *slog.Logger

	mu     sync.Mutex
	router *net.UDPAddr
}

// ListenLink binds a UDP socket on bind (usually "127.0.0.1:0") for frames
// exchanged with the router at router.
func ListenLink(ctx context.Context, bind, router string, logger *slog.Logger) (*Link, error) {
	raddr, err := net.ResolveUDPAddr("udp", router)
	if err != nil {
		return nil, fmt.Errorf("resolve router address: %w", err)
	}

	var lc net.ListenConfig
	pc, err := lc.ListenPacket(ctx, "udp", bind)
	if err != nil {
		return nil, fmt.Errorf("listen: %w", err)
	}
	conn, ok := pc.(*net.UDPConn)
	if !ok {
		_ = pc.Close() //nolint:errcheck // unreachable for "udp"
		return nil, fmt.Errorf("listen: unexpected %T", pc)
	}

	if logger == nil {
		logger = slog.Default()
	}
	return &Link{conn: conn, log: logger, router: raddr}, nil
}

// Port returns the bound UDP port.
func (l *Link) Port() int {
	return l.conn.LocalAddr().(*net.UDPAddr).Port //nolint:forcetypeassert // always UDP
}

// Send writes one frame to the router.
func (l *Link) Send(f wire.Frame) error {
	l.mu.Lock()
	to := l.router
	l.mu.Unlock()

	if _, err := l.conn.WriteToUDP(f.Marshal(), to); err != nil {
		return fmt.Errorf("send frame: %w", err)
	}
	return nil
}

// Serve reads frames until ctx is done or the link is closed, delivering
// each parsed frame on out. Datagrams that are not frames are dropped.
// Serve returns nil on cancellation or close.
func (l *Link) Serve(ctx context.Context, out chan<- wire.Frame) error {
	stop := context.AfterFunc(ctx, func() {
		_ = l.conn.SetReadDeadline(time.Now()) //nolint:errcheck // wakes the blocked read
	})
	defer stop()

	buf := make([]byte, maxDatagram)
	for {
		n, from, err := l.conn.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("read frame: %w", err)
		}

		f, err := wire.ParseFrame(buf[:n])
		if err != nil {
			l.log.Debug("dropping datagram", "from", from, "error", err)
			continue
		}

		l.mu.Lock()
		l.router = from
		l.mu.Unlock()

		select {
		case out <- f:
		case <-ctx.Done():
			return nil
		}
	}
}

// Close releases the socket.
func (l *Link) Close() error {
	return l.conn.Close()
}
