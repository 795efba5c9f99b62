package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/netip"
	"time"

	"github.com/kprusa/dvrouted/internal/routing"
	"github.com/kprusa/dvrouted/internal/topology"
	"github.com/kprusa/dvrouted/internal/tracing"
)

// maxDatagramSize bounds a single read; per spec.md §1 fragmentation of
// updates beyond a single datagram is out of scope. It holds a datagram of
// up to 5458 entries (8 + 12*5458 = 65504 bytes); a larger mesh's update
// does not fit in one read.
const maxDatagramSize = 65507

// Transport is W: it owns the UDP endpoint, serializes S's routing table,
// broadcasts to live neighbors, and decodes received datagrams back into
// S (spec.md §4.2).
type Transport struct {
	reg   *topology.Registry
	state *routing.State
	conn  *net.UDPConn

	// consoleOut is where the spec-mandated
	// "RECEIVED A MESSAGE FROM SERVER <id>" line is written — the operator
	// console's stdout, never the diagnostic logger.
	consoleOut io.Writer
}

// New binds a UDP socket on the local node's configured port (all
// interfaces) and returns a Transport ready to serve the receive and
// periodic loops.
func New(reg *topology.Registry, state *routing.State, consoleOut io.Writer) (*Transport, error) {
	self := reg.SelfEntry()
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{Port: int(self.Port)})
	if err != nil {
		return nil, fmt.Errorf("bind udp port %d: %w", self.Port, err)
	}
	return &Transport{reg: reg, state: state, conn: conn, consoleOut: consoleOut}, nil
}

// Close releases the UDP socket.
func (t *Transport) Close() error {
	return t.conn.Close()
}

// Broadcast builds one datagram from a snapshot of S and sends the
// identical bytes to every neighbor whose link cost is currently finite
// (spec.md §4.2 "Broadcast operation"). Per-destination send failures are
// logged and do not abort the broadcast.
func (t *Transport) Broadcast(ctx context.Context) {
	neighbors := t.state.Neighbors()
	ctx, span := tracing.StartBroadcast(ctx, int(t.state.SelfID()), len(neighbors))
	defer span.End()

	datagram := Pack(t.reg, t.state.SnapshotRouting())

	for id, cost := range neighbors {
		if cost.IsInfinite() {
			continue
		}
		entry, err := t.reg.Lookup(id)
		if err != nil {
			slog.ErrorContext(ctx, "broadcast: neighbor not in registry", "neighbor", id, "err", err)
			continue
		}
		addr := net.UDPAddrFromAddrPort(netip.AddrPortFrom(entry.Addr, entry.Port))
		if _, err := t.conn.WriteToUDP(datagram, addr); err != nil {
			slog.ErrorContext(ctx, "broadcast: send failed", "neighbor", id, "err", err)
		}
	}
}

// RunReceiveLoop is the single-threaded cooperative UDP reader
// (spec.md §4.2 "Receive loop"). It runs until ctx is canceled or the
// socket is closed.
func (t *Transport) RunReceiveLoop(ctx context.Context) error {
	type received struct {
		n    int
		addr *net.UDPAddr
		err  error
		buf  []byte
	}
	results := make(chan received, 1)

	go func() {
		defer close(results)
		for {
			buf := make([]byte, maxDatagramSize)
			n, addr, err := t.conn.ReadFromUDP(buf)
			results <- received{n: n, addr: addr, err: err, buf: buf}
			if errors.Is(err, net.ErrClosed) {
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			_ = t.conn.Close()
			return ctx.Err()
		case r, ok := <-results:
			if !ok {
				return nil
			}
			if r.err != nil {
				if errors.Is(r.err, net.ErrClosed) {
					return nil
				}
				slog.ErrorContext(ctx, "receive: read failed", "err", r.err)
				continue
			}
			t.handleDatagram(ctx, r.buf[:r.n])
		}
	}
}

func (t *Transport) handleDatagram(ctx context.Context, data []byte) {
	senderID, vector, err := Unpack(t.reg, data)
	if err != nil {
		slog.WarnContext(ctx, "receive: dropping datagram", "err", err)
		return
	}

	t.state.IncrementPacketCount()
	fmt.Fprintf(t.consoleOut, "RECEIVED A MESSAGE FROM SERVER %d\n", senderID)
	t.state.HandleUpdate(ctx, senderID, vector)
}

// RunPeriodicLoop sleeps for the configured update interval, then on each
// wake runs maintenance followed by a broadcast (spec.md §4.2 "Periodic
// loop"). The first broadcast therefore happens one interval after
// startup, not immediately.
func (t *Transport) RunPeriodicLoop(ctx context.Context) error {
	interval := t.state.UpdateInterval()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			t.state.Maintenance(ctx)
			t.Broadcast(ctx)
		}
	}
}
