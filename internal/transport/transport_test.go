package transport

import (
	"bytes"
	"context"
	"net/netip"
	"testing"
	"time"

	"github.com/kprusa/dvrouted/internal/clockutil"
	"github.com/kprusa/dvrouted/internal/routing"
	"github.com/kprusa/dvrouted/internal/topology"
)

func twoNodeRegistries(t *testing.T, portA, portB uint16) (*topology.Registry, *topology.Registry) {
	t.Helper()
	entries := []topology.Entry{
		{ID: 1, Addr: netip.MustParseAddr("127.0.0.1"), Port: portA},
		{ID: 2, Addr: netip.MustParseAddr("127.0.0.1"), Port: portB},
	}
	regA, err := topology.New(1, entries)
	if err != nil {
		t.Fatalf("topology.New(1) error = %v", err)
	}
	regB, err := topology.New(2, entries)
	if err != nil {
		t.Fatalf("topology.New(2) error = %v", err)
	}
	return regA, regB
}

func TestTransport_BroadcastThenReceive(t *testing.T) {
	regA, regB := twoNodeRegistries(t, 19101, 19102)

	clockA := clockutil.NewFakeClock(time.Now())
	stateA := routing.New(clockA, 1, map[routing.ServerID]routing.Cost{2: routing.Finite(1)}, time.Second)
	clockB := clockutil.NewFakeClock(time.Now())
	stateB := routing.New(clockB, 2, map[routing.ServerID]routing.Cost{1: routing.Finite(1)}, time.Second)

	var outA, outB bytes.Buffer
	tA, err := New(regA, stateA, &outA)
	if err != nil {
		t.Fatalf("New(A) error = %v", err)
	}
	defer tA.Close()
	tB, err := New(regB, stateB, &outB)
	if err != nil {
		t.Fatalf("New(B) error = %v", err)
	}
	defer tB.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go tB.RunReceiveLoop(ctx)

	tA.Broadcast(context.Background())

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if stateB.PacketCount() > 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	if stateB.PacketCount() != 1 {
		t.Fatalf("stateB.PacketCount() = %d, want 1", stateB.PacketCount())
	}
	if got := outB.String(); got != "RECEIVED A MESSAGE FROM SERVER 1\n" {
		t.Errorf("console output = %q, want the spec-mandated RECEIVED line", got)
	}

	routingB := stateB.SnapshotRouting()
	if r, ok := routingB[1]; !ok || r.Cost.ConsoleRenderInt() != 1 {
		t.Errorf("routingB[1] = %+v, ok=%v, want direct neighbor cost 1", r, ok)
	}
}

func TestTransport_UnpackResolvesSenderOfOwnDatagram(t *testing.T) {
	regA, regB := twoNodeRegistries(t, 19201, 19202)
	_ = regB

	clockA := clockutil.NewFakeClock(time.Now())
	stateA := routing.New(clockA, 1, nil, time.Second)

	var outA bytes.Buffer
	tA, err := New(regA, stateA, &outA)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer tA.Close()

	datagram := Pack(regA, stateA.SnapshotRouting())
	sender, _, err := Unpack(regA, datagram)
	if err != nil {
		t.Fatalf("Unpack() error = %v", err)
	}
	if sender != 1 {
		t.Errorf("sender = %d, want 1", sender)
	}
}
