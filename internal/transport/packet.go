// Package transport implements W: the UDP-based serializer/deserializer
// and I/O loops described in spec.md §4.2 — a receive loop that feeds the
// routing state, and a periodic loop that drives maintenance and
// broadcast.
package transport

import (
	"encoding/binary"
	"errors"
	"net/netip"

	"github.com/kprusa/dvrouted/internal/routing"
	"github.com/kprusa/dvrouted/internal/topology"
)

// headerSize is the fixed 8-byte header: entry count, sender port, sender
// IPv4 (spec.md §4.2).
const headerSize = 8

// entryStride is the per-entry stride: 10 bytes of content (dest IPv4,
// dest port, dest server id, cost) within a 12-byte slot, matching the
// offsets in spec.md §4.2 exactly (the trailing 2 bytes of each slot are
// unused padding, not a separate field).
const entryStride = 12
const entryContentSize = 10

// ErrTruncated indicates a datagram shorter than its declared entry count
// requires.
var ErrTruncated = errors.New("transport: truncated datagram")

// ErrUnknownSender indicates the datagram's (ip, port) does not resolve to
// any server in the registry; spec.md §4.2 says to drop such datagrams
// silently at the call site, but the codec itself reports the condition so
// the caller can log it.
var ErrUnknownSender = errors.New("transport: sender not in topology registry")

// PackedLen returns the total datagram length for n entries:
// 8 + 12*n bytes (spec.md §4.2).
func PackedLen(n int) int {
	return headerSize + entryStride*n
}

// Pack builds one DV datagram from a snapshot of the local routing table,
// built once per send and reused for every destination neighbor
// (spec.md §4.2 "Broadcast operation"). Every server in the registry
// appears in the datagram, even ones absent from routing (encoded as
// infinity), so every broadcast has a fixed size for the mesh's lifetime.
func Pack(reg *topology.Registry, routingTable map[routing.ServerID]routing.Route) []byte {
	all := reg.All()
	self := reg.SelfEntry()

	buf := make([]byte, PackedLen(len(all)))
	binary.BigEndian.PutUint16(buf[0:2], uint16(len(all)))
	binary.BigEndian.PutUint16(buf[2:4], self.Port)
	copy(buf[4:8], self.Addr.As4()[:])

	for i, entry := range all {
		base := headerSize + entryStride*i
		addr4 := entry.Addr.As4()
		copy(buf[base:base+4], addr4[:])
		binary.BigEndian.PutUint16(buf[base+4:base+6], entry.Port)
		binary.BigEndian.PutUint16(buf[base+6:base+8], uint16(entry.ID))

		cost := routing.Infinity
		if r, ok := routingTable[entry.ID]; ok {
			cost = r.Cost
		} else if entry.ID == self.ID {
			cost = routing.Zero
		}
		binary.BigEndian.PutUint16(buf[base+8:base+10], cost.WireUint16())
	}

	return buf
}

// Unpack decodes a received datagram: it resolves the sender by exact
// (ip, port) match against reg, then decodes each entry into a
// destination_id -> cost vector (spec.md §4.2 "Receive loop").
func Unpack(reg *topology.Registry, data []byte) (sender routing.ServerID, vector routing.Vector, err error) {
	if len(data) < headerSize {
		return 0, nil, ErrTruncated
	}
	n := int(binary.BigEndian.Uint16(data[0:2]))
	senderPort := binary.BigEndian.Uint16(data[2:4])
	senderAddr := netip.AddrFrom4([4]byte(data[4:8]))

	if len(data) < PackedLen(n) {
		return 0, nil, ErrTruncated
	}

	senderID, ok := reg.ResolveAddr(senderAddr, senderPort)
	if !ok {
		return 0, nil, ErrUnknownSender
	}

	vector = make(routing.Vector, n)
	for i := 0; i < n; i++ {
		base := headerSize + entryStride*i
		_ = data[base : base+entryContentSize] // bounds check hint
		destID := routing.ServerID(binary.BigEndian.Uint16(data[base+6 : base+8]))
		cost := binary.BigEndian.Uint16(data[base+8 : base+10])
		vector[destID] = routing.CostFromWireUint16(cost)
	}

	return senderID, vector, nil
}
