// Package topology loads and serves the immutable-after-init mapping from
// server id to (IPv4 address, UDP port). Parsing the topology file itself
// is an external collaborator to THE CORE — described here only by the
// interface it presents to internal/routing and internal/transport.
package topology

import (
	"errors"
	"fmt"
	"net/netip"
)

// ServerID is the small positive integer identifying a node in the mesh.
type ServerID int

// Entry is one server's address in the registry.
type Entry struct {
	ID   ServerID
	Addr netip.Addr
	Port uint16
}

// ErrUnknownServer is returned by Registry.Lookup for an id not present
// in the registry.
var ErrUnknownServer = errors.New("topology: unknown server id")

// ErrSelfNotPresent is returned by New when selfID has no entry in entries.
var ErrSelfNotPresent = errors.New("topology: local node id not present in registry")

// ErrDuplicateServer is returned by New when two entries share a server id.
var ErrDuplicateServer = errors.New("topology: duplicate server id")

// Registry is the immutable-after-init server_id -> (ip, port) mapping,
// plus the local node's own id. Shared read-only by routing and transport.
type Registry struct {
	self    ServerID
	entries map[ServerID]Entry
	order   []ServerID // ascending, fixed at construction
}

// New builds a Registry from parsed entries. It must contain selfID.
func New(selfID ServerID, entries []Entry) (*Registry, error) {
	m := make(map[ServerID]Entry, len(entries))
	order := make([]ServerID, 0, len(entries))
	for _, e := range entries {
		if _, dup := m[e.ID]; dup {
			return nil, fmt.Errorf("%w: %d", ErrDuplicateServer, e.ID)
		}
		m[e.ID] = e
		order = append(order, e.ID)
	}
	if _, ok := m[selfID]; !ok {
		return nil, fmt.Errorf("%w: %d", ErrSelfNotPresent, selfID)
	}
	sortServerIDs(order)
	return &Registry{self: selfID, entries: m, order: order}, nil
}

func sortServerIDs(ids []ServerID) {
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0 && ids[j-1] > ids[j]; j-- {
			ids[j-1], ids[j] = ids[j], ids[j-1]
		}
	}
}

// Self returns the local node's server id.
func (r *Registry) Self() ServerID { return r.self }

// SelfEntry returns the local node's own registry entry.
func (r *Registry) SelfEntry() Entry {
	return r.entries[r.self]
}

// Lookup resolves a server id to its registry entry.
func (r *Registry) Lookup(id ServerID) (Entry, error) {
	e, ok := r.entries[id]
	if !ok {
		return Entry{}, fmt.Errorf("%w: %d", ErrUnknownServer, id)
	}
	return e, nil
}

// ResolveAddr finds the server id whose registry entry exactly matches
// (ip, port), or false if no server in the registry matches.
func (r *Registry) ResolveAddr(addr netip.Addr, port uint16) (ServerID, bool) {
	for id, e := range r.entries {
		if e.Addr == addr && e.Port == port {
			return id, true
		}
	}
	return 0, false
}

// All returns every registry entry in ascending server-id order.
func (r *Registry) All() []Entry {
	out := make([]Entry, len(r.order))
	for i, id := range r.order {
		out[i] = r.entries[id]
	}
	return out
}

// Len returns the number of servers in the registry.
func (r *Registry) Len() int { return len(r.entries) }
