// Package routing implements S: the authoritative per-node distance-vector
// state machine (spec.md §3, §4.1) — neighbor link costs, the latest
// vectors received from each neighbor, last-seen timestamps, and the
// derived routing table, all mutated only through recompute.
package routing

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kprusa/dvrouted/internal/check"
	"github.com/kprusa/dvrouted/internal/clockutil"
	"github.com/kprusa/dvrouted/internal/topology"
	"github.com/kprusa/dvrouted/internal/tracing"
)

// ServerID identifies a node in the mesh.
type ServerID = topology.ServerID

// Route is one entry of the derived routing table: the next hop to reach
// a destination (none for self) and the cost of that path.
type Route struct {
	NextHop ServerID
	HasNext bool
	Cost    Cost
}

// Vector is a distance vector: destination -> advertised cost.
type Vector map[ServerID]Cost

// State is S, the routing state machine. All exported methods are safe
// for concurrent use by the console, the receive loop, and the periodic
// loop (spec.md §5): a single coarse mutex serializes every mutation and
// read, satisfying the "no torn reads of half-recomputed tables" rule.
type State struct {
	clock clockutil.Clock

	mu              sync.Mutex
	selfID          ServerID
	neighbors       map[ServerID]Cost
	neighborVectors map[ServerID]Vector
	lastSeen        map[ServerID]time.Time
	routing         map[ServerID]Route
	updateInterval  time.Duration

	pktCount atomic.Int64
}

// New constructs S and runs init (spec.md §4.1 init): installs identity
// and neighbor costs, seeds routing[self]=(none,0) and routing[n]=(n,c)
// for every finite neighbor, and sets every neighbor's last_seen to now.
// New must be called exactly once per process.
func New(clock clockutil.Clock, selfID ServerID, initialNeighbors map[ServerID]Cost, updateInterval time.Duration) *State {
	s := &State{
		clock:           clock,
		selfID:          selfID,
		neighbors:       make(map[ServerID]Cost, len(initialNeighbors)),
		neighborVectors: make(map[ServerID]Vector),
		lastSeen:        make(map[ServerID]time.Time, len(initialNeighbors)),
		routing:         make(map[ServerID]Route),
		updateInterval:  updateInterval,
	}

	now := clock.Now()
	for n, c := range initialNeighbors {
		s.neighbors[n] = c
		s.lastSeen[n] = now
	}

	s.recomputeLocked(context.Background())
	return s
}

// SelfID returns the local node's server id.
func (s *State) SelfID() ServerID {
	return s.selfID
}

// UpdateInterval returns the configured broadcast/timeout period.
func (s *State) UpdateInterval() time.Duration {
	return s.updateInterval
}

// Neighbors returns a copy of the current neighbor link-cost map.
func (s *State) Neighbors() map[ServerID]Cost {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[ServerID]Cost, len(s.neighbors))
	for n, c := range s.neighbors {
		out[n] = c
	}
	return out
}

// IsNeighbor reports whether id is a configured direct neighbor and
// whether its current link cost is finite.
func (s *State) IsNeighbor(id ServerID) (neighbor, finite bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.neighbors[id]
	if !ok {
		return false, false
	}
	return true, !c.IsInfinite()
}

// UpdateLink is the console-invoked operation (spec.md §4.1 update_link).
// If selfID is not one of a or b, no state changes, matching spec's
// "the daemon still acknowledges at the console level" contract — the
// caller (internal/console) always replies SUCCESS regardless.
func (s *State) UpdateLink(ctx context.Context, a, b ServerID, costToken string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var other ServerID
	switch {
	case a == s.selfID:
		other = b
	case b == s.selfID:
		other = a
	default:
		return
	}

	newCost := ParseToken(costToken)
	s.neighbors[other] = newCost
	if newCost.IsInfinite() {
		delete(s.neighborVectors, other)
	}
	s.recomputeLocked(ctx)
}

// HandleUpdate is invoked by the transport receive loop after decoding a
// datagram (spec.md §4.1 handle_update). Per spec.md §9's preserved
// open-question behavior, last_seen is recorded even when the link to
// sender is currently infinite — a dead link's neighbor will not time out
// as long as it keeps transmitting. This is intentional and flagged, not
// a bug.
func (s *State) HandleUpdate(ctx context.Context, sender ServerID, vector Vector) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastSeen[sender] = s.clock.Now()

	link, ok := s.neighbors[sender]
	if !ok || link.IsInfinite() {
		return
	}

	normalized := make(Vector, len(vector))
	for dest, cost := range vector {
		if v, finite := cost.Value(); finite && v < 0 {
			normalized[dest] = Infinity
		} else {
			normalized[dest] = cost
		}
	}
	s.neighborVectors[sender] = normalized
	s.recomputeLocked(ctx)
}

// Maintenance is invoked by the transport periodic loop on each tick
// (spec.md §4.1 maintenance). Any neighbor whose last valid datagram is
// older than 3x the update interval, measured against monotonic time, is
// marked down.
func (s *State) Maintenance(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	threshold := 3 * s.updateInterval
	expired := false
	for n, cost := range s.neighbors {
		if cost.IsInfinite() {
			continue
		}
		if now.Sub(s.lastSeen[n]) > threshold {
			s.neighbors[n] = Infinity
			delete(s.neighborVectors, n)
			expired = true
		}
	}
	if expired {
		s.recomputeLocked(ctx)
	}
}

// SnapshotRouting returns a consistent copy of the routing table, keyed
// by destination, for console display or packet serialization.
func (s *State) SnapshotRouting() map[ServerID]Route {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[ServerID]Route, len(s.routing))
	for d, r := range s.routing {
		out[d] = r
	}
	return out
}

// SortedDestinations returns the destinations currently in the routing
// table, ascending by id, for deterministic console/packet rendering.
func SortedDestinations(routing map[ServerID]Route) []ServerID {
	out := make([]ServerID, 0, len(routing))
	for d := range routing {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// PacketCount returns the number of DV datagrams accepted since the last
// reset.
func (s *State) PacketCount() int64 {
	return s.pktCount.Load()
}

// IncrementPacketCount is invoked by the transport receive loop on every
// accepted datagram.
func (s *State) IncrementPacketCount() {
	s.pktCount.Add(1)
}

// ResetPacketCount atomically reads and resets the packet counter, for
// the console `packets` command.
func (s *State) ResetPacketCount() int64 {
	return s.pktCount.Swap(0)
}

// Recompute re-runs the Bellman-Ford step under the state's lock. No
// caller in the daemon uses it: every mutating method already recomputes,
// and the broadcast path (including `step`) only reads SnapshotRouting.
func (s *State) Recompute(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recomputeLocked(ctx)
}

// recomputeLocked must be called with s.mu held. See recompute.go for the
// algorithm.
func (s *State) recomputeLocked(ctx context.Context) {
	_, span := tracing.StartRecompute(ctx, int(s.selfID))
	defer span.End()

	s.routing = recompute(s.selfID, s.neighbors, s.neighborVectors)
	check.Assert(func() bool {
		r, ok := s.routing[s.selfID]
		return ok && !r.HasNext && r.Cost.Equal(Zero)
	}(), "routing[self] must be (none, 0)")
}
