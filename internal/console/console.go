// Package console implements C: the line-oriented operator protocol over
// standard input/output (spec.md §4.3). Every reply ends in exactly one
// line terminated by SUCCESS, invalid_arguments, not_a_neighbor, or
// unknown_command, so the line protocol never desynchronizes.
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/kprusa/dvrouted/internal/routing"
)

// Broadcaster issues an immediate synchronous broadcast, implemented by
// internal/transport.Transport.
type Broadcaster interface {
	Broadcast(ctx context.Context)
}

// Console is C. It holds no state of its own beyond its I/O handles —
// every mutation or query re-enters S (routing.State) or W (Broadcaster).
type Console struct {
	state      *routing.State
	broadcaster Broadcaster
	out        io.Writer

	// Exit terminates the process on `crash`. Overridable in tests;
	// defaults to os.Exit(0) when constructed via New.
	Exit func(code int)
}

// New constructs a Console wired to S and W.
func New(state *routing.State, broadcaster Broadcaster, out io.Writer) *Console {
	return &Console{
		state:       state,
		broadcaster: broadcaster,
		out:         out,
		Exit:        os.Exit,
	}
}

// Run reads whitespace-tokenized lines from in until EOF, dispatching
// each to a command handler. It returns nil on clean EOF.
func (c *Console) Run(ctx context.Context, in io.Reader) error {
	sc := bufio.NewScanner(in)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		cmd := strings.ToLower(fields[0])
		args := fields[1:]

		c.dispatch(ctx, cmd, args)
	}
	return sc.Err()
}

func (c *Console) dispatch(ctx context.Context, cmd string, args []string) {
	switch cmd {
	case "update":
		c.handleUpdate(ctx, args)
	case "step":
		c.handleStep(ctx)
	case "packets":
		c.handlePackets()
	case "display":
		c.handleDisplay()
	case "neighbors":
		c.handleNeighbors()
	case "disable":
		c.handleDisable(ctx, args)
	case "crash":
		c.handleCrash(ctx)
	default:
		c.reply(cmd, "unknown_command")
	}
}

func (c *Console) reply(cmd, status string) {
	fmt.Fprintf(c.out, "%s %s\n", cmd, status)
}

func (c *Console) handleUpdate(ctx context.Context, args []string) {
	if len(args) != 3 {
		c.reply("update", "invalid_arguments")
		return
	}
	id1, err1 := strconv.Atoi(args[0])
	id2, err2 := strconv.Atoi(args[1])
	if err1 != nil || err2 != nil || !validCostToken(args[2]) {
		c.reply("update", "invalid_arguments")
		return
	}

	c.state.UpdateLink(ctx, routing.ServerID(id1), routing.ServerID(id2), args[2])
	c.reply("update", "SUCCESS")
}

// validCostToken reports whether tok is a cost the console accepts:
// the literal "inf" (case-insensitive) or a decimal integer (spec.md
// §4.1's negative-clamps-to-infinity rule still applies once accepted
// here — this only rejects tokens routing.ParseToken can't parse at all).
func validCostToken(tok string) bool {
	if strings.EqualFold(strings.TrimSpace(tok), "inf") {
		return true
	}
	_, err := strconv.Atoi(strings.TrimSpace(tok))
	return err == nil
}

func (c *Console) handleStep(ctx context.Context) {
	c.broadcaster.Broadcast(ctx)
	c.reply("step", "SUCCESS")
}

func (c *Console) handlePackets() {
	count := c.state.ResetPacketCount()
	fmt.Fprintln(c.out, count)
	c.reply("packets", "SUCCESS")
}

func (c *Console) handleDisplay() {
	rows := combinedDisplayRows(c.state.SnapshotRouting(), c.state.Neighbors())
	for _, row := range rows {
		fmt.Fprintf(c.out, "%d %d %d\n", row.dest, row.nextHop, row.cost)
	}
	c.reply("display", "SUCCESS")
}

func (c *Console) handleNeighbors() {
	neighbors := c.state.Neighbors()
	ids := make([]routing.ServerID, 0, len(neighbors))
	for id := range neighbors {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		fmt.Fprintf(c.out, "%d %d\n", id, neighbors[id].ConsoleRenderInt())
	}
	c.reply("neighbors", "SUCCESS")
}

func (c *Console) handleDisable(ctx context.Context, args []string) {
	if len(args) != 1 {
		c.reply("disable", "invalid_arguments")
		return
	}
	id, err := strconv.Atoi(args[0])
	if err != nil {
		c.reply("disable", "invalid_arguments")
		return
	}

	neighbor, finite := c.state.IsNeighbor(routing.ServerID(id))
	if !neighbor || !finite {
		c.reply("disable", "not_a_neighbor")
		return
	}

	c.state.UpdateLink(ctx, c.state.SelfID(), routing.ServerID(id), "inf")
	c.reply("disable", "SUCCESS")
}

func (c *Console) handleCrash(ctx context.Context) {
	for id := range c.state.Neighbors() {
		c.state.UpdateLink(ctx, c.state.SelfID(), id, "inf")
	}
	c.reply("crash", "SUCCESS")
	c.Exit(0)
}

type displayRow struct {
	dest    routing.ServerID
	nextHop int
	cost    int
}

// combinedDisplayRows renders routing's destinations plus any configured
// neighbor currently down (absent from routing, per spec.md invariant 3's
// "absent" choice) so a disabled link is still visible at the console —
// the supplemented `display` behavior documented in SPEC_FULL.md §4.
func combinedDisplayRows(rt map[routing.ServerID]routing.Route, neighbors map[routing.ServerID]routing.Cost) []displayRow {
	seen := make(map[routing.ServerID]struct{}, len(rt)+len(neighbors))
	ids := make([]routing.ServerID, 0, len(rt)+len(neighbors))
	for d := range rt {
		seen[d] = struct{}{}
		ids = append(ids, d)
	}
	for n := range neighbors {
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		ids = append(ids, n)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	rows := make([]displayRow, 0, len(ids))
	for _, d := range ids {
		if r, ok := rt[d]; ok {
			nextHop := -1
			if r.HasNext {
				nextHop = int(r.NextHop)
			}
			rows = append(rows, displayRow{dest: d, nextHop: nextHop, cost: r.Cost.ConsoleRenderInt()})
			continue
		}
		rows = append(rows, displayRow{dest: d, nextHop: -1, cost: routing.Infinity.ConsoleRenderInt()})
	}
	return rows
}
