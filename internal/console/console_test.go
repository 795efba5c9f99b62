package console

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/kprusa/dvrouted/internal/clockutil"
	"github.com/kprusa/dvrouted/internal/routing"
)

type fakeBroadcaster struct {
	calls int
}

func (f *fakeBroadcaster) Broadcast(context.Context) { f.calls++ }

func newTestConsole(t *testing.T, neighbors map[routing.ServerID]routing.Cost) (*Console, *routing.State, *bytes.Buffer, *fakeBroadcaster) {
	t.Helper()
	clock := clockutil.NewFakeClock(time.Now())
	state := routing.New(clock, 1, neighbors, time.Second)
	var out bytes.Buffer
	fb := &fakeBroadcaster{}
	c := New(state, fb, &out)
	return c, state, &out, fb
}

func runLine(c *Console, line string) {
	c.Run(context.Background(), strings.NewReader(line+"\n"))
}

func TestConsole_UnknownCommand(t *testing.T) {
	c, _, out, _ := newTestConsole(t, nil)
	runLine(c, "frobnicate")
	if got := out.String(); got != "frobnicate unknown_command\n" {
		t.Errorf("output = %q", got)
	}
}

func TestConsole_BlankLinesIgnored(t *testing.T) {
	c, _, out, _ := newTestConsole(t, nil)
	c.Run(context.Background(), strings.NewReader("\n\n  \nstep\n"))
	if got := out.String(); got != "step SUCCESS\n" {
		t.Errorf("output = %q, want only the step reply", got)
	}
}

func TestConsole_Update_InvalidArguments(t *testing.T) {
	c, _, out, _ := newTestConsole(t, nil)
	runLine(c, "update 1 2")
	if got := out.String(); got != "update invalid_arguments\n" {
		t.Errorf("output = %q", got)
	}
}

func TestConsole_Update_InvalidCostToken(t *testing.T) {
	c, state, out, _ := newTestConsole(t, map[routing.ServerID]routing.Cost{2: routing.Finite(1)})
	before := state.Neighbors()

	runLine(c, "update 1 2 notacost")

	if got := out.String(); got != "update invalid_arguments\n" {
		t.Errorf("output = %q, want update invalid_arguments", got)
	}
	after := state.Neighbors()
	if after[2] != before[2] {
		t.Error("update with unparseable cost token mutated neighbors")
	}
}

func TestConsole_Update_AlwaysSucceedsEvenWhenSelfNotInvolved(t *testing.T) {
	c, state, out, _ := newTestConsole(t, map[routing.ServerID]routing.Cost{2: routing.Finite(1)})
	before := state.Neighbors()

	runLine(c, "update 5 6 10")

	if got := out.String(); got != "update SUCCESS\n" {
		t.Errorf("output = %q, want update SUCCESS regardless of participants", got)
	}
	after := state.Neighbors()
	if len(before) != len(after) {
		t.Error("update with self not in {id1,id2} mutated neighbors")
	}
}

func TestConsole_Step(t *testing.T) {
	c, _, out, fb := newTestConsole(t, nil)
	runLine(c, "step")
	if fb.calls != 1 {
		t.Errorf("broadcaster.calls = %d, want 1", fb.calls)
	}
	if got := out.String(); got != "step SUCCESS\n" {
		t.Errorf("output = %q", got)
	}
}

func TestConsole_Packets_ResetsAndReportsSame(t *testing.T) {
	c, state, out, _ := newTestConsole(t, nil)
	state.IncrementPacketCount()
	state.IncrementPacketCount()
	state.IncrementPacketCount()

	runLine(c, "packets")
	if got := out.String(); got != "3\npackets SUCCESS\n" {
		t.Errorf("output = %q", got)
	}

	out.Reset()
	runLine(c, "packets")
	if got := out.String(); got != "0\npackets SUCCESS\n" {
		t.Errorf("second packets output = %q, want 0 count", got)
	}
}

func TestConsole_Display_NoNeighborsShowsOnlySelf(t *testing.T) {
	clock := clockutil.NewFakeClock(time.Now())
	state := routing.New(clock, 1, nil, time.Second)
	var out bytes.Buffer
	c := New(state, &fakeBroadcaster{}, &out)

	runLine(c, "display")

	if got := out.String(); got != "1 -1 0\ndisplay SUCCESS\n" {
		t.Errorf("output = %q, want only the self row plus the terminator", got)
	}
}

func TestConsole_Display_ShowsDownNeighbor(t *testing.T) {
	c, state, out, _ := newTestConsole(t, map[routing.ServerID]routing.Cost{2: routing.Finite(1)})
	state.UpdateLink(context.Background(), 1, 2, "inf")
	out.Reset()

	runLine(c, "display")

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("display lines = %v, want 3 (self, down neighbor, terminator)", lines)
	}
	if lines[1] != "2 -1 65535" {
		t.Errorf("down-neighbor row = %q, want \"2 -1 65535\"", lines[1])
	}
}

func TestConsole_Disable_NotANeighbor(t *testing.T) {
	c, _, out, _ := newTestConsole(t, map[routing.ServerID]routing.Cost{2: routing.Finite(1)})
	runLine(c, "disable 99")
	if got := out.String(); got != "disable not_a_neighbor\n" {
		t.Errorf("output = %q", got)
	}
}

func TestConsole_Disable_Success(t *testing.T) {
	c, state, out, _ := newTestConsole(t, map[routing.ServerID]routing.Cost{2: routing.Finite(1)})
	runLine(c, "disable 2")
	if got := out.String(); got != "disable SUCCESS\n" {
		t.Errorf("output = %q", got)
	}
	if neighbor, finite := state.IsNeighbor(2); !neighbor || finite {
		t.Errorf("IsNeighbor(2) = (%v, %v), want (true, false) after disable", neighbor, finite)
	}
}

func TestConsole_Crash_ExitsZeroAndPoisonsAllNeighbors(t *testing.T) {
	c, state, out, _ := newTestConsole(t, map[routing.ServerID]routing.Cost{2: routing.Finite(1), 3: routing.Finite(1)})
	var exitCode = -1
	c.Exit = func(code int) { exitCode = code }

	runLine(c, "crash")

	if got := out.String(); got != "crash SUCCESS\n" {
		t.Errorf("output = %q", got)
	}
	if exitCode != 0 {
		t.Errorf("exit code = %d, want 0", exitCode)
	}
	for _, n := range []routing.ServerID{2, 3} {
		if _, finite := state.IsNeighbor(n); finite {
			t.Errorf("neighbor %d still finite after crash", n)
		}
	}
}

func TestConsole_Neighbors(t *testing.T) {
	c, _, out, _ := newTestConsole(t, map[routing.ServerID]routing.Cost{3: routing.Finite(4), 2: routing.Finite(1)})
	runLine(c, "neighbors")
	if got := out.String(); got != "2 1\n3 4\nneighbors SUCCESS\n" {
		t.Errorf("output = %q", got)
	}
}
