// Package banner prints the daemon's startup summary to stderr, in the
// style of cmd/ployz/ui's lipgloss-rendered CLI output. It never touches
// stdout, so it cannot interfere with the operator console's line
// protocol (spec.md §6).
package banner

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/kprusa/dvrouted/internal/topology"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true)
	labelStyle = lipgloss.NewStyle().Faint(true)
)

// Print renders a one-time startup banner summarizing the loaded topology.
func Print(w io.Writer, reg *topology.Registry, updateInterval time.Duration) {
	self := reg.SelfEntry()

	fmt.Fprintln(w, titleStyle.Render(fmt.Sprintf("dvrouted — server %d", self.ID)))
	fmt.Fprintf(w, "%s %s:%d\n", labelStyle.Render("listening on"), self.Addr, self.Port)
	fmt.Fprintf(w, "%s %d\n", labelStyle.Render("servers in topology:"), reg.Len())
	fmt.Fprintf(w, "%s %s\n", labelStyle.Render("update interval:"), updateInterval)
}
