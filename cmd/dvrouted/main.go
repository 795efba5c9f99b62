// Command dvrouted runs one distance-vector routing daemon node.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"

	"github.com/kprusa/dvrouted/internal/banner"
	"github.com/kprusa/dvrouted/internal/buildinfo"
	"github.com/kprusa/dvrouted/internal/clockhealth"
	"github.com/kprusa/dvrouted/internal/clockutil"
	"github.com/kprusa/dvrouted/internal/console"
	"github.com/kprusa/dvrouted/internal/logging"
	"github.com/kprusa/dvrouted/internal/routing"
	"github.com/kprusa/dvrouted/internal/topology"
	"github.com/kprusa/dvrouted/internal/tracing"
	"github.com/kprusa/dvrouted/internal/transport"
)

func main() {
	tp := tracing.NewProvider()
	otel.SetTracerProvider(tp)
	defer func() {
		_ = tp.Shutdown(context.Background())
	}()

	if err := logging.Configure(logging.LevelInfo); err != nil {
		_, _ = os.Stderr.WriteString("configure logger: " + err.Error() + "\n")
		os.Exit(1)
	}

	if err := rootCmd().Execute(); err != nil {
		slog.Error("command failed", "err", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		topologyPath string
		selfID       int
		interval     time.Duration
		debug        bool
	)

	cmd := &cobra.Command{
		Use:     "dvrouted",
		Short:   "Distance-vector routing daemon",
		Version: buildinfo.Version,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := logging.LevelInfo
			if debug {
				level = logging.LevelDebug
			}
			return logging.Configure(level)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, topologyPath, topology.ServerID(selfID), interval)
		},
	}

	cmd.Flags().StringVar(&topologyPath, "topology", "", "Path to the topology file (required)")
	cmd.Flags().IntVar(&selfID, "id", 0, "This node's server id (required)")
	cmd.Flags().DurationVar(&interval, "interval", 1*time.Second, "Broadcast/timeout update interval")
	cmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	_ = cmd.MarkFlagRequired("topology")
	_ = cmd.MarkFlagRequired("id")

	return cmd
}

func run(ctx context.Context, topologyPath string, selfID topology.ServerID, interval time.Duration) error {
	f, err := os.Open(topologyPath)
	if err != nil {
		return fmt.Errorf("open topology file: %w", err)
	}
	parsed, err := topology.Load(f)
	_ = f.Close()
	if err != nil {
		return fmt.Errorf("parse topology file: %w", err)
	}

	reg, err := topology.New(selfID, parsed.Servers)
	if err != nil {
		return fmt.Errorf("build topology registry: %w", err)
	}

	initialNeighbors := make(map[routing.ServerID]routing.Cost)
	for _, link := range parsed.Links {
		var other topology.ServerID
		switch {
		case link.A == selfID:
			other = link.B
		case link.B == selfID:
			other = link.A
		default:
			continue
		}
		initialNeighbors[other] = routing.ParseToken(link.Cost)
	}

	state := routing.New(clockutil.RealClock{}, selfID, initialNeighbors, interval)

	banner.Print(os.Stderr, reg, interval)

	checker := clockhealth.NewChecker(clockutil.RealClock{})
	go checker.Run(ctx)

	t, err := transport.New(reg, state, os.Stdout)
	if err != nil {
		return err
	}
	defer t.Close()

	c := console.New(state, t, os.Stdout)

	errc := make(chan error, 2)
	go func() { errc <- t.RunReceiveLoop(ctx) }()
	go func() { errc <- t.RunPeriodicLoop(ctx) }()

	consoleErr := c.Run(ctx, os.Stdin)

	select {
	case err := <-errc:
		if err != nil && ctx.Err() == nil {
			return err
		}
	default:
	}

	return consoleErr
}
