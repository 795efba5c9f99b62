// Package tracing wires an OpenTelemetry tracer provider for the daemon,
// the same pattern cmd/ployzd's main registers at startup, and gives the
// two CPU-bound, O(|servers|·|neighbors|) operations spec.md §5 calls out
// — recompute and broadcast — a named span each.
package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/kprusa/dvrouted"

// NewProvider builds a TracerProvider with no exporter attached. Wiring an
// OTLP exporter is left to the deployment environment (an exporter
// endpoint is an ambient concern outside spec.md's scope); registering the
// provider still lets span creation and context propagation work exactly
// as it would with one attached.
func NewProvider() *sdktrace.TracerProvider {
	return sdktrace.NewTracerProvider()
}

// Tracer returns the package-wide tracer, using whatever TracerProvider is
// currently registered with otel.SetTracerProvider.
func Tracer() trace.Tracer {
	return otel.Tracer(instrumentationName)
}

// StartRecompute starts a span around a single Bellman-Ford recompute
// pass, tagged with the node's self id. The span carries no destination
// count.
func StartRecompute(ctx context.Context, selfID int) (context.Context, trace.Span) {
	return Tracer().Start(ctx, "dvrouted.recompute", trace.WithAttributes(
		attribute.Int("self_id", selfID),
	))
}

// StartBroadcast starts a span around one W broadcast: building the
// datagram once and sending it to every finite-cost neighbor.
func StartBroadcast(ctx context.Context, selfID, neighborCount int) (context.Context, trace.Span) {
	return Tracer().Start(ctx, "dvrouted.broadcast", trace.WithAttributes(
		attribute.Int("self_id", selfID),
		attribute.Int("neighbor_count", neighborCount),
	))
}
