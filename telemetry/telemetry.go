// Package telemetry provides span-per-command tracing and a command
// counter/duration metric pair around engine.Instance.OnReceive,
// generalized from the teacher's per-operation span-plus-metric
// pairing (internal/telemetry/trace.go's TraceToolCall alongside
// internal/telemetry/metric.go's ChatMetricsTracker).
package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"

	"trpc.group/trpc-go/grape-engine/grapeerr"
)

// Instrumentation names.
const (
	InstrumentName      = "trpc.group.trpc-go.grape-engine"
	MeterNameDispatcher = "grape-engine.dispatcher"
)

var (
	// MeterProvider is the global meter provider instruments are built
	// from. It is a no-op implementation until Configure installs
	// another; cmd/grapeworker does not call Configure.
	MeterProvider metric.MeterProvider = noop.NewMeterProvider()
	// TracerProvider is the global tracer provider every Tracer starts
	// spans from. It defaults to whatever otel's global provider is
	// (itself a no-op until an SDK is registered).
	TracerProvider trace.TracerProvider = otel.GetTracerProvider()

	dispatcherMeter = MeterProvider.Meter(MeterNameDispatcher)

	// CommandCount counts OnReceive invocations, tagged by command kind
	// and whether they failed.
	CommandCount metric.Int64Counter = noop.Int64Counter{}
	// CommandDuration records OnReceive wall-clock duration in seconds,
	// tagged the same way as CommandCount.
	CommandDuration metric.Float64Histogram = noop.Float64Histogram{}
)

// Configure installs mp/tp as the package's meter/tracer providers and
// rebuilds the package-level instruments against them. Call once at
// process startup; tests are free to leave the no-op defaults in
// place.
func Configure(mp metric.MeterProvider, tp trace.TracerProvider) {
	MeterProvider = mp
	TracerProvider = tp
	dispatcherMeter = mp.Meter(MeterNameDispatcher)

	if c, err := dispatcherMeter.Int64Counter("grape_engine.command.count"); err == nil {
		CommandCount = c
	} else {
		CommandCount = noop.Int64Counter{}
	}
	if h, err := dispatcherMeter.Float64Histogram("grape_engine.command.duration"); err == nil {
		CommandDuration = h
	} else {
		CommandDuration = noop.Float64Histogram{}
	}
}

// Tracer starts one span per dispatched command and records the
// command counter/duration instruments alongside it.
type Tracer struct {
	tracer trace.Tracer
}

// NewTracer builds a Tracer against the package's current
// TracerProvider.
func NewTracer() *Tracer {
	return &Tracer{tracer: TracerProvider.Tracer(InstrumentName)}
}

// StartCommand starts a span named kind and returns the derived
// context plus a function the caller must call (typically deferred)
// with the command's outcome. The returned function ends the span and
// records CommandCount/CommandDuration, tagging both with kind and,
// on failure, the error's grapeerr.Kind.
func (t *Tracer) StartCommand(ctx context.Context, kind string) (context.Context, func(err error)) {
	ctx, span := t.tracer.Start(ctx, kind)
	start := time.Now()
	return ctx, func(err error) {
		attrs := []attribute.KeyValue{
			attribute.String("grape_engine.command.kind", kind),
			attribute.Bool("grape_engine.command.error", err != nil),
		}
		if err != nil {
			attrs = append(attrs, attribute.String("grape_engine.error.kind", string(grapeerr.KindOf(err))))
			span.SetStatus(codes.Error, err.Error())
		}
		withAttrs := metric.WithAttributes(attrs...)
		CommandCount.Add(ctx, 1, withAttrs)
		CommandDuration.Record(ctx, time.Since(start).Seconds(), withAttrs)
		span.End()
	}
}
