// Package metrics holds the broker's OpenTelemetry instruments and serves them for Prometheus.
package metrics

import (
	"time"

	"github.com/gostdlib/base/context"
	"github.com/gostdlib/base/telemetry/otel/trace/span"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Metrics records what the broker does.
type Metrics struct {
	sessions     metric.Int64UpDownCounter
	rejected     metric.Int64Counter
	requests     metric.Int64Counter
	duration     metric.Float64Histogram
	layerSyncs   metric.Int64Counter
	arbitrations metric.Int64Counter
	dropped      metric.Int64Counter
}

// New creates the instruments on mp. If mp is nil the context's meter is used.
func New(ctx context.Context, mp metric.MeterProvider) (*Metrics, error) {
	var meter metric.Meter
	if mp != nil {
		meter = mp.Meter("xrtipc")
	} else {
		meter = context.Meter(ctx)
	}

	m := &Metrics{}
	var err error

	m.sessions, err = meter.Int64UpDownCounter(
		"xrtipc.sessions",
		metric.WithDescription("Number of connected client sessions"),
	)
	if err != nil {
		return nil, err
	}

	m.rejected, err = meter.Int64Counter(
		"xrtipc.sessions.rejected",
		metric.WithDescription("Connections closed because every session slot was busy"),
	)
	if err != nil {
		return nil, err
	}

	m.requests, err = meter.Int64Counter(
		"xrtipc.requests",
		metric.WithDescription("Total number of dispatched requests"),
	)
	if err != nil {
		return nil, err
	}

	m.duration, err = meter.Float64Histogram(
		"xrtipc.request.duration",
		metric.WithDescription("Duration of dispatched requests in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	m.layerSyncs, err = meter.Int64Counter(
		"xrtipc.layer_syncs",
		metric.WithDescription("Frames handed to the compositor"),
	)
	if err != nil {
		return nil, err
	}

	m.arbitrations, err = meter.Int64Counter(
		"xrtipc.arbitrations",
		metric.WithDescription("Runs of active client arbitration"),
	)
	if err != nil {
		return nil, err
	}

	m.dropped, err = meter.Int64Counter(
		"xrtipc.events.dropped",
		metric.WithDescription("Session events dropped because the queue was full"),
	)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// SessionOpened records a new session.
func (m *Metrics) SessionOpened(ctx context.Context) {
	m.sessions.Add(ctx, 1)
}

// SessionClosed records a session going away.
func (m *Metrics) SessionClosed(ctx context.Context) {
	m.sessions.Add(ctx, -1)
}

// Rejected records a connection turned away for lack of a slot.
func (m *Metrics) Rejected(ctx context.Context) {
	m.rejected.Add(ctx, 1)
}

// LayerSync records a frame submitted to the compositor.
func (m *Metrics) LayerSync(ctx context.Context, layers int) {
	m.layerSyncs.Add(ctx, 1, metric.WithAttributes(attribute.Int("layers", layers)))
}

// Arbitration records an arbitration run. fast is set when nothing had to be recomputed.
func (m *Metrics) Arbitration(ctx context.Context, fast bool) {
	m.arbitrations.Add(ctx, 1, metric.WithAttributes(attribute.Bool("fast_path", fast)))
}

// EventDropped records an event that did not fit a session's queue.
func (m *Metrics) EventDropped(ctx context.Context) {
	m.dropped.Add(ctx, 1)
}

// StartRequest starts a span for a request and returns the context to handle it with and a func
// to call with the request's result.
func (m *Metrics) StartRequest(ctx context.Context, cmd string, client int) (context.Context, func(result string)) {
	start := time.Now()

	ctx, sp := span.New(ctx,
		span.WithName("xrtipc/"+cmd),
		span.WithSpanStartOption(trace.WithSpanKind(trace.SpanKindServer)),
	)
	sp.Span.SetAttributes(
		attribute.String("rpc.system", "xrtipc"),
		attribute.String("rpc.method", cmd),
		attribute.Int("xrtipc.client", client),
	)

	return ctx, func(result string) {
		defer sp.End()

		sp.Span.SetAttributes(attribute.String("rpc.result", result))
		attrs := metric.WithAttributes(
			attribute.String("rpc_method", cmd),
			attribute.String("rpc_result", result),
		)
		m.duration.Record(ctx, float64(time.Since(start).Microseconds())/1000, attrs)
		m.requests.Add(ctx, 1, attrs)
	}
}
