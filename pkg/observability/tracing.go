// Package observability provides tracing for transfers. Spans and stage
// duration measurements go through the global OpenTelemetry providers, which
// are no-ops until Init (or the embedding program) installs real ones.
package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// InstrumentationName identifies stagecopy spans.
const InstrumentationName = "github.com/ajitpratap0/stagecopy"

// Tracer returns the stagecopy tracer from the global provider.
func Tracer() trace.Tracer {
	return otel.Tracer(InstrumentationName)
}

// Span wraps a trace.Span, batching attributes until End.
type Span struct {
	span       trace.Span
	startTime  time.Time
	attributes []attribute.KeyValue
}

// StartSpan starts a span named name.
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, *Span) {
	ctx, span := Tracer().Start(ctx, name, trace.WithAttributes(attrs...))
	return ctx, &Span{span: span, startTime: time.Now()}
}

// SetAttribute adds an attribute to the span
func (s *Span) SetAttribute(key string, value interface{}) {
	var attr attribute.KeyValue

	switch v := value.(type) {
	case string:
		attr = attribute.String(key, v)
	case int:
		attr = attribute.Int(key, v)
	case int64:
		attr = attribute.Int64(key, v)
	case float64:
		attr = attribute.Float64(key, v)
	case bool:
		attr = attribute.Bool(key, v)
	default:
		attr = attribute.String(key, fmt.Sprintf("%v", v))
	}

	s.attributes = append(s.attributes, attr)
}

// End records err, if any, and ends the span.
func (s *Span) End(err error) {
	if err != nil {
		s.span.RecordError(err)
		s.span.SetStatus(codes.Error, err.Error())
	} else {
		s.span.SetStatus(codes.Ok, "")
	}
	s.attributes = append(s.attributes, attribute.Int64("duration_ms", time.Since(s.startTime).Milliseconds()))
	s.span.SetAttributes(s.attributes...)
	s.span.End()
}

// TransferTracer names spans after a transfer flow and records each stage's
// duration on the stagecopy.stage.duration histogram.
type TransferTracer struct {
	flow      string
	warehouse string
	durations metric.Float64Histogram
}

// NewTransferTracer returns a tracer for flow (load, unload) on warehouse.
func NewTransferTracer(flow, warehouse string) *TransferTracer {
	h, err := otel.Meter(InstrumentationName).Float64Histogram("stagecopy.stage.duration",
		metric.WithDescription("Duration of transfer stages"),
		metric.WithUnit("s"))
	if err != nil {
		otel.Handle(err)
	}
	return &TransferTracer{flow: flow, warehouse: warehouse, durations: h}
}

// StartSpan starts a span for one stage of the flow.
func (t *TransferTracer) StartSpan(ctx context.Context, stage string) (context.Context, *Span) {
	return StartSpan(ctx, t.flow+"."+stage,
		attribute.String("transfer.flow", t.flow),
		attribute.String("transfer.stage", stage),
		attribute.String("warehouse", t.warehouse),
	)
}

// Trace runs fn inside a stage span.
func (t *TransferTracer) Trace(ctx context.Context, stage string, fn func(context.Context) error) error {
	ctx, span := t.StartSpan(ctx, stage)
	start := time.Now()
	err := fn(ctx)
	if t.durations != nil {
		t.durations.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(
			attribute.String("transfer.flow", t.flow),
			attribute.String("transfer.stage", stage),
			attribute.Bool("error", err != nil),
		))
	}
	span.End(err)
	return err
}
