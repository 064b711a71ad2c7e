// Package otelsink adapts the evaluation pipeline's trace sink interface
// (internal/evalctx.TraceSink) to OpenTelemetry, so a Val's provenance
// through attribute lookups and policy evaluation shows up as spans in
// whatever backend the configured TracerProvider exports to.
package otelsink

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"github.com/sapl-go/sapl/internal/evalctx"
	"github.com/sapl-go/sapl/internal/val"
)

var _ evalctx.TraceSink = (*Sink)(nil)

// NewTracerProvider builds an SDK TracerProvider that writes spans via the
// stdout exporter. This is the local-development/demo wiring; a production
// deployment substitutes an OTLP exporter here instead.
func NewTracerProvider(opts ...stdouttrace.Option) (*sdktrace.TracerProvider, error) {
	exporter, err := stdouttrace.New(opts...)
	if err != nil {
		return nil, err
	}
	return sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter)), nil
}

// Sink implements evalctx.TraceSink. Every Record call opens and immediately
// closes a span carrying the Trace's provenance as attributes: Record
// receives no context of its own (the evaluator calls it deep inside a
// recompute, far from any request-scoped span), so every span Sink opens is
// a direct child of the one fixed parent context given to NewSink.
type Sink struct {
	ctx    context.Context
	tracer trace.Tracer
}

// NewSink builds a Sink from the global TracerProvider under
// instrumentationName. ctx is the parent for every span Record opens; pass
// context.Background() when evaluation traces have no natural parent span.
func NewSink(ctx context.Context, instrumentationName string) *Sink {
	return &Sink{ctx: ctx, tracer: otel.Tracer(instrumentationName)}
}

// Record implements evalctx.TraceSink.
func (s *Sink) Record(t *val.Trace) {
	if t == nil {
		return
	}
	name := t.Source
	if name == "" {
		name = "sapl.trace"
	}
	_, span := s.tracer.Start(s.ctx, name)
	span.SetAttributes(
		attribute.String("sapl.trace.attribute", t.Attribute),
		attribute.String("sapl.trace.policy", t.Policy),
		attribute.Int64("sapl.trace.produced_unix_nano", t.Produced.UnixNano()),
	)
	span.End()
}
