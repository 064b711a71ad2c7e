package otelsink

import (
	"context"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/sapl-go/sapl/internal/val"
)

func TestRecordEmitsOneSpanPerTrace(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	defer tp.Shutdown(context.Background())

	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	defer otel.SetTracerProvider(prev)

	sink := NewSink(context.Background(), "sapl-test")
	sink.Record(&val.Trace{Source: "attribute", Attribute: "company.riskScore", Policy: "p1", Produced: time.Now()})

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].Name() != "attribute" {
		t.Fatalf("expected span name %q, got %q", "attribute", spans[0].Name())
	}
}

func TestRecordIgnoresNilTrace(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	defer tp.Shutdown(context.Background())

	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	defer otel.SetTracerProvider(prev)

	sink := NewSink(context.Background(), "sapl-test")
	sink.Record(nil)

	if len(recorder.Ended()) != 0 {
		t.Fatalf("expected no spans for a nil trace, got %d", len(recorder.Ended()))
	}
}

func TestRecordDefaultsSpanNameWhenSourceEmpty(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	defer tp.Shutdown(context.Background())

	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	defer otel.SetTracerProvider(prev)

	sink := NewSink(context.Background(), "sapl-test")
	sink.Record(&val.Trace{Produced: time.Now()})

	spans := recorder.Ended()
	if len(spans) != 1 || spans[0].Name() != "sapl.trace" {
		t.Fatalf("expected default span name, got %+v", spans)
	}
}
