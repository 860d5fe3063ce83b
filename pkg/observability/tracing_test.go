package observability

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestStartSpan(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	tracer := Tracer(tp)

	_, span := StartSpan(context.Background(), tracer, "plugins.Import", attribute.String("module", "greeter"))
	EndSpan(span, nil)

	_, span = StartSpan(context.Background(), tracer, "plugins.Import", attribute.String("module", "missing"))
	EndSpan(span, errors.New("no module named missing"))

	spans := recorder.Ended()
	if len(spans) != 2 {
		t.Fatalf("expected 2 spans, got %d", len(spans))
	}
	if spans[0].Name() != "plugins.Import" {
		t.Errorf("unexpected span name %q", spans[0].Name())
	}
	if spans[0].Status().Code == codes.Error {
		t.Error("successful span marked as error")
	}
	if spans[1].Status().Code != codes.Error {
		t.Error("failed span not marked as error")
	}
	if len(spans[1].Events()) == 0 {
		t.Error("expected recorded error event")
	}
	if spans[0].InstrumentationScope().Name != TracerName {
		t.Errorf("unexpected scope %q", spans[0].InstrumentationScope().Name)
	}
}

func TestStartSpan_NilTracer(t *testing.T) {
	ctx, span := StartSpan(context.Background(), nil, "noop")
	if ctx == nil || span == nil {
		t.Fatal("expected context and span from the global provider")
	}
	EndSpan(span, nil)
}

func TestNewTracerProvider_LogExporter(t *testing.T) {
	var buf bytes.Buffer
	logger, _ := NewLogger("debug", FormatText, &buf)

	tp := NewTracerProvider("anymod-test", nil, logger)
	defer func() { _ = tp.Shutdown(context.Background()) }()

	_, span := StartSpan(context.Background(), Tracer(tp), "plugins.Scan", attribute.Int("discovered", 4))
	EndSpan(span, nil)

	out := buf.String()
	if !strings.Contains(out, "Span finished") {
		t.Errorf("expected span log, got %q", out)
	}
	if !strings.Contains(out, "span=plugins.Scan") {
		t.Errorf("expected span name, got %q", out)
	}
	if !strings.Contains(out, "discovered=4") {
		t.Errorf("expected attribute, got %q", out)
	}
}
