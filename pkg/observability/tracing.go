package observability

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the instrumentation scope of every anymod span
const TracerName = "github.com/platinummonkey/anymod"

// Tracer returns the anymod tracer from tp, or from the global provider when tp is nil
func Tracer(tp trace.TracerProvider) trace.Tracer {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return tp.Tracer(TracerName)
}

// StartSpan starts a span named name with the given attributes
func StartSpan(ctx context.Context, tracer trace.Tracer, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if tracer == nil {
		tracer = Tracer(nil)
	}
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// EndSpan records err on the span, if any, and ends it
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// NewTracerProvider builds an SDK tracer provider for serviceName. When
// exporter is nil, finished spans are written to logger at debug level.
func NewTracerProvider(serviceName string, exporter sdktrace.SpanExporter, logger *logrus.Logger) *sdktrace.TracerProvider {
	if exporter == nil {
		exporter = NewLogExporter(logger)
	}

	res := resource.NewSchemaless(attribute.String("service.name", serviceName))
	return sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSyncer(exporter),
	)
}

// LogExporter writes finished spans to a logrus logger
type LogExporter struct {
	logger *logrus.Logger
}

// NewLogExporter creates a span exporter backed by logger
func NewLogExporter(logger *logrus.Logger) *LogExporter {
	if logger == nil {
		logger = logrus.New()
	}
	return &LogExporter{logger: logger}
}

// ExportSpans logs each span with its duration and attributes
func (e *LogExporter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	for _, span := range spans {
		fields := logrus.Fields{
			"span":     span.Name(),
			"trace_id": span.SpanContext().TraceID().String(),
			"duration": span.EndTime().Sub(span.StartTime()).Round(time.Microsecond).String(),
		}
		for _, kv := range span.Attributes() {
			fields[string(kv.Key)] = kv.Value.Emit()
		}
		if span.Status().Code == codes.Error {
			fields["error"] = span.Status().Description
		}
		e.logger.WithFields(fields).Debug("Span finished")
	}
	return nil
}

// Shutdown is a no-op
func (e *LogExporter) Shutdown(ctx context.Context) error {
	return nil
}
