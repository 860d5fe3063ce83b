// Package observability provides logrus logging, Prometheus metrics, and OpenTelemetry tracing.
//
// # Overview
//
// This package centralizes the observability infrastructure shared by the
// plugin loader and the CLI: logger construction, loader metrics, spans
// around scans, imports and resolutions, panic recovery and graceful shutdown.
//
// # Logging
//
// Create logger:
//
//	logger, err := observability.NewLogger("debug", observability.FormatJSON, os.Stderr)
//	logger.WithField("path", dir).Info("Added search path")
//
// # Prometheus Metrics
//
// Initialize metrics:
//
//	registry := prometheus.NewRegistry()
//	metrics := observability.NewMetrics(registry)
//	metrics.RecordImport("catalog", nil, time.Since(start))
//
// A nil *Metrics records nothing, so components can accept it optionally.
//
// Expose metrics:
//
//	mux := http.NewServeMux()
//	observability.RegisterMetricsEndpoint(mux, registry)
//
// # Tracing
//
//	tp := observability.NewTracerProvider("anymod", nil, logger)
//	tracer := observability.Tracer(tp)
//	ctx, span := observability.StartSpan(ctx, tracer, "plugins.Import")
//	defer observability.EndSpan(span, err)
//
// # Related Packages
//
//   - pkg/config: Log level, log format and metrics configuration
//   - pkg/plugins: The loader instrumented by this package
package observability
