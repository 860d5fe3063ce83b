package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	// Discovery metrics
	ScansTotal             *prometheus.CounterVec
	ModulesDiscoveredTotal *prometheus.CounterVec
	SearchPaths            prometheus.Gauge

	// Import metrics
	ImportsTotal   *prometheus.CounterVec
	ImportDuration *prometheus.HistogramVec

	// Capability resolution metrics
	ResolutionsTotal      *prometheus.CounterVec
	ResolutionCacheHits   prometheus.Counter
	ResolutionCacheMisses prometheus.Counter

	// Entry point metrics
	EntryPointLoadsTotal *prometheus.CounterVec

	// Watcher metrics
	WatchEventsTotal *prometheus.CounterVec
}

// NewMetrics creates all metrics and registers them with registry when it is not nil
func NewMetrics(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		ScansTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "anymod_scans_total",
				Help: "Total number of module scans",
			},
			[]string{"mode"},
		),
		ModulesDiscoveredTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "anymod_modules_discovered_total",
				Help: "Total number of module descriptors produced by scans",
			},
			[]string{"mode"},
		),
		SearchPaths: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "anymod_search_paths",
				Help: "Number of registered search paths",
			},
		),

		ImportsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "anymod_imports_total",
				Help: "Total number of module imports",
			},
			[]string{"source", "result"},
		),
		ImportDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "anymod_import_duration_seconds",
				Help:    "Module import duration in seconds",
				Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1},
			},
			[]string{"source"},
		),

		ResolutionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "anymod_resolutions_total",
				Help: "Total number of capability resolutions",
			},
			[]string{"result"},
		),
		ResolutionCacheHits: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "anymod_resolution_cache_hits_total",
				Help: "Total number of capability resolutions served from cache",
			},
		),
		ResolutionCacheMisses: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "anymod_resolution_cache_misses_total",
				Help: "Total number of capability resolutions computed",
			},
		),

		EntryPointLoadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "anymod_entry_point_loads_total",
				Help: "Total number of entry point group loads",
			},
			[]string{"group", "result"},
		),

		WatchEventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "anymod_watch_events_total",
				Help: "Total number of search path change events",
			},
			[]string{"op"},
		),
	}

	if registry != nil {
		registry.MustRegister(
			m.ScansTotal,
			m.ModulesDiscoveredTotal,
			m.SearchPaths,
			m.ImportsTotal,
			m.ImportDuration,
			m.ResolutionsTotal,
			m.ResolutionCacheHits,
			m.ResolutionCacheMisses,
			m.EntryPointLoadsTotal,
			m.WatchEventsTotal,
		)
	}

	return m
}

// RecordScan counts a finished scan and the descriptors it produced
func (m *Metrics) RecordScan(mode string, discovered int) {
	if m == nil {
		return
	}
	m.ScansTotal.WithLabelValues(mode).Inc()
	m.ModulesDiscoveredTotal.WithLabelValues(mode).Add(float64(discovered))
}

// SetSearchPaths records the number of search paths
func (m *Metrics) SetSearchPaths(n int) {
	if m == nil {
		return
	}
	m.SearchPaths.Set(float64(n))
}

// RecordImport counts an import attempt
func (m *Metrics) RecordImport(source string, err error, duration time.Duration) {
	if m == nil {
		return
	}
	m.ImportsTotal.WithLabelValues(source, resultLabel(err)).Inc()
	m.ImportDuration.WithLabelValues(source).Observe(duration.Seconds())
}

// RecordResolution counts a capability resolution outcome (found, not_found, error)
func (m *Metrics) RecordResolution(result string) {
	if m == nil {
		return
	}
	m.ResolutionsTotal.WithLabelValues(result).Inc()
}

// RecordResolutionLookup counts resolution cache hits and misses
func (m *Metrics) RecordResolutionLookup(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.ResolutionCacheHits.Inc()
	} else {
		m.ResolutionCacheMisses.Inc()
	}
}

// RecordEntryPointLoad counts an entry point group load
func (m *Metrics) RecordEntryPointLoad(group string, err error) {
	if m == nil {
		return
	}
	m.EntryPointLoadsTotal.WithLabelValues(group, resultLabel(err)).Inc()
}

// RecordWatchEvent counts a watcher event
func (m *Metrics) RecordWatchEvent(op string) {
	if m == nil {
		return
	}
	m.WatchEventsTotal.WithLabelValues(op).Inc()
}

func resultLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// RegisterMetricsEndpoint registers the /metrics endpoint
func RegisterMetricsEndpoint(mux *http.ServeMux, registry *prometheus.Registry) {
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
}
