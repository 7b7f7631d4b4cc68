package index

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"

	"iresolve/internal/symbols"
)

// Metrics holds build metrics on a private registry. The CLI is not a
// long-running process, so they are exported as a node_exporter textfile
// rather than served.
type Metrics struct {
	registry *prometheus.Registry

	modulesScanned *prometheus.CounterVec
	indexSymbols   prometheus.Gauge
	buildDuration  prometheus.Histogram
	buildTruncated prometheus.Gauge
}

// NewMetrics creates and registers the build collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		modulesScanned: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "iresolve",
			Name:      "modules_scanned_total",
			Help:      "Modules processed by index builds, by extraction kind.",
		}, []string{"kind"}),
		indexSymbols: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "iresolve",
			Name:      "index_symbols",
			Help:      "Distinct symbols in the most recent build.",
		}),
		buildDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "iresolve",
			Name:      "build_duration_seconds",
			Help:      "Wall time of index builds.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}),
		buildTruncated: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "iresolve",
			Name:      "build_truncated",
			Help:      "1 if the most recent build hit its deadline.",
		}),
	}
	m.registry.MustRegister(m.modulesScanned, m.indexSymbols, m.buildDuration, m.buildTruncated)
	for _, k := range symbols.AllKinds {
		m.modulesScanned.WithLabelValues(string(k))
	}
	return m
}

// Observe records a finished build. Nil-safe.
func (m *Metrics) Observe(stats BuildStats) {
	if m == nil {
		return
	}
	for kind, n := range stats.ByKind {
		m.modulesScanned.WithLabelValues(string(kind)).Add(float64(n))
	}
	m.indexSymbols.Set(float64(stats.Symbols))
	m.buildDuration.Observe(stats.Duration.Seconds())
	if stats.Truncated {
		m.buildTruncated.Set(1)
	} else {
		m.buildTruncated.Set(0)
	}
}

// Registry exposes the collectors, for tests and embedding.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// WriteTextfile writes the metrics in text exposition format.
func (m *Metrics) WriteTextfile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating metrics directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, m.Registry()); err != nil {
		return fmt.Errorf("writing metrics: %w", err)
	}
	return nil
}
