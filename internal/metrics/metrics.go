// Package metrics exposes engine counters in Prometheus format.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the engine collectors on a private registry.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry         *prometheus.Registry
	expansions       *prometheus.CounterVec
	expansionSeconds prometheus.Histogram
	nodes            prometheus.Gauge
	frames           prometheus.Counter
	burrows          prometheus.Counter
	streamClients    prometheus.Gauge
}

// New creates and registers the collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		expansions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "habitat",
			Name:      "expansions_total",
			Help:      "Node expansions by outcome.",
		}, []string{"result"}),
		expansionSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "habitat",
			Name:      "expansion_duration_seconds",
			Help:      "Time from click to inserted children.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
		nodes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "habitat",
			Name:      "nodes",
			Help:      "Nodes in the live tree.",
		}),
		frames: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "habitat",
			Name:      "physics_frames_total",
			Help:      "Repulsion ticks executed.",
		}),
		burrows: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "habitat",
			Name:      "burrows_total",
			Help:      "Completed burrow actions.",
		}),
		streamClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "habitat",
			Name:      "stream_clients",
			Help:      "Connected frame stream clients.",
		}),
	}
	m.registry.MustRegister(
		m.expansions, m.expansionSeconds, m.nodes, m.frames, m.burrows, m.streamClients,
		collectors.NewGoCollector(),
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Expansion records one finished expansion. result is "success", "error" or "stale".
func (m *Metrics) Expansion(result string, d time.Duration) {
	if m == nil {
		return
	}
	m.expansions.WithLabelValues(result).Inc()
	if result == "success" {
		m.expansionSeconds.Observe(d.Seconds())
	}
}

func (m *Metrics) SetNodes(n int) {
	if m == nil {
		return
	}
	m.nodes.Set(float64(n))
}

func (m *Metrics) Frame() {
	if m == nil {
		return
	}
	m.frames.Inc()
}

func (m *Metrics) Burrow() {
	if m == nil {
		return
	}
	m.burrows.Inc()
}

// StreamClients adjusts the connected client gauge by delta.
func (m *Metrics) StreamClients(delta int) {
	if m == nil {
		return
	}
	m.streamClients.Add(float64(delta))
}
