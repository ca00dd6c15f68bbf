package metrics

import (
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all dashboard metrics. Counters are plain atomics so the
// hot ingestion path never touches a collector.
type Metrics struct {
	// Ingestion outcomes
	EntriesAccepted    atomic.Uint64
	EntriesDuplicate   atomic.Uint64
	EntriesCrossStream atomic.Uint64
	EntriesEvicted     atomic.Uint64
	Detections         atomic.Uint64
	UpstreamErrors     atomic.Uint64

	// Connection
	ConnectAttempts atomic.Uint64
	ConnectFailures atomic.Uint64
	Disconnects     atomic.Uint64
	Connected       atomic.Uint64 // 0 = no, 1 = yes

	// Backend commands
	CommandRequests atomic.Uint64
	CommandFailures atomic.Uint64
	CommandLatency  prometheus.Histogram

	// Session
	BufferedEntries atomic.Uint64
	Processing      atomic.Uint64 // 0 = idle, 1 = running or stopping

	registry *prometheus.Registry
}

// New creates a Metrics instance with its own registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		CommandLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "iris_command_duration_seconds",
			Help:    "Latency of backend stream commands",
			Buckets: prometheus.DefBuckets,
		}),
	}
	m.register()
	return m
}

func (m *Metrics) counter(name, help string, v *atomic.Uint64) {
	m.registry.MustRegister(prometheus.NewCounterFunc(
		prometheus.CounterOpts{Name: name, Help: help},
		func() float64 { return float64(v.Load()) },
	))
}

func (m *Metrics) gauge(name, help string, v *atomic.Uint64) {
	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{Name: name, Help: help},
		func() float64 { return float64(v.Load()) },
	))
}

func (m *Metrics) register() {
	m.counter("iris_entries_accepted_total", "Log entries inserted into the buffer", &m.EntriesAccepted)
	m.counter("iris_entries_duplicate_total", "Log entries dropped as duplicates", &m.EntriesDuplicate)
	m.counter("iris_entries_cross_stream_total", "Log entries dropped for belonging to another stream", &m.EntriesCrossStream)
	m.counter("iris_entries_evicted_total", "Log entries evicted from the buffer tail", &m.EntriesEvicted)
	m.counter("iris_detections_total", "Detection events with at least one valid detection", &m.Detections)
	m.counter("iris_upstream_errors_total", "Error entries received from the backend", &m.UpstreamErrors)

	m.counter("iris_connect_attempts_total", "Socket connection attempts", &m.ConnectAttempts)
	m.counter("iris_connect_failures_total", "Failed socket connection attempts", &m.ConnectFailures)
	m.counter("iris_disconnects_total", "Socket disconnects", &m.Disconnects)
	m.gauge("iris_connected", "Socket connected (0=no, 1=yes)", &m.Connected)

	m.counter("iris_command_requests_total", "Backend stream commands issued", &m.CommandRequests)
	m.counter("iris_command_failures_total", "Backend stream commands that failed", &m.CommandFailures)
	m.registry.MustRegister(m.CommandLatency)

	m.gauge("iris_buffered_entries", "Entries currently held in the log buffer", &m.BufferedEntries)
	m.gauge("iris_processing", "Stream processing active (0=no, 1=yes)", &m.Processing)
}

// SetBool stores 1 for true and 0 for false.
func SetBool(v *atomic.Uint64, b bool) {
	if b {
		v.Store(1)
		return
	}
	v.Store(0)
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler returns the Prometheus HTTP handler
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
