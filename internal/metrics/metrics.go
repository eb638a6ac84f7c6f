// Package metrics exposes prometheus collectors for server internals:
// tick duration, peer count, retransmit count, and ACK latency. Grounded
// in runZeroInc-sockstats/pkg/exporter's pattern of a package-level
// collector set registered against a prometheus.Registry and served over
// HTTP, simplified from its custom TCPInfoCollector (which pulls live
// kernel TCP_INFO per connection) down to plain Gauge/Counter/Histogram
// vectors updated directly by the tick engine and transport layer.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Set bundles every collector the server updates during its lifetime.
type Set struct {
	Registry *prometheus.Registry

	TickDuration prometheus.Histogram
	PeerCount    prometheus.Gauge
	Retransmits  prometheus.Counter
	AckLatency   prometheus.Histogram
}

// NewSet builds and registers a fresh collector set on its own registry,
// so tests can construct independent sets without colliding on the global
// default registry.
func NewSet() *Set {
	reg := prometheus.NewRegistry()

	s := &Set{
		Registry: reg,
		TickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "asteroids_tick_duration_seconds",
			Help:    "Wall-clock duration of one game tick iteration.",
			Buckets: prometheus.DefBuckets,
		}),
		PeerCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "asteroids_peer_count",
			Help: "Current number of registered peers.",
		}),
		Retransmits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "asteroids_retransmits_total",
			Help: "Total SR packet retransmissions across all flows.",
		}),
		AckLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "asteroids_ack_latency_seconds",
			Help:    "Time between a DATA send and its matching ACK.",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(s.TickDuration, s.PeerCount, s.Retransmits, s.AckLatency)
	return s
}

// Handler returns an http.Handler serving this set's metrics in the
// Prometheus exposition format, for wiring into the server's metricsAddr
// listener.
func (s *Set) Handler() http.Handler {
	return promhttp.HandlerFor(s.Registry, promhttp.HandlerOpts{})
}
