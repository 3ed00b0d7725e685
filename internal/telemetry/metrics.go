package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"xfive/internal/tournament"
)

const namespace = "xfive"

// Metrics records engine and stream measurements in a prometheus registry.
type Metrics struct {
	registry    *prometheus.Registry
	operations  *prometheus.CounterVec
	durations   *prometheus.HistogramVec
	effects     *prometheus.CounterVec
	moves       *prometheus.CounterVec
	subscribers prometheus.Gauge
}

// NewMetrics registers the collectors in a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "engine_operations_total",
			Help:      "Engine operations by name and result.",
		}, []string{"operation", "result"}),
		durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "engine_operation_duration_seconds",
			Help:      "Engine operation latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		effects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "wheel_effects_total",
			Help:      "Wheel effects assigned by type.",
		}, []string{"effect"}),
		moves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "progression_moves_total",
			Help:      "Stage progression moves by kind.",
		}, []string{"kind"}),
		subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stream_subscribers",
			Help:      "Open viewer event streams.",
		}),
	}
	reg.MustRegister(
		m.operations, m.durations, m.effects, m.moves, m.subscribers,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) RecordOperation(op, result string, d time.Duration) {
	m.operations.WithLabelValues(op, result).Inc()
	m.durations.WithLabelValues(op).Observe(d.Seconds())
}

func (m *Metrics) RecordWheelEffect(effect tournament.EffectType) {
	m.effects.WithLabelValues(string(effect)).Inc()
}

func (m *Metrics) RecordMove(kind tournament.MoveKind) {
	m.moves.WithLabelValues(string(kind)).Inc()
}

// StreamOpened and StreamClosed track live viewer streams.
func (m *Metrics) StreamOpened() { m.subscribers.Inc() }
func (m *Metrics) StreamClosed() { m.subscribers.Dec() }

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
