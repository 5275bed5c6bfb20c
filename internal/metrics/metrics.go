// Package metrics exposes frame processing counters to Prometheus.
package metrics

import (
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dudu/facegaze/internal/pipeline"
)

// Metrics holds all application metrics
type Metrics struct {
	FramesProcessed atomic.Uint64
	FramesWithFace  atomic.Uint64

	EnhancementsRequested atomic.Uint64
	EnhancementsSucceeded atomic.Uint64

	ActiveSessions atomic.Int64
	TotalSessions  atomic.Uint64

	outcomes *prometheus.CounterVec
	latency  *prometheus.HistogramVec

	registry *prometheus.Registry
}

// New creates a Metrics instance with its own registry
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "facegaze_frame_outcomes_total",
			Help: "Frames by outcome",
		}, []string{"outcome"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "facegaze_frame_stage_seconds",
			Help:    "Per-frame stage latency",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
		}, []string{"stage"}),
	}

	m.registerPrometheusMetrics()

	return m
}

func (m *Metrics) registerPrometheusMetrics() {
	m.registry.MustRegister(m.outcomes, m.latency)

	m.registry.MustRegister(prometheus.NewCounterFunc(
		prometheus.CounterOpts{
			Name: "facegaze_frames_processed_total",
			Help: "Total frames processed",
		},
		func() float64 { return float64(m.FramesProcessed.Load()) },
	))

	m.registry.MustRegister(prometheus.NewCounterFunc(
		prometheus.CounterOpts{
			Name: "facegaze_frames_with_face_total",
			Help: "Frames that produced face metrics",
		},
		func() float64 { return float64(m.FramesWithFace.Load()) },
	))

	m.registry.MustRegister(prometheus.NewCounterFunc(
		prometheus.CounterOpts{
			Name: "facegaze_enhancements_requested_total",
			Help: "Second passes requested",
		},
		func() float64 { return float64(m.EnhancementsRequested.Load()) },
	))

	m.registry.MustRegister(prometheus.NewCounterFunc(
		prometheus.CounterOpts{
			Name: "facegaze_enhancements_succeeded_total",
			Help: "Second passes that recomputed metrics",
		},
		func() float64 { return float64(m.EnhancementsSucceeded.Load()) },
	))

	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "facegaze_active_sessions",
			Help: "Open processing sessions",
		},
		func() float64 { return float64(m.ActiveSessions.Load()) },
	))

	m.registry.MustRegister(prometheus.NewCounterFunc(
		prometheus.CounterOpts{
			Name: "facegaze_sessions_total",
			Help: "Sessions opened since start",
		},
		func() float64 { return float64(m.TotalSessions.Load()) },
	))
}

// FrameDone records one finished frame
func (m *Metrics) FrameDone(r *pipeline.Result) {
	m.FramesProcessed.Add(1)
	if r.Metrics != nil {
		m.FramesWithFace.Add(1)
	}
	m.outcomes.WithLabelValues(string(r.Outcome())).Inc()

	for _, s := range r.Trace {
		switch s {
		case pipeline.EnhancementRequested:
			m.EnhancementsRequested.Add(1)
		case pipeline.MetricsRecomputed:
			m.EnhancementsSucceeded.Add(1)
		}
	}

	m.latency.WithLabelValues("detection").Observe(r.Timing.Detection.Seconds())
	m.latency.WithLabelValues("metrics").Observe(r.Timing.Metrics.Seconds())
	if r.Timing.Enhancement > 0 {
		m.latency.WithLabelValues("enhancement").Observe(r.Timing.Enhancement.Seconds())
	}
	m.latency.WithLabelValues("total").Observe(r.Timing.Total.Seconds())
}

// SessionOpened tracks a new session
func (m *Metrics) SessionOpened() {
	m.ActiveSessions.Add(1)
	m.TotalSessions.Add(1)
}

// SessionClosed tracks a finished session
func (m *Metrics) SessionClosed() {
	m.ActiveSessions.Add(-1)
}

// Registry exposes the collectors, mainly for tests
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the Prometheus HTTP handler
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
