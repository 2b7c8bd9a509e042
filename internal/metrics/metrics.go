package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the tutor server.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	// Signaling
	OffersTotal *prometheus.CounterVec

	// Sessions
	SessionsActive  prometheus.Gauge
	SessionsTotal   *prometheus.CounterVec
	SessionDuration prometheus.Histogram

	// Pipeline
	StageTTFB       *prometheus.HistogramVec
	StageErrors     *prometheus.CounterVec
	StatusEmissions *prometheus.CounterVec
}

func New(namespace string) *Metrics {
	if namespace == "" {
		namespace = "xtutor"
	}

	registry := prometheus.NewRegistry()

	offersTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "offers_total",
			Help:      "Total number of signaling offers by result",
		},
		[]string{"result"},
	)

	sessionsActive := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of running tutoring sessions",
		},
	)

	sessionsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_total",
			Help:      "Total number of tutoring sessions by outcome",
		},
		[]string{"transport", "result"},
	)

	sessionDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "session_duration_seconds",
			Help:      "Tutoring session duration in seconds",
			Buckets:   []float64{5, 30, 60, 300, 600, 1200, 1800, 3600},
		},
	)

	stageTTFB := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_ttfb_seconds",
			Help:      "Time to first byte per pipeline stage",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"stage"},
	)

	stageErrors := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_errors_total",
			Help:      "Errors reported by pipeline stages",
		},
		[]string{"stage"},
	)

	statusEmissions := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "status_emissions_total",
			Help:      "Turn status messages sent to clients",
		},
		[]string{"status"},
	)

	registry.MustRegister(
		offersTotal,
		sessionsActive,
		sessionsTotal,
		sessionDuration,
		stageTTFB,
		stageErrors,
		statusEmissions,
	)

	return &Metrics{
		registry:        registry,
		OffersTotal:     offersTotal,
		SessionsActive:  sessionsActive,
		SessionsTotal:   sessionsTotal,
		SessionDuration: sessionDuration,
		StageTTFB:       stageTTFB,
		StageErrors:     stageErrors,
		StatusEmissions: statusEmissions,
	}
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) RecordOffer(result string) {
	if m == nil {
		return
	}
	m.OffersTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) RecordSessionStart() {
	if m == nil {
		return
	}
	m.SessionsActive.Inc()
}

func (m *Metrics) RecordSessionEnd(transport, result string, duration time.Duration) {
	if m == nil {
		return
	}
	m.SessionsActive.Dec()
	m.SessionsTotal.WithLabelValues(transport, result).Inc()
	m.SessionDuration.Observe(duration.Seconds())
}

// RecordSessionRejected counts a session that never started.
func (m *Metrics) RecordSessionRejected(transport, reason string) {
	if m == nil {
		return
	}
	m.SessionsTotal.WithLabelValues(transport, reason).Inc()
}

// ObserveTTFB satisfies pipeline.MetricsSink.
func (m *Metrics) ObserveTTFB(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.StageTTFB.WithLabelValues(stage).Observe(d.Seconds())
}

// ObserveError satisfies pipeline.MetricsSink.
func (m *Metrics) ObserveError(stage string) {
	if m == nil {
		return
	}
	m.StageErrors.WithLabelValues(stage).Inc()
}

func (m *Metrics) RecordStatus(status string) {
	if m == nil {
		return
	}
	m.StatusEmissions.WithLabelValues(status).Inc()
}
