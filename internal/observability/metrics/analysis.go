package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kirillkom/invoice-auditor/internal/core/domain"
)

const namespace = "invoice_auditor"

// AnalysisMetrics records orchestrator activity. It satisfies ports.AnalysisObserver.
type AnalysisMetrics struct {
	registry *prometheus.Registry
	service  string

	analysisTotal    *prometheus.CounterVec
	analysisDuration *prometheus.HistogramVec
	analysisInFlight prometheus.Gauge
	staleTotal       prometheus.Counter
	persistFailures  prometheus.Counter
}

func NewAnalysisMetrics(service string, registry *prometheus.Registry) *AnalysisMetrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	constLabels := prometheus.Labels{"service": service}

	analysisTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "analysis",
			Name:      "total",
			Help:      "Total analyzer calls by outcome.",
		},
		[]string{"service", "outcome"},
	)
	analysisDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "analysis",
			Name:      "duration_seconds",
			Help:      "Analyzer call duration in seconds by outcome.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		},
		[]string{"service", "outcome"},
	)
	analysisInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "analysis",
			Name:        "in_flight",
			Help:        "Number of analyzer calls in progress.",
			ConstLabels: constLabels,
		},
	)
	staleTotal := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "analysis",
			Name:        "stale_completions_total",
			Help:        "Completions discarded because their batch was reset or replaced.",
			ConstLabels: constLabels,
		},
	)
	persistFailures := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "history",
			Name:        "persist_failures_total",
			Help:        "History writes that failed to reach the persistent store.",
			ConstLabels: constLabels,
		},
	)

	registry.MustRegister(analysisTotal, analysisDuration, analysisInFlight, staleTotal, persistFailures)

	return &AnalysisMetrics{
		registry:         registry,
		service:          service,
		analysisTotal:    analysisTotal,
		analysisDuration: analysisDuration,
		analysisInFlight: analysisInFlight,
		staleTotal:       staleTotal,
		persistFailures:  persistFailures,
	}
}

func (m *AnalysisMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *AnalysisMetrics) StartAnalysis() {
	m.analysisInFlight.Inc()
}

func (m *AnalysisMetrics) FinishAnalysis(outcome domain.Phase, duration time.Duration) {
	m.analysisInFlight.Dec()

	label := "success"
	if outcome != domain.PhaseSucceeded {
		label = "error"
	}
	m.analysisTotal.WithLabelValues(m.service, label).Inc()
	m.analysisDuration.WithLabelValues(m.service, label).Observe(duration.Seconds())
}

func (m *AnalysisMetrics) StaleCompletion() {
	m.staleTotal.Inc()
}

func (m *AnalysisMetrics) HistoryPersistFailed() {
	m.persistFailures.Inc()
}
