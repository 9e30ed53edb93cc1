package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kirillkom/aaer-miner/internal/core/domain"
)

type WorkerMetrics struct {
	registry *prometheus.Registry
	service  string

	documentTotal    *prometheus.CounterVec
	documentDuration *prometheus.HistogramVec
	documentInFlight prometheus.Gauge
	resolutionScore  prometheus.Histogram
	periodMonths     prometheus.Histogram
	batchTotal       *prometheus.CounterVec
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()

	documentTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "aaer",
			Subsystem: "worker",
			Name:      "document_total",
			Help:      "Total processed documents by final status and skip reason.",
		},
		[]string{"service", "status", "reason"},
	)
	documentDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "aaer",
			Subsystem: "worker",
			Name:      "document_duration_seconds",
			Help:      "Document processing duration in seconds by final status.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		},
		[]string{"service", "status"},
	)
	documentInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "aaer",
			Subsystem: "worker",
			Name:      "document_in_flight",
			Help:      "Number of documents currently in the pipeline.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	resolutionScore := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace:   "aaer",
			Subsystem:   "worker",
			Name:        "resolution_score",
			Help:        "Similarity score of accepted company resolutions.",
			Buckets:     []float64{0.5, 0.6, 0.7, 0.8, 0.85, 0.9, 0.95, 0.99, 1},
			ConstLabels: prometheus.Labels{"service": service},
		},
	)
	periodMonths := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace:   "aaer",
			Subsystem:   "worker",
			Name:        "fraud_period_months",
			Help:        "Length of extracted fraud periods in months.",
			Buckets:     []float64{1, 3, 6, 12, 24, 36, 60, 120},
			ConstLabels: prometheus.Labels{"service": service},
		},
	)
	batchTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "aaer",
			Subsystem: "worker",
			Name:      "batch_total",
			Help:      "Completed batch passes by status.",
		},
		[]string{"service", "status"},
	)

	registry.MustRegister(documentTotal, documentDuration, documentInFlight, resolutionScore, periodMonths, batchTotal)

	return &WorkerMetrics{
		registry:         registry,
		service:          service,
		documentTotal:    documentTotal,
		documentDuration: documentDuration,
		documentInFlight: documentInFlight,
		resolutionScore:  resolutionScore,
		periodMonths:     periodMonths,
		batchTotal:       batchTotal,
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *WorkerMetrics) StartDocument() {
	m.documentInFlight.Inc()
}

func (m *WorkerMetrics) FinishDocument(outcome domain.Outcome, duration time.Duration) {
	m.documentInFlight.Dec()

	status := string(outcome.State)
	if outcome.Err != nil && !outcome.Skipped() {
		status = "error"
	}

	m.documentTotal.WithLabelValues(m.service, status, string(outcome.SkipReason)).Inc()
	m.documentDuration.WithLabelValues(m.service, status).Observe(duration.Seconds())
}

func (m *WorkerMetrics) FinishBatch(report domain.BatchReport) {
	status := "completed"
	if report.Aborted {
		status = "aborted"
	}
	m.batchTotal.WithLabelValues(m.service, status).Inc()
}

func (m *WorkerMetrics) ObserveResolution(score float64) {
	m.resolutionScore.Observe(score)
}

func (m *WorkerMetrics) ObservePeriod(period domain.FraudPeriod) {
	m.periodMonths.Observe(float64(period.Months()))
}
