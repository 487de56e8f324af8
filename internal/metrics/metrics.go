// Package metrics exposes Prometheus collectors for review runs and model calls.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles the collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry      *prometheus.Registry
	Reviews       *prometheus.CounterVec
	FileReviews   *prometheus.CounterVec
	FileDuration  *prometheus.HistogramVec
	ModelCalls    *prometheus.CounterVec
	DedupSkips    prometheus.Counter
	ActiveReviews prometheus.Gauge
}

// New constructs a private registry with the rev-ai collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	reviews := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rev_ai_reviews_total",
		Help: "Review runs by final status",
	}, []string{"status"})

	fileReviews := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rev_ai_file_reviews_total",
		Help: "Per-file reviewer invocations by outcome",
	}, []string{"status"})

	fileDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "rev_ai_file_review_duration_seconds",
		Help:    "Per-file reviewer duration in seconds",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
	}, []string{"status"})

	modelCalls := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rev_ai_model_calls_total",
		Help: "Model calls by provider and outcome",
	}, []string{"provider", "outcome"})

	dedupSkips := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rev_ai_dedup_skips_total",
		Help: "Files skipped because the task ledger already had them",
	})

	active := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "rev_ai_active_reviews",
		Help: "Review runs currently in progress",
	})

	reg.MustRegister(reviews, fileReviews, fileDuration, modelCalls, dedupSkips, active)

	return &Metrics{
		registry:      reg,
		Reviews:       reviews,
		FileReviews:   fileReviews,
		FileDuration:  fileDuration,
		ModelCalls:    modelCalls,
		DedupSkips:    dedupSkips,
		ActiveReviews: active,
	}
}

// Registry returns the underlying Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordReview counts a finished run.
func (m *Metrics) RecordReview(status string) {
	if m == nil {
		return
	}
	if status == "" {
		status = "unknown"
	}
	m.Reviews.WithLabelValues(status).Inc()
}

// RecordFileReview counts one reviewer invocation and its duration.
func (m *Metrics) RecordFileReview(status string, duration time.Duration) {
	if m == nil {
		return
	}
	if status == "" {
		status = "unknown"
	}
	m.FileReviews.WithLabelValues(status).Inc()
	m.FileDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// RecordModelCall counts one model call attempt.
func (m *Metrics) RecordModelCall(provider, outcome string) {
	if m == nil {
		return
	}
	if provider == "" {
		provider = "unknown"
	}
	m.ModelCalls.WithLabelValues(provider, outcome).Inc()
}

// RecordDedupSkip counts a file skipped by the ledger.
func (m *Metrics) RecordDedupSkip() {
	if m == nil {
		return
	}
	m.DedupSkips.Inc()
}

// ReviewStarted increments the active run gauge.
func (m *Metrics) ReviewStarted() {
	if m == nil {
		return
	}
	m.ActiveReviews.Inc()
}

// ReviewFinished decrements the active run gauge.
func (m *Metrics) ReviewFinished() {
	if m == nil {
		return
	}
	m.ActiveReviews.Dec()
}
