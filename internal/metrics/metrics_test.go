package metrics

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordReview("completed")
		m.RecordFileReview("failed", time.Second)
		m.RecordModelCall("ollama", "success")
		m.RecordDedupSkip()
		m.ReviewStarted()
		m.ReviewFinished()
	})
}

func TestRecorders(t *testing.T) {
	m := New()

	m.RecordReview("completed")
	m.RecordReview("")
	m.RecordFileReview("completed", 2*time.Second)
	m.RecordFileReview("failed", time.Second)
	m.RecordModelCall("anthropic", "retry")
	m.RecordDedupSkip()
	m.ReviewStarted()
	m.ReviewStarted()
	m.ReviewFinished()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Reviews.WithLabelValues("completed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Reviews.WithLabelValues("unknown")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FileReviews.WithLabelValues("failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ModelCalls.WithLabelValues("anthropic", "retry")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DedupSkips))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ActiveReviews))
}

func TestHandlerServesRegistry(t *testing.T) {
	m := New()
	m.RecordReview("completed")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "rev_ai_reviews_total")
}
