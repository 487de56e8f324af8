package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/montarelab/rev-ai/internal/metrics"
	"github.com/montarelab/rev-ai/internal/server/handler"
)

// Reviews run on the dispatcher, so API calls only enqueue or read state.
const apiTimeout = 15 * time.Second

// NewRouter mounts the review API under /api/v1/reviews next to /health and
// the Prometheus /metrics endpoint.
func NewRouter(reviews *handler.ReviewHandler, m *metrics.Metrics, logger *slog.Logger) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", m.Handler())

	r.Route("/api/v1/reviews", func(r chi.Router) {
		r.Use(middleware.Timeout(apiTimeout))
		r.NotFound(apiError(http.StatusNotFound, "unknown review endpoint"))
		r.MethodNotAllowed(apiError(http.StatusMethodNotAllowed, "method not allowed"))

		r.Post("/", reviews.Create)
		r.Get("/", reviews.List)
		r.Get("/{taskID}", reviews.Get)
	})

	return r
}

// requestLogger logs one line per API call. Health and metrics scrapes are
// logged at debug so they do not drown out review submissions.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			level := slog.LevelInfo
			if r.URL.Path == "/health" || r.URL.Path == "/metrics" {
				level = slog.LevelDebug
			}
			logger.Log(r.Context(), level, "api request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()))
		})
	}
}

func apiError(status int, msg string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"error":"` + msg + `"}`))
	}
}
