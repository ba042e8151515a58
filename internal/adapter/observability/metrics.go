package observability

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// HTTPRequestsTotal counts HTTP requests by route, method, and status.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "method", "status"},
	)
	// HTTPRequestDuration observes HTTP request latency.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"route", "method"},
	)

	// SessionsStartedTotal counts interview sessions started, by visa type.
	SessionsStartedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "interview_sessions_started_total",
			Help: "Total number of interview sessions started",
		},
		[]string{"visa_type"},
	)
	// SessionsCompletedTotal counts completed sessions by verdict and
	// whether any AI scoring was involved.
	SessionsCompletedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "interview_sessions_completed_total",
			Help: "Total number of interview sessions completed",
		},
		[]string{"passed", "ai_powered"},
	)
	// AnswersScoredTotal counts scored answers by path and flagging.
	AnswersScoredTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "interview_answers_scored_total",
			Help: "Total number of answers scored",
		},
		[]string{"path", "flagged"},
	)
	// AIRequestsTotal counts calls to the AI collaborator by outcome.
	AIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_requests_total",
			Help: "Total number of AI collaborator requests",
		},
		[]string{"outcome"},
	)
	// AIRequestDuration observes AI collaborator call latency.
	AIRequestDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ai_request_duration_seconds",
			Help:    "AI collaborator request duration in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
	)
	// OverallScoreHistogram observes the distribution of final scores.
	OverallScoreHistogram = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "interview_overall_score",
			Help:    "Distribution of final interview scores",
			Buckets: []float64{0, 10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
		},
	)
)

var registerOnce sync.Once

// InitMetrics registers all metric vectors with the default registry. Safe
// to call more than once.
func InitMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			HTTPRequestsTotal,
			HTTPRequestDuration,
			SessionsStartedTotal,
			SessionsCompletedTotal,
			AnswersScoredTotal,
			AIRequestsTotal,
			AIRequestDuration,
			OverallScoreHistogram,
		)
	})
}

// RecordSessionStarted increments the started counter.
func RecordSessionStarted(visaType string) {
	SessionsStartedTotal.WithLabelValues(visaType).Inc()
}

// RecordSessionCompleted increments the completed counter.
func RecordSessionCompleted(passed, aiPowered bool) {
	SessionsCompletedTotal.WithLabelValues(strconv.FormatBool(passed), strconv.FormatBool(aiPowered)).Inc()
}

// RecordAnswerScored increments the scored-answer counter.
func RecordAnswerScored(aiUsed, flagged bool) {
	path := "fallback"
	if aiUsed {
		path = "ai"
	}
	AnswersScoredTotal.WithLabelValues(path, strconv.FormatBool(flagged)).Inc()
}

// RecordAIRequest records one collaborator call.
func RecordAIRequest(outcome string, elapsed time.Duration) {
	AIRequestsTotal.WithLabelValues(outcome).Inc()
	AIRequestDuration.Observe(elapsed.Seconds())
}

// RecordOverallScore records a final interview score.
func RecordOverallScore(score int) {
	OverallScoreHistogram.Observe(float64(score))
}

// HTTPMetricsMiddleware instruments requests with the HTTP metric vectors.
func HTTPMetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		HTTPRequestsTotal.WithLabelValues(route, r.Method, strconv.Itoa(ww.Status())).Inc()
		HTTPRequestDuration.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}
