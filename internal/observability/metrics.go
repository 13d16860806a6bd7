package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce             sync.Once
	gradingRequestsTotal     *prometheus.CounterVec
	gradingDurationSeconds   *prometheus.HistogramVec
	examinerFailuresTotal    *prometheus.CounterVec
	rateLimitRejectionsTotal *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors used by the grading engine.
func RegisterMetrics() {
	registerOnce.Do(func() {
		gradingRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "grading_requests_total",
			Help: "Total number of grading requests handled.",
		}, []string{"subject", "status"})

		gradingDurationSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "grading_duration_seconds",
			Help:    "End-to-end latency of grading requests including the summary stage.",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60},
		}, []string{"subject"})

		examinerFailuresTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "examiner_failures_total",
			Help: "Number of examiner runs that degraded to a fallback result.",
		}, []string{"examiner_id", "stage"})

		rateLimitRejectionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rate_limit_rejections_total",
			Help: "Number of grading requests denied by the rate limiter.",
		}, []string{"tier"})

		prometheus.MustRegister(gradingRequestsTotal, gradingDurationSeconds, examinerFailuresTotal, rateLimitRejectionsTotal)
	})
}

// GradingRequests exposes the counter for grading requests.
func GradingRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return gradingRequestsTotal
}

// GradingDuration exposes the grading latency histogram.
func GradingDuration() *prometheus.HistogramVec {
	RegisterMetrics()
	return gradingDurationSeconds
}

// ExaminerFailures exposes the counter for degraded examiner runs.
func ExaminerFailures() *prometheus.CounterVec {
	RegisterMetrics()
	return examinerFailuresTotal
}

// RateLimitRejections exposes the counter for rate-limited requests.
func RateLimitRejections() *prometheus.CounterVec {
	RegisterMetrics()
	return rateLimitRejectionsTotal
}
