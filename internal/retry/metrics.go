package retry

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RetryAttemptsTotal counts every invocation attempt.
	RetryAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rescache_retry_attempts_total",
			Help: "Total number of retry attempts",
		},
		[]string{"operation", "attempt"},
	)

	// RetrySuccessTotal counts operations that eventually succeeded.
	RetrySuccessTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rescache_retry_success_total",
			Help: "Total number of operations that succeeded, possibly after retries",
		},
		[]string{"operation"},
	)

	// RetryFailureTotal counts operations that exhausted all attempts.
	RetryFailureTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rescache_retry_failure_total",
			Help: "Total number of operations that failed after all retry attempts",
		},
		[]string{"operation"},
	)

	// RetryBackoffDuration measures backoff wait times.
	RetryBackoffDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rescache_retry_backoff_duration_seconds",
			Help:    "Duration of backoff waits in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"operation"},
	)
)

// RecordAttempt records one invocation attempt.
func RecordAttempt(operation string, attempt int) {
	RetryAttemptsTotal.WithLabelValues(operation, strconv.Itoa(attempt)).Inc()
}

// RecordSuccess records an operation that succeeded.
func RecordSuccess(operation string) {
	RetrySuccessTotal.WithLabelValues(operation).Inc()
}

// RecordFailure records an operation that exhausted all attempts.
func RecordFailure(operation string) {
	RetryFailureTotal.WithLabelValues(operation).Inc()
}

// RecordBackoff records a backoff wait duration.
func RecordBackoff(operation string, seconds float64) {
	RetryBackoffDuration.WithLabelValues(operation).Observe(seconds)
}
