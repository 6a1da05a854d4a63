package ratelimit

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestsTotal counts rate limit checks.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rescache_ratelimit_requests_total",
			Help: "Total number of rate limit checks",
		},
		[]string{"key", "result"},
	)

	// RejectedTotal counts requests rejected by the rate limiter.
	RejectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rescache_ratelimit_rejected_total",
			Help: "Total number of requests rejected by the rate limiter",
		},
		[]string{"key"},
	)
)

// RecordRequest records a rate limit check.
func RecordRequest(key string, allowed bool) {
	result := "allowed"
	if !allowed {
		result = "rejected"
		RejectedTotal.WithLabelValues(key).Inc()
	}
	RequestsTotal.WithLabelValues(key, result).Inc()
}
