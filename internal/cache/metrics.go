package cache

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// CacheMetrics holds Prometheus metrics for cache operations.
type CacheMetrics struct {
	hitsTotal      *prometheus.CounterVec
	missesTotal    *prometheus.CounterVec
	evictionsTotal *prometheus.CounterVec
	sizeGauge      *prometheus.GaugeVec
	fetchDuration  *prometheus.HistogramVec
	fetchesTotal   *prometheus.CounterVec
}

var (
	cacheMetricsInstance *CacheMetrics
	cacheMetricsOnce     sync.Once
)

// GetCacheMetrics returns the singleton cache metrics instance.
func GetCacheMetrics() *CacheMetrics {
	cacheMetricsOnce.Do(func() {
		cacheMetricsInstance = newCacheMetrics()
	})
	return cacheMetricsInstance
}

// MustRegister registers all cache metric collectors with the given
// Prometheus registry. promauto registers metrics with the default global
// registry; callers serving /metrics from a custom registry use this to
// bridge the two.
func (m *CacheMetrics) MustRegister(registry *prometheus.Registry) {
	registry.MustRegister(
		m.hitsTotal,
		m.missesTotal,
		m.evictionsTotal,
		m.sizeGauge,
		m.fetchDuration,
		m.fetchesTotal,
	)
}

// Init pre-initializes label combinations for the given resource names so
// that metric lines appear in /metrics output immediately after startup.
// Idempotent and safe to call multiple times.
func (m *CacheMetrics) Init(resources ...string) {
	for _, resource := range resources {
		m.hitsTotal.WithLabelValues(resource)
		m.missesTotal.WithLabelValues(resource)
		m.evictionsTotal.WithLabelValues(resource)
		m.sizeGauge.WithLabelValues(resource)
		for _, result := range []string{"success", "failure"} {
			m.fetchDuration.WithLabelValues(resource, result)
			m.fetchesTotal.WithLabelValues(resource, result)
		}
	}
}

func newCacheMetrics() *CacheMetrics {
	return &CacheMetrics{
		hitsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "rescache",
				Subsystem: "cache",
				Name:      "hits_total",
				Help:      "Total number of cache hits",
			},
			[]string{"resource"},
		),
		missesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "rescache",
				Subsystem: "cache",
				Name:      "misses_total",
				Help:      "Total number of cache misses",
			},
			[]string{"resource"},
		),
		evictionsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "rescache",
				Subsystem: "cache",
				Name:      "evictions_total",
				Help:      "Total number of cache evictions",
			},
			[]string{"resource"},
		),
		sizeGauge: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "rescache",
				Subsystem: "cache",
				Name:      "size",
				Help:      "Current number of entries in cache",
			},
			[]string{"resource"},
		),
		fetchDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "rescache",
				Subsystem: "cache",
				Name:      "fetch_duration_seconds",
				Help:      "Duration of upstream fetches on cache miss",
				Buckets: []float64{
					.001, .005, .01, .025, .05,
					.1, .25, .5, 1, 2.5, 5,
				},
			},
			[]string{"resource", "result"},
		),
		fetchesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "rescache",
				Subsystem: "cache",
				Name:      "fetches_total",
				Help:      "Total number of upstream fetches on cache miss",
			},
			[]string{"resource", "result"},
		),
	}
}
