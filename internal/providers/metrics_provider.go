package providers

import (
	"time"

	"flashback/internal/structures"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type MetricsProviderInterface interface {
	IncRequestsTotal(endpoint string, status int)
	ObserveRequestDuration(endpoint string, duration time.Duration)
	ObserveResponseSize(endpoint string, size int)
	IncCacheHits(family string)
	IncCacheMisses(family string)
	ObservePersistenceDuration(duration time.Duration)
	IncGenerations(outcome string)
	ObserveGenerationDuration(duration time.Duration)
	IncInflight()
	DecInflight()
}

// SessionCounter is the view of the history the metrics provider samples.
type SessionCounter interface {
	Count() int
}

type MetricsProvider struct {
	requestsTotal       *prometheus.CounterVec
	requestDuration     *prometheus.HistogramVec
	responseSize        *prometheus.HistogramVec
	cacheHits           *prometheus.CounterVec
	cacheMisses         *prometheus.CounterVec
	persistenceDuration prometheus.Histogram
	generationsTotal    *prometheus.CounterVec
	generationDuration  prometheus.Histogram
	inflight            prometheus.Gauge
}

func (m *MetricsProvider) IncRequestsTotal(endpoint string, status int) {
	m.requestsTotal.WithLabelValues(endpoint, httpStatusBucket(status)).Inc()
}

func (m *MetricsProvider) ObserveRequestDuration(endpoint string, duration time.Duration) {
	m.requestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

func (m *MetricsProvider) ObserveResponseSize(endpoint string, size int) {
	m.responseSize.WithLabelValues(endpoint).Observe(float64(size))
}

func (m *MetricsProvider) IncCacheHits(family string) {
	m.cacheHits.WithLabelValues(family).Inc()
}

func (m *MetricsProvider) IncCacheMisses(family string) {
	m.cacheMisses.WithLabelValues(family).Inc()
}

func (m *MetricsProvider) ObservePersistenceDuration(duration time.Duration) {
	m.persistenceDuration.Observe(duration.Seconds())
}

func (m *MetricsProvider) IncGenerations(outcome string) {
	m.generationsTotal.WithLabelValues(outcome).Inc()
}

func (m *MetricsProvider) ObserveGenerationDuration(duration time.Duration) {
	m.generationDuration.Observe(duration.Seconds())
}

func (m *MetricsProvider) IncInflight() {
	m.inflight.Inc()
}

func (m *MetricsProvider) DecInflight() {
	m.inflight.Dec()
}

func httpStatusBucket(code int) string {
	switch {
	case code < 200:
		return "1xx"
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}

func NewMetricsProvider(conf *structures.Config, sessions SessionCounter) MetricsProviderInterface {
	if !conf.Metrics.Enabled {
		return &noopMetrics{}
	}

	m := &MetricsProvider{
		requestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "flashback_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"endpoint", "status"}),

		requestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "flashback_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),

		// images and albums dominate; JSON bodies stay in the low buckets
		responseSize: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "flashback_response_size_bytes",
			Help:    "HTTP response body size in bytes",
			Buckets: prometheus.ExponentialBuckets(256, 4, 10),
		}, []string{"endpoint"}),

		cacheHits: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "flashback_cache_hits_total",
			Help: "Response cache hits by key family",
		}, []string{"family"}),

		cacheMisses: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "flashback_cache_misses_total",
			Help: "Response cache misses by key family",
		}, []string{"family"}),

		persistenceDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "flashback_persistence_duration_seconds",
			Help:    "Duration of snapshot persistence in seconds",
			Buckets: prometheus.DefBuckets,
		}),

		generationsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "flashback_generations_total",
			Help: "Finished decade generations by outcome",
		}, []string{"outcome"}),

		generationDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "flashback_generation_duration_seconds",
			Help:    "Duration of external image generation calls in seconds",
			Buckets: []float64{1, 2.5, 5, 10, 20, 30, 60, 120},
		}),

		inflight: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "flashback_generations_inflight",
			Help: "Decade generations currently running",
		}),
	}

	promauto.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "flashback_sessions_total",
		Help: "Sessions currently kept in history",
	}, func() float64 {
		return float64(sessions.Count())
	})

	return m
}

// noopMetrics is a no-op implementation for when metrics are disabled.
type noopMetrics struct{}

func (n *noopMetrics) IncRequestsTotal(_ string, _ int)                 {}
func (n *noopMetrics) ObserveRequestDuration(_ string, _ time.Duration) {}
func (n *noopMetrics) ObserveResponseSize(_ string, _ int)              {}
func (n *noopMetrics) IncCacheHits(_ string)                            {}
func (n *noopMetrics) IncCacheMisses(_ string)                          {}
func (n *noopMetrics) ObservePersistenceDuration(_ time.Duration)       {}
func (n *noopMetrics) IncGenerations(_ string)                          {}
func (n *noopMetrics) ObserveGenerationDuration(_ time.Duration)        {}
func (n *noopMetrics) IncInflight()                                     {}
func (n *noopMetrics) DecInflight()                                     {}
