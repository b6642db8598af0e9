package http

import (
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// serverMetrics holds the Prometheus collectors of one server. Each server
// owns its registry so that several servers can coexist in tests.
type serverMetrics struct {
	registry        *prometheus.Registry
	requestCount    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

func newServerMetrics(s *Server) *serverMetrics {
	m := &serverMetrics{
		registry: prometheus.NewRegistry(),
		requestCount: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "previsioni_requests_total",
				Help: "How many HTTP requests processed, partitioned by status code, method and route.",
			},
			[]string{"code", "method", "route"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "previsioni_request_duration_seconds",
				Help: "The HTTP request latencies in seconds.",
			},
			[]string{"code", "method", "route"},
		),
	}

	cacheStat := func(name, help string, value func() float64) prometheus.Collector {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{Name: name, Help: help}, value)
	}

	m.registry.MustRegister(
		m.requestCount,
		m.requestDuration,
		cacheStat("previsioni_report_cache_entries", "Reports currently cached.",
			func() float64 { return float64(s.service.CacheStats().Size) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "previsioni_report_cache_hits_total",
			Help: "Reports served from cache.",
		}, func() float64 { return float64(s.service.CacheStats().Hits) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "previsioni_report_cache_misses_total",
			Help: "Reports computed because no cached copy existed.",
		}, func() float64 { return float64(s.service.CacheStats().Misses) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "previsioni_rate_limit_hits_total",
			Help: "Requests rejected by the per-client rate limit.",
		}, func() float64 { return float64(atomic.LoadInt64(&s.metrics.rateLimitHits)) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "previsioni_suspicious_requests_total",
			Help: "Requests matching a known attack pattern.",
		}, func() float64 { return float64(atomic.LoadInt64(&s.metrics.suspiciousRequests)) }),
		cacheStat("previsioni_rate_limited_clients", "Clients tracked by the rate limiter.",
			func() float64 { return float64(s.rateLimiter.activeClients()) }),
	)
	return m
}

// instrument records count and latency of requests to route. The route
// pattern, not the raw path, is used as label to bound cardinality.
func (m *serverMetrics) instrument(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		code := strconv.Itoa(rec.status)
		m.requestDuration.WithLabelValues(code, r.Method, route).Observe(time.Since(start).Seconds())
		m.requestCount.WithLabelValues(code, r.Method, route).Inc()
	})
}

func (m *serverMetrics) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
