package http

import (
	"net/http"
	"strconv"
	"time"

	"fintrack/internal/middleware/ratelimit"
	"fintrack/internal/middleware/security"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// serverMetrics lives in a registry owned by one Server, so several servers
// (tests) never collide on registration.
type serverMetrics struct {
	registry        *prometheus.Registry
	requestCount    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

func newServerMetrics(limiter *ratelimit.Limiter, detector *security.Detector) *serverMetrics {
	m := &serverMetrics{
		registry: prometheus.NewRegistry(),
		requestCount: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "fintrack",
				Name:      "http_requests_total",
				Help:      "How many HTTP requests processed, partitioned by status code, method and route.",
			},
			[]string{"code", "method", "route"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "fintrack",
				Name:      "http_request_duration_seconds",
				Help:      "The HTTP request latencies in seconds.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"code", "method", "route"},
		),
	}

	m.registry.MustRegister(
		m.requestCount,
		m.requestDuration,
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: "fintrack",
			Name:      "http_rate_limited_total",
			Help:      "Mutating requests rejected by the per-client rate limit.",
		}, func() float64 { return float64(limiter.GetMetrics().Rejected) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: "fintrack",
			Name:      "http_suspicious_requests_total",
			Help:      "Requests that matched a probing pattern.",
		}, func() float64 { return float64(detector.GetMetrics().SuspiciousRequests) }),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// middleware records every request. The route label is the ServeMux pattern
// so path parameters never inflate cardinality.
func (m *serverMetrics) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rw, r)

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		code := strconv.Itoa(rw.status)
		m.requestCount.WithLabelValues(code, r.Method, route).Inc()
		m.requestDuration.WithLabelValues(code, r.Method, route).Observe(time.Since(start).Seconds())
	})
}

func (m *serverMetrics) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (rw *statusRecorder) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.status = code
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(code)
}
