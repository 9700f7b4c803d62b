package observability

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// HTTPRequestsTotal counts HTTP requests by route, method, and status label.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_http_requests_total",
			Help: "Total number of HTTP requests handled by the gateway",
		},
		[]string{"route", "method", "status"},
	)
	// HTTPRequestDuration records request durations by route and method.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gateway_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"route", "method"},
	)

	// BreakerState reports the current state of each named circuit breaker
	// (0=closed, 1=open, 2=half-open), one gauge value per upstream name.
	BreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "gateway_breaker_state",
			Help: "Current circuit breaker state per upstream (0=closed,1=open,2=half-open)",
		},
		[]string{"upstream"},
	)
	// BreakerFailuresTotal counts failures recorded by each breaker.
	BreakerFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_breaker_failures_total",
			Help: "Total number of failures recorded by each circuit breaker",
		},
		[]string{"upstream"},
	)

	// RetryQueueDepth reports the number of pending retry tasks.
	RetryQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "gateway_retry_queue_depth",
			Help: "Number of retry tasks currently pending in the compensation retry queue",
		},
	)
	// RetryQueueExhaustedTotal counts tasks that exhausted their retry budget.
	RetryQueueExhaustedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "gateway_retry_queue_exhausted_total",
			Help: "Total number of retry tasks that exhausted max_attempts without succeeding",
		},
	)
)

// InitMetrics registers every gateway metric with the default Prometheus registry.
// Safe to call exactly once per process.
func InitMetrics() {
	prometheus.MustRegister(HTTPRequestsTotal)
	prometheus.MustRegister(HTTPRequestDuration)
	prometheus.MustRegister(BreakerState)
	prometheus.MustRegister(BreakerFailuresTotal)
	prometheus.MustRegister(RetryQueueDepth)
	prometheus.MustRegister(RetryQueueExhaustedTotal)
}

// HTTPMetricsMiddleware records Prometheus metrics for each request.
func HTTPMetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		dur := time.Since(start).Seconds()

		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := http.StatusText(ww.Status())
		HTTPRequestsTotal.WithLabelValues(route, r.Method, status).Inc()
		HTTPRequestDuration.WithLabelValues(route, r.Method).Observe(dur)
	})
}
