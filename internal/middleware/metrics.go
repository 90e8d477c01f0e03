package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace prefixes every metric the server exports
const Namespace = "farm_dashboard"

// MetricsMiddleware collects metrics about requests
type MetricsMiddleware struct {
	requestCounter   *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	requestsInFlight *prometheus.GaugeVec
}

// NewMetricsMiddleware creates a new metrics middleware
func NewMetricsMiddleware(reg prometheus.Registerer) *MetricsMiddleware {
	return &MetricsMiddleware{
		requestCounter: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "requests_total",
				Help:      "Total number of requests by method, route, area and status code",
			},
			[]string{"method", "route", "area", "code"},
		),
		requestDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "request_duration_seconds",
				Help:      "Duration of requests in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route", "area"},
		),
		requestsInFlight: promauto.With(reg).NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Name:      "requests_in_flight",
				Help:      "Current number of requests being processed",
			},
			[]string{"area"},
		),
	}
}

// CollectMetrics collects metrics for requests
func (m *MetricsMiddleware) CollectMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := routeTemplate(r)
		area := routeArea(route)
		method := r.Method

		m.requestsInFlight.WithLabelValues(area).Inc()
		defer m.requestsInFlight.WithLabelValues(area).Dec()

		respWriter := &metricsResponseWriter{ResponseWriter: w, status: http.StatusOK}

		start := time.Now()
		next.ServeHTTP(respWriter, r)
		duration := time.Since(start).Seconds()

		m.requestCounter.WithLabelValues(method, route, area, strconv.Itoa(respWriter.status)).Inc()
		m.requestDuration.WithLabelValues(method, route, area).Observe(duration)
	})
}

// routeTemplate labels requests by their mux route so farm ids do not
// explode label cardinality
func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return "unmatched"
}

func routeArea(route string) string {
	switch {
	case strings.HasPrefix(route, "/farm/harvest-ajax"),
		strings.HasPrefix(route, "/api/send-contact"),
		strings.HasPrefix(route, "/generate-qr"):
		return "backend"
	case strings.HasPrefix(route, "/farm"):
		return "dashboard"
	case strings.HasPrefix(route, "/api"):
		return "api"
	case strings.HasPrefix(route, "/static"):
		return "static"
	case route == "/health", route == "/metrics":
		return "ops"
	default:
		return "other"
	}
}

type metricsResponseWriter struct {
	http.ResponseWriter
	status int
}

// WriteHeader captures the status code for metrics
func (mrw *metricsResponseWriter) WriteHeader(code int) {
	mrw.status = code
	mrw.ResponseWriter.WriteHeader(code)
}

// Flush forwards to the wrapped writer when it supports flushing
func (mrw *metricsResponseWriter) Flush() {
	if f, ok := mrw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
