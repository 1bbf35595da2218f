package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "minimart",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "minimart",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "path"},
	)

	checkouts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "minimart",
			Subsystem: "orders",
			Name:      "checkouts_total",
			Help:      "Total number of successful checkouts.",
		},
	)

	checkoutValue = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "minimart",
			Subsystem: "orders",
			Name:      "checkout_value_total",
			Help:      "Cumulative order total across successful checkouts.",
		},
	)

	approvals = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "minimart",
			Subsystem: "orders",
			Name:      "approvals_total",
			Help:      "Total number of order approvals.",
		},
	)
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		httpRequests,
		httpDuration,
		checkouts,
		checkoutValue,
		approvals,
	)
}

// Handler serves the registry over HTTP.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// Middleware instruments HTTP requests with count and duration,
// labeled by the matched route pattern rather than the raw path.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		path := chi.RouteContext(r.Context()).RoutePattern()
		if path == "" {
			path = "unmatched"
		}
		httpRequests.WithLabelValues(r.Method, path, strconv.Itoa(ww.Status())).Inc()
		httpDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}

// RecordCheckout counts a successful checkout and its order total.
func RecordCheckout(total float64) {
	checkouts.Inc()
	checkoutValue.Add(total)
}

// RecordApproval counts an order approval.
func RecordApproval() {
	approvals.Inc()
}
