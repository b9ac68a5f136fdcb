// Package metrics provides Prometheus instrumentation for the catalog engine.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// CanonicalItems tracks the size of the loaded catalog.
	CanonicalItems = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "catalog_canonical_items",
		Help: "Number of products in the canonical collection",
	})

	// FilteredItems tracks the size of the derived view.
	FilteredItems = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "catalog_filtered_items",
		Help: "Number of products matching the active criteria",
	})

	// Recomputations counts derived view recomputations by trigger.
	Recomputations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_recomputations_total",
		Help: "Derived view recomputations",
	}, []string{"trigger"})

	// RecomputeDuration tracks how long a recomputation takes.
	RecomputeDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "catalog_recompute_duration_seconds",
		Help:    "Derived view recomputation latency in seconds",
		Buckets: []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05},
	})

	// LoadTransitions counts load lifecycle transitions per collection and status.
	LoadTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_load_transitions_total",
		Help: "Load lifecycle transitions",
	}, []string{"collection", "status"})

	// CartLines tracks distinct products in the cart.
	CartLines = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "catalog_cart_lines",
		Help: "Distinct products in the cart ledger",
	})

	// CartQuantity tracks the summed quantity in the cart.
	CartQuantity = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "catalog_cart_quantity",
		Help: "Total quantity across cart lines",
	})

	// HTTPRequestsTotal counts HTTP requests by method, route, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "route", "status"})

	// HTTPRequestDuration tracks request duration by method and route.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "catalog_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "route"})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware returns an HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		// Route pattern keeps label cardinality bounded.
		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(duration)
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
