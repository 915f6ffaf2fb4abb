// Package observability exposes Prometheus metrics for the API and the
// inventory ledger.
package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects Prometheus metrics for the application.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	movements       *prometheus.CounterVec
	movementQty     *prometheus.CounterVec
	busy            *prometheus.CounterVec
}

// NewMetrics initialises the registry and the base collectors.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sds_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sds_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	movements := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sds_inventory_movements_total",
		Help: "Committed inventory movements by direction and reference type.",
	}, []string{"type", "ref_type"})
	movementQty := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sds_inventory_movement_qty_total",
		Help: "Base-unit quantity moved by committed movements.",
	}, []string{"type", "ref_type"})
	busy := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sds_lock_busy_total",
		Help: "Requests rejected because a row lock wait exceeded its bound.",
	}, []string{"route"})
	registry.MustRegister(
		requests,
		duration,
		movements,
		movementQty,
		busy,
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		movements:       movements,
		movementQty:     movementQty,
		busy:            busy,
	}
}

// Handler returns the http.Handler serving /metrics.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveMovement counts a committed ledger movement.
func (m *Metrics) ObserveMovement(movementType, refType string, qty float64) {
	if m == nil {
		return
	}
	m.movements.WithLabelValues(movementType, refType).Inc()
	if qty > 0 {
		m.movementQty.WithLabelValues(movementType, refType).Add(qty)
	}
}

// IncBusy counts a request that gave up waiting for a row lock.
func (m *Metrics) IncBusy(route string) {
	if m == nil {
		return
	}
	m.busy.WithLabelValues(route).Inc()
}

// Middleware records metrics for every HTTP request. Busy responses are the
// 503s carrying Retry-After.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
		if recorder.status == http.StatusServiceUnavailable && w.Header().Get("Retry-After") != "" {
			m.IncBusy(route)
		}
	})
}

// Registerer exposes the registry for custom collectors.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
