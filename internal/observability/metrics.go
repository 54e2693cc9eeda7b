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
	ledgerPosts     *prometheus.CounterVec
	violations      *prometheus.CounterVec
	integrityDrift  prometheus.Gauge
}

// NewMetrics initialises the registry and base metrics.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "andino_http_requests_total",
		Help: "HTTP requests by route and status.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "andino_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	posts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "andino_ledger_posts_total",
		Help: "Ledger transactions posted, by kind and type.",
	}, []string{"kind", "tx_type"})
	violations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "andino_ledger_invariant_violations_total",
		Help: "Rejected postings by violation reason.",
	}, []string{"reason"})
	drift := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "andino_ledger_integrity_drift",
		Help: "Accounts whose persisted derived fields disagree with a refold of their log.",
	})
	registry.MustRegister(requests, duration, posts, violations, drift)
	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		ledgerPosts:     posts,
		violations:      violations,
		integrityDrift:  drift,
	}
}

// Handler returns the http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records request metrics.
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
	})
}

// RecordLedgerPost counts a successful posting.
func (m *Metrics) RecordLedgerPost(kind, txType string) {
	if m == nil {
		return
	}
	m.ledgerPosts.WithLabelValues(kind, txType).Inc()
}

// RecordInvariantViolation counts a rejected posting.
func (m *Metrics) RecordInvariantViolation(reason string) {
	if m == nil {
		return
	}
	m.violations.WithLabelValues(reason).Inc()
}

// SetIntegrityDrift publishes the latest integrity scan result.
func (m *Metrics) SetIntegrityDrift(count float64) {
	if m == nil {
		return
	}
	m.integrityDrift.Set(count)
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
	if ctx := chi.RouteContext(r.Context()); ctx != nil {
		if pattern := ctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return r.URL.Path
}
