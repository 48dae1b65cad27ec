// Package metrics owns the Prometheus registry of the server.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Login outcomes.
const (
	LoginSuccess     = "success"
	LoginUnknownUser = "unknown_user"
	LoginInactive    = "inactive"
	LoginBadPassword = "bad_password"
	LoginRateLimited = "rate_limited"
	LoginError       = "error"
)

// Session validation results.
const (
	SessionValid   = "valid"
	SessionMissing = "missing"
	SessionExpired = "expired"
	SessionCorrupt = "corrupt"
	SessionRevoked = "revoked"
	SessionError   = "error"
)

// Metrics groups the collectors recorded by the server.
type Metrics struct {
	Registry *prometheus.Registry

	requests    *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	logins      *prometheus.CounterVec
	validations *prometheus.CounterVec
	startedAt   time.Time
}

// New creates a registry with the Go and process collectors and the
// application metrics.
func New() *Metrics {
	m := &Metrics{
		Registry:  prometheus.NewRegistry(),
		startedAt: time.Now(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tavola_http_requests_total",
			Help: "HTTP requests by method, route pattern and status.",
		}, []string{"method", "route", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tavola_http_request_duration_seconds",
			Help:    "HTTP request latency by method and route pattern.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tavola_login_attempts_total",
			Help: "Admin login attempts by outcome.",
		}, []string{"outcome"}),
		validations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tavola_session_validations_total",
			Help: "Session validations by result.",
		}, []string{"result"}),
	}

	m.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "tavola_uptime_seconds",
			Help: "Process uptime in seconds.",
		}, func() float64 {
			return time.Since(m.startedAt).Seconds()
		}),
		m.requests, m.duration, m.logins, m.validations,
	)
	return m
}

// ObserveRequest records one served HTTP request.
func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.duration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// LoginAttempt counts one login outcome.
func (m *Metrics) LoginAttempt(outcome string) {
	if m == nil {
		return
	}
	m.logins.WithLabelValues(outcome).Inc()
}

// SessionValidation counts one validation result.
func (m *Metrics) SessionValidation(result string) {
	if m == nil {
		return
	}
	m.validations.WithLabelValues(result).Inc()
}

// Handler serves the registry. A non-empty token requires
// "Authorization: Bearer <token>".
func (m *Metrics) Handler(token string) http.Handler {
	handler := promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
	token = strings.TrimSpace(token)
	if token == "" {
		return handler
	}
	expected := "Bearer " + token
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != expected {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		handler.ServeHTTP(w, r)
	})
}
