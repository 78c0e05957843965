// Package metrics exposes Prometheus counters for authentication and audit activity.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Login attempt outcomes.
const (
	LoginSuccess     = "success"
	LoginFailure     = "failure"
	LoginForbidden   = "forbidden"
	LoginRateLimited = "rate_limited"
)

// Metrics holds all Prometheus collectors of the service.
type Metrics struct {
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	SecurityEventsTotal *prometheus.CounterVec
	LoginAttemptsTotal  *prometheus.CounterVec
	APIKeyVerifications *prometheus.CounterVec
	LimiterDecisions    *prometheus.CounterVec
}

// NewMetrics creates and registers the collectors on registry.
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "secadmin_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "secadmin_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		SecurityEventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "secadmin_security_events_total",
				Help: "Total number of security log entries written",
			},
			[]string{"event_type"},
		),
		LoginAttemptsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "secadmin_login_attempts_total",
				Help: "Total number of token requests by outcome",
			},
			[]string{"result"},
		),
		APIKeyVerifications: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "secadmin_api_key_verifications_total",
				Help: "Total number of API key verifications by outcome",
			},
			[]string{"result"},
		),
		LimiterDecisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "secadmin_login_limiter_decisions_total",
				Help: "Login rate limiter decisions by backend and outcome",
			},
			[]string{"backend", "result"},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.SecurityEventsTotal,
		m.LoginAttemptsTotal,
		m.APIKeyVerifications,
		m.LimiterDecisions,
	)
	return m
}

// ObserveSecurityEvent counts a stored security log entry.
func (m *Metrics) ObserveSecurityEvent(eventType string) {
	if m == nil {
		return
	}
	m.SecurityEventsTotal.WithLabelValues(eventType).Inc()
}

// ObserveLogin counts a token request outcome.
func (m *Metrics) ObserveLogin(result string) {
	if m == nil {
		return
	}
	m.LoginAttemptsTotal.WithLabelValues(result).Inc()
}

// ObserveAPIKeyVerification counts an API key verification outcome.
func (m *Metrics) ObserveAPIKeyVerification(ok bool) {
	if m == nil {
		return
	}
	result := "rejected"
	if ok {
		result = "accepted"
	}
	m.APIKeyVerifications.WithLabelValues(result).Inc()
}

// ObserveLimiterDecision counts a login limiter decision. It satisfies ratelimit.Observer.
func (m *Metrics) ObserveLimiterDecision(backend string, allowed bool) {
	if m == nil {
		return
	}
	result := "rejected"
	if allowed {
		result = "allowed"
	}
	m.LimiterDecisions.WithLabelValues(backend, result).Inc()
}

// GinMiddleware records request counts and latencies by route template.
func (m *Metrics) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.HTTPRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.HTTPRequestDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

// Handler serves the registry in the Prometheus exposition format.
func Handler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
