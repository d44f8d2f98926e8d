package telemetry

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors of the dashboard.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	guardDecisions *prometheus.CounterVec
	redirects      *prometheus.CounterVec
	logins         *prometheus.CounterVec
	activeViews    prometheus.Gauge
	clients        prometheus.Gauge
	httpDuration   *prometheus.HistogramVec
	upstreamErrors *prometheus.CounterVec
}

// NewMetrics creates the collectors on a private registry
func NewMetrics(namespace string) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		guardDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "guard_decisions_total",
			Help:      "Session guard evaluations by action and route kind.",
		}, []string{"action", "route"}),
		redirects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "guard_redirects_total",
			Help:      "Redirects pushed to views by target.",
		}, []string{"target"}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "logins_total",
			Help:      "Login attempts by outcome.",
		}, []string{"outcome"}),
		activeViews: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_views",
			Help:      "Open live view event streams.",
		}),
		clients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "clients",
			Help:      "Browser clients held by the registry.",
		}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		upstreamErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_errors_total",
			Help:      "Failed section listing fetches by section.",
		}, []string{"section"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.guardDecisions,
		m.redirects,
		m.logins,
		m.activeViews,
		m.clients,
		m.httpDuration,
		m.upstreamErrors,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveDecision counts a guard evaluation
func (m *Metrics) ObserveDecision(action, route, target string, pushed bool) {
	if m == nil {
		return
	}
	m.guardDecisions.WithLabelValues(action, route).Inc()
	if pushed {
		m.redirects.WithLabelValues(target).Inc()
	}
}

// ObserveLogin counts a login attempt
func (m *Metrics) ObserveLogin(outcome string) {
	if m == nil {
		return
	}
	m.logins.WithLabelValues(outcome).Inc()
}

// ViewOpened tracks a new live view stream
func (m *Metrics) ViewOpened() {
	if m == nil {
		return
	}
	m.activeViews.Inc()
}

// ViewClosed tracks a closed live view stream
func (m *Metrics) ViewClosed() {
	if m == nil {
		return
	}
	m.activeViews.Dec()
}

// SetClients records the registry size
func (m *Metrics) SetClients(n int) {
	if m == nil {
		return
	}
	m.clients.Set(float64(n))
}

// ObserveHTTP records a request duration
func (m *Metrics) ObserveHTTP(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(d.Seconds())
}

// ObserveUpstreamError counts a failed listing fetch
func (m *Metrics) ObserveUpstreamError(section string) {
	if m == nil {
		return
	}
	m.upstreamErrors.WithLabelValues(section).Inc()
}
