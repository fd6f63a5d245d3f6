// Package metrics defines Prometheus metrics for the catalog server.
//
// Metric naming follows Prometheus conventions:
//   - bookshelf_ prefix for all custom metrics
//   - _total suffix for counters
//   - _seconds suffix for duration histograms
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the server collectors and the registry they live in.
type Metrics struct {
	reg *prometheus.Registry

	// RequestsTotal counts HTTP requests by route template, method and status.
	RequestsTotal *prometheus.CounterVec
	// RequestDurationSeconds observes handler latency by route template.
	RequestDurationSeconds *prometheus.HistogramVec
	// VersionConflictsTotal counts rejected conditional writes.
	VersionConflictsTotal prometheus.Counter
	// LoginsTotal counts password grants by outcome (ok, denied, blocked, error).
	LoginsTotal *prometheus.CounterVec
}

// New creates collectors registered on a fresh registry along with Go and process collectors.
func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bookshelf_http_requests_total",
				Help: "Total HTTP requests by route, method and status code.",
			},
			[]string{"route", "method", "code"},
		),
		RequestDurationSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bookshelf_http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route"},
		),
		VersionConflictsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bookshelf_version_conflicts_total",
			Help: "Total updates rejected because the If-Match version was stale.",
		}),
		LoginsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bookshelf_logins_total",
				Help: "Total password grants by outcome.",
			},
			[]string{"outcome"},
		),
	}
	m.reg.MustRegister(
		m.RequestsTotal,
		m.RequestDurationSeconds,
		m.VersionConflictsTotal,
		m.LoginsTotal,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveRequest records one finished request.
func (m *Metrics) ObserveRequest(route, method string, code int, d time.Duration) {
	m.RequestsTotal.WithLabelValues(route, method, strconv.Itoa(code)).Inc()
	m.RequestDurationSeconds.WithLabelValues(route).Observe(d.Seconds())
}

// Login records a password grant outcome.
func (m *Metrics) Login(outcome string) { m.LoginsTotal.WithLabelValues(outcome).Inc() }

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}
