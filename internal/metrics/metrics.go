// Package metrics exposes Prometheus metrics for plugin runs and the API.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "plugkit"

// Collector owns a private registry and the host's metric vectors.
type Collector struct {
	registry *prometheus.Registry

	RunsTotal       *prometheus.CounterVec
	RunDuration     *prometheus.HistogramVec
	ActiveRuns      *prometheus.GaugeVec
	LogRecords      *prometheus.CounterVec
	ProtocolErrors  *prometheus.CounterVec
	HTTPRequests    *prometheus.CounterVec
	HTTPRequestTime *prometheus.HistogramVec
}

// New creates a Collector with its own registry, including Go runtime and
// process collectors.
func New() *Collector {
	reg := prometheus.NewRegistry()
	c := &Collector{
		registry: reg,
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Plugin runs by outcome.",
		}, []string{"plugin", "task", "status"}),
		RunDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall-clock duration of plugin runs.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900},
		}, []string{"plugin", "task"}),
		ActiveRuns: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_runs",
			Help:      "Plugin runs currently in progress.",
		}, []string{"plugin"}),
		LogRecords: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "log_records_total",
			Help:      "Log records received from plugins by level.",
		}, []string{"plugin", "level"}),
		ProtocolErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "protocol_errors_total",
			Help:      "Runs whose stdout could not be decoded as a result payload.",
		}, []string{"plugin"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "API requests by route and status code.",
		}, []string{"method", "route", "status_code"}),
		HTTPRequestTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "API request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		c.RunsTotal,
		c.RunDuration,
		c.ActiveRuns,
		c.LogRecords,
		c.ProtocolErrors,
		c.HTTPRequests,
		c.HTTPRequestTime,
	)
	return c
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// RunStarted marks a run in progress and returns a function that records its
// outcome.
func (c *Collector) RunStarted(plugin, task string) func(status string) {
	start := time.Now()
	c.ActiveRuns.WithLabelValues(plugin).Inc()
	return func(status string) {
		c.ActiveRuns.WithLabelValues(plugin).Dec()
		c.RunsTotal.WithLabelValues(plugin, task, status).Inc()
		c.RunDuration.WithLabelValues(plugin, task).Observe(time.Since(start).Seconds())
	}
}

// LogRecord counts one record received from a plugin.
func (c *Collector) LogRecord(plugin, level string) {
	c.LogRecords.WithLabelValues(plugin, level).Inc()
}

// ProtocolError counts a run with an undecodable result.
func (c *Collector) ProtocolError(plugin string) {
	c.ProtocolErrors.WithLabelValues(plugin).Inc()
}

// ObserveHTTP records one served API request.
func (c *Collector) ObserveHTTP(method, route string, status int, d time.Duration) {
	c.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.HTTPRequestTime.WithLabelValues(method, route).Observe(d.Seconds())
}
