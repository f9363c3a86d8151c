// Package metrics exposes Prometheus instruments for the relay: classified
// updates, relay outcomes, notification delivery and detached work in flight.
// All methods are nil-safe so components can run without metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "tgrelay"

// Collector aggregates the relay's counters, gauges and histograms.
type Collector struct {
	registry *prometheus.Registry

	updatesTotal       *prometheus.CounterVec
	relaysTotal        *prometheus.CounterVec
	notificationsTotal *prometheus.CounterVec
	relayDuration      prometheus.Histogram
	stagedBytes        prometheus.Histogram
	inFlight           prometheus.Gauge
	taskPanics         prometheus.Counter
}

// New creates a collector backed by its own registry, with Go and process
// collectors attached.
func New() *Collector {
	reg := prometheus.NewRegistry()
	c := &Collector{
		registry: reg,
		updatesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "updates_total",
			Help:      "Inbound updates by classification",
		}, []string{"route"}),
		relaysTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "relays_total",
			Help:      "Completed relay invocations by outcome and failing stage",
		}, []string{"outcome", "stage"}),
		notificationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Status notifications sent to conversations",
		}, []string{"status"}),
		relayDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "relay_duration_seconds",
			Help:      "Wall time of one relay invocation",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		}),
		stagedBytes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "staged_file_bytes",
			Help:      "Size of files staged on local storage",
			Buckets:   prometheus.ExponentialBuckets(1<<20, 2, 8),
		}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tasks_in_flight",
			Help:      "Detached update tasks currently running",
		}),
		taskPanics: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "task_panics_total",
			Help:      "Detached tasks that panicked and were recovered",
		}),
	}
	reg.MustRegister(
		c.updatesTotal, c.relaysTotal, c.notificationsTotal,
		c.relayDuration, c.stagedBytes, c.inFlight, c.taskPanics,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// Registry returns the underlying registry (used by tests to gather values).
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// Handler renders the registry in Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func (c *Collector) ObserveUpdate(route string) {
	if c == nil {
		return
	}
	c.updatesTotal.WithLabelValues(route).Inc()
}

func (c *Collector) ObserveRelay(outcome, stage string, seconds float64) {
	if c == nil {
		return
	}
	c.relaysTotal.WithLabelValues(outcome, stage).Inc()
	c.relayDuration.Observe(seconds)
}

func (c *Collector) ObserveNotification(delivered bool) {
	if c == nil {
		return
	}
	status := "sent"
	if !delivered {
		status = "failed"
	}
	c.notificationsTotal.WithLabelValues(status).Inc()
}

func (c *Collector) ObserveStagedBytes(n int64) {
	if c == nil {
		return
	}
	c.stagedBytes.Observe(float64(n))
}

func (c *Collector) TaskStarted() {
	if c == nil {
		return
	}
	c.inFlight.Inc()
}

func (c *Collector) TaskDone() {
	if c == nil {
		return
	}
	c.inFlight.Dec()
}

func (c *Collector) TaskPanicked() {
	if c == nil {
		return
	}
	c.taskPanics.Inc()
}
