// Package metrics exposes engine counters to Prometheus.
//
// Metrics implements both item.Metrics and scheduler.Metrics, so one value
// is passed to the item tree and the scheduler. Collectors live on their
// own registry; Handler serves it.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nerrad567/gray-logic-items/internal/item"
)

const namespace = "graylogic_items"

// Metrics holds the Prometheus collectors.
type Metrics struct {
	registry *prometheus.Registry

	commits        *prometheus.CounterVec
	rejects        *prometheus.CounterVec
	callbackErrors *prometheus.CounterVec
	fadesActive    prometheus.Gauge
	fadesFinished  *prometheus.CounterVec
	queueDepth     prometheus.Gauge
	jobsDropped    *prometheus.CounterVec
	jobsPanicked   *prometheus.CounterVec
	wsClients      prometheus.Gauge
}

var _ item.Metrics = (*Metrics)(nil)

// New creates and registers every collector, plus the Go runtime and
// process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		commits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commits_total",
			Help:      "Committed item values by caller kind.",
		}, []string{"caller"}),
		rejects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rejected_total",
			Help:      "Values rejected by an item's type.",
		}, []string{"item"}),
		callbackErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "callback_errors_total",
			Help:      "Plugin callbacks that failed or panicked.",
		}, []string{"item"}),
		fadesActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "fades_active",
			Help:      "Fades currently running.",
		}),
		fadesFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fades_finished_total",
			Help:      "Finished fades by outcome.",
		}, []string{"outcome"}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "queue_depth",
			Help:      "Jobs waiting in the dispatch queue.",
		}),
		jobsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "jobs_dropped_total",
			Help:      "Jobs dropped because the queue was full.",
		}, []string{"job"}),
		jobsPanicked: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "jobs_panicked_total",
			Help:      "Jobs that panicked.",
		}, []string{"job"}),
		wsClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "clients",
			Help:      "Connected websocket clients.",
		}),
	}

	m.registry.MustRegister(
		m.commits, m.rejects, m.callbackErrors,
		m.fadesActive, m.fadesFinished,
		m.queueDepth, m.jobsDropped, m.jobsPanicked,
		m.wsClients,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Committed implements item.Metrics. Paths are not used as labels on this
// counter to keep its cardinality bounded by the caller kinds.
func (m *Metrics) Committed(_ string, caller item.CallerKind) {
	m.commits.WithLabelValues(string(caller)).Inc()
}

// Rejected implements item.Metrics.
func (m *Metrics) Rejected(path string) { m.rejects.WithLabelValues(path).Inc() }

// CallbackFailed implements item.Metrics.
func (m *Metrics) CallbackFailed(path string) { m.callbackErrors.WithLabelValues(path).Inc() }

// FadeStarted implements item.Metrics.
func (m *Metrics) FadeStarted(string) { m.fadesActive.Inc() }

// FadeFinished implements item.Metrics.
func (m *Metrics) FadeFinished(_ string, outcome string) {
	m.fadesActive.Dec()
	m.fadesFinished.WithLabelValues(outcome).Inc()
}

// QueueDepth implements scheduler.Metrics.
func (m *Metrics) QueueDepth(n int) { m.queueDepth.Set(float64(n)) }

// JobDropped implements scheduler.Metrics.
func (m *Metrics) JobDropped(name string) { m.jobsDropped.WithLabelValues(name).Inc() }

// JobPanicked implements scheduler.Metrics.
func (m *Metrics) JobPanicked(name string) { m.jobsPanicked.WithLabelValues(name).Inc() }

// WebSocketClients records the number of connected websocket clients.
func (m *Metrics) WebSocketClients(n int) { m.wsClients.Set(float64(n)) }
