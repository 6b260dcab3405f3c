// Package metrics exposes Prometheus collectors for workflow operations and HTTP traffic.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"storeflow/internal/domain/approval"
	"storeflow/internal/domain/movement"
)

const namespace = "storeflow"

var _ approval.Observer = (*Metrics)(nil)

// Metrics owns a registry with the service collectors.
type Metrics struct {
	registry *prometheus.Registry

	operations        *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	httpRequests      *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
	outboxDelivered   prometheus.Counter
}

// New registers the collectors, plus Go runtime and process collectors, on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "movement_operations_total",
			Help:      "Movement workflow operations by kind, action and outcome code.",
		}, []string{"kind", "action", "outcome"}),
		operationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "movement_operation_duration_seconds",
			Help:      "Latency of movement workflow operations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind", "action"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method and route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		outboxDelivered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_delivered_total",
			Help:      "Outbox messages delivered by the relay.",
		}),
	}

	m.registry.MustRegister(
		m.operations,
		m.operationDuration,
		m.httpRequests,
		m.httpDuration,
		m.outboxDelivered,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveOperation records one workflow operation.
func (m *Metrics) ObserveOperation(kind movement.Kind, action movement.Action, outcome string, elapsed time.Duration) {
	m.operations.WithLabelValues(string(kind), string(action), outcome).Inc()
	m.operationDuration.WithLabelValues(string(kind), string(action)).Observe(elapsed.Seconds())
}

// ObserveHTTP records one HTTP request. route is the matched pattern, not the raw path.
func (m *Metrics) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	m.httpRequests.WithLabelValues(method, route, http.StatusText(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// OutboxDelivered adds n delivered outbox messages.
func (m *Metrics) OutboxDelivered(n int) {
	m.outboxDelivered.Add(float64(n))
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
