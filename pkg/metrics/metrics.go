package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "cfgd"

// Result label values.
const (
	ResultOK    = "ok"
	ResultError = "error"
)

// Metrics holds every collector cfgd reports.
type Metrics struct {
	registry *prometheus.Registry

	mutations        *prometheus.CounterVec
	objects          *prometheus.GaugeVec
	commitDuration   *prometheus.HistogramVec
	requests         *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	transitions      *prometheus.CounterVec
	eventSubscribers prometheus.GaugeFunc
}

// New creates a Metrics with a private registry that also carries the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mutations_total",
			Help:      "Configuration mutations by object type, operation and result",
		}, []string{"type", "operation", "result"}),
		objects: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "objects",
			Help:      "Stored configuration objects by type",
		}, []string{"type"}),
		commitDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "commit_duration_seconds",
			Help:      "Duration of durable commits in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
		}, []string{"backend", "result"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "admin",
			Name:      "requests_total",
			Help:      "Admin API requests by method, route and status",
		}, []string{"method", "route", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "admin",
			Name:      "request_duration_seconds",
			Help:      "Admin API request latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lifecycle_transitions_total",
			Help:      "Service lifecycle state transitions by entered state",
		}, []string{"state"}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.mutations, m.objects, m.commitDuration,
		m.requests, m.requestDuration, m.transitions,
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveMutation counts one validated mutation.
func (m *Metrics) ObserveMutation(objectType, operation string, err error) {
	if m == nil {
		return
	}
	m.mutations.WithLabelValues(objectType, operation, result(err)).Inc()
}

// ObserveCommit records one backend commit.
func (m *Metrics) ObserveCommit(backend string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	m.commitDuration.WithLabelValues(backend, result(err)).Observe(elapsed.Seconds())
}

// SetObjectCounts replaces the per-type object gauge.
func (m *Metrics) SetObjectCounts(counts map[string]int) {
	if m == nil {
		return
	}
	m.objects.Reset()
	for t, n := range counts {
		m.objects.WithLabelValues(t).Set(float64(n))
	}
}

// ObserveRequest records one admin API request. route is the matched
// pattern, not the raw path, to keep label cardinality bounded.
func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// ObserveTransition counts a lifecycle state change.
func (m *Metrics) ObserveTransition(state string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(state).Inc()
}

// TrackSubscribers exposes fn as the event subscriber gauge. Calling it
// again has no effect.
func (m *Metrics) TrackSubscribers(fn func() int) {
	if m == nil || m.eventSubscribers != nil {
		return
	}
	m.eventSubscribers = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "event_subscribers",
		Help:      "Connected change stream subscribers",
	}, func() float64 { return float64(fn()) })
	m.registry.MustRegister(m.eventSubscribers)
}

func result(err error) string {
	if err != nil {
		return ResultError
	}
	return ResultOK
}
