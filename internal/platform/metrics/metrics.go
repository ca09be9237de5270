package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	OperationDuration   *prometheus.HistogramVec
	BatchTransitions    *prometheus.CounterVec
	RejectedTransitions *prometheus.CounterVec
	Confirmations       prometheus.Counter
	OptimizationFailed  *prometheus.CounterVec
	HTTPRequests        *prometheus.CounterVec
	HTTPDuration        *prometheus.HistogramVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		OperationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "delivery_operation_duration_seconds",
			Help:    "Duration of timed service operations.",
			Buckets: prometheus.DefBuckets,
		}, []string{"op", "outcome"}),
		BatchTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "delivery_batch_transitions_total",
			Help: "Accepted batch lifecycle transitions by target status.",
		}, []string{"status"}),
		RejectedTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "delivery_batch_transitions_rejected_total",
			Help: "Rejected batch lifecycle transitions by reason.",
		}, []string{"reason"}),
		Confirmations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "delivery_stop_confirmations_total",
			Help: "Stops confirmed as delivered.",
		}),
		OptimizationFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "delivery_route_optimization_failures_total",
			Help: "Route optimizations that fell back to the unoptimized stop order.",
		}, []string{"provider"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "delivery_http_requests_total",
			Help: "HTTP requests by route pattern, method and status.",
		}, []string{"route", "method", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "delivery_http_request_duration_seconds",
			Help:    "HTTP request latency by route pattern.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method"}),
	}

	reg.MustRegister(
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		m.OperationDuration,
		m.BatchTransitions,
		m.RejectedTransitions,
		m.Confirmations,
		m.OptimizationFailed,
		m.HTTPRequests,
		m.HTTPDuration,
	)

	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) ObserveOperation(op, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.OperationDuration.WithLabelValues(op, outcome).Observe(seconds)
}

func (m *Metrics) Transition(status string) {
	if m == nil {
		return
	}
	m.BatchTransitions.WithLabelValues(status).Inc()
}

func (m *Metrics) Rejected(reason string) {
	if m == nil {
		return
	}
	m.RejectedTransitions.WithLabelValues(reason).Inc()
}

func (m *Metrics) Confirmed() {
	if m == nil {
		return
	}
	m.Confirmations.Inc()
}

func (m *Metrics) OptimizationFailure(provider string) {
	if m == nil {
		return
	}
	m.OptimizationFailed.WithLabelValues(provider).Inc()
}

func (m *Metrics) ObserveHTTP(route, method, status string, seconds float64) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(route, method, status).Inc()
	m.HTTPDuration.WithLabelValues(route, method).Observe(seconds)
}
