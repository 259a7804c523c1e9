package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the prometheus collectors exported on the metrics endpoint.
type Metrics struct {
	requests      *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	errors        *prometheus.CounterVec
	sagaOutcomes  *prometheus.CounterVec
	compensations *prometheus.CounterVec
	guardRejects  *prometheus.CounterVec
	orphansSwept  prometheus.Counter
}

// NewMetrics registers the collectors on registerer, or the default registerer when nil.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "accounts_http_requests_total",
			Help: "HTTP requests by route, method and status.",
		}, []string{"route", "method", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "accounts_http_request_duration_seconds",
			Help:    "HTTP request latency by route and method.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"route", "method"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "accounts_domain_errors_total",
			Help: "Errors rendered to callers by domain code.",
		}, []string{"route", "method", "code"}),
		sagaOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "accounts_provisioning_outcomes_total",
			Help: "Provisioning runs by variant and outcome code.",
		}, []string{"variant", "outcome"}),
		compensations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "accounts_compensations_total",
			Help: "Compensating actions by step and result.",
		}, []string{"step", "result"}),
		guardRejects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "accounts_guard_rejections_total",
			Help: "Requests refused by the request guard by reason.",
		}, []string{"reason"}),
		orphansSwept: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "accounts_orphaned_identities_swept_total",
			Help: "Identities without a profile removed by the reconciler.",
		}),
	}

	registerer.MustRegister(
		m.requests,
		m.duration,
		m.errors,
		m.sagaOutcomes,
		m.compensations,
		m.guardRejects,
		m.orphansSwept,
	)
	return m
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(route, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.duration.WithLabelValues(route, method).Observe(duration.Seconds())
}

// RecordError increments error counters.
func (m *Metrics) RecordError(route, method, code string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(route, method, code).Inc()
}

// SagaOutcome counts one provisioning run.
func (m *Metrics) SagaOutcome(variant, outcome string) {
	if m == nil {
		return
	}
	m.sagaOutcomes.WithLabelValues(variant, outcome).Inc()
}

// Compensation counts one compensating action.
func (m *Metrics) Compensation(step string, ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "failed"
	}
	m.compensations.WithLabelValues(step, result).Inc()
}

// GuardRejected counts one guard refusal.
func (m *Metrics) GuardRejected(reason string) {
	if m == nil {
		return
	}
	m.guardRejects.WithLabelValues(reason).Inc()
}

// OrphanSwept counts one reconciled identity.
func (m *Metrics) OrphanSwept() {
	if m == nil {
		return
	}
	m.orphansSwept.Inc()
}
