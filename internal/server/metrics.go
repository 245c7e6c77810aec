package server

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/fraiseql/specql-sub006/internal/registry"
)

// Metrics provides observability for the coordinator. It also receives
// allocator outcomes as an allocator.Observer.
type Metrics struct {
	// Issued codes by counter scope
	Allocations *prometheus.CounterVec

	// Failed allocations by counter scope and error code
	Failures *prometheus.CounterVec

	// Request latency by route pattern, method and status
	RequestDuration *prometheus.HistogramVec
}

// NewMetrics registers the coordinator metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Allocations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "specql_allocations_total",
			Help: "Codes issued by counter scope",
		}, []string{"scope"}),

		Failures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "specql_allocation_failures_total",
			Help: "Failed allocations by counter scope and error code",
		}, []string{"scope", "reason"}),

		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "specql_http_request_duration_seconds",
			Help:    "Duration of coordinator HTTP requests",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"route", "method", "status"}),
	}
}

// Allocated counts an issued code.
func (m *Metrics) Allocated(scope registry.Scope, _ string) {
	if m != nil {
		m.Allocations.WithLabelValues(string(scope)).Inc()
	}
}

// Failed counts a failed allocation.
func (m *Metrics) Failed(scope registry.Scope, err error) {
	if m != nil {
		_, code := classify(err)
		m.Failures.WithLabelValues(string(scope), code).Inc()
	}
}

// ObserveRequest records the duration of one request.
func (m *Metrics) ObserveRequest(route, method, status string, d time.Duration) {
	if m != nil {
		m.RequestDuration.WithLabelValues(route, method, status).Observe(d.Seconds())
	}
}
