package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels recorded for ledger operations.
const (
	OutcomeOK                = "ok"
	OutcomeValidation        = "validation"
	OutcomeNotFound          = "not_found"
	OutcomeAlreadyResolved   = "already_resolved"
	OutcomeInsufficientFunds = "insufficient_funds"
	OutcomeError             = "error"
)

// Ledger groups the collectors recorded by the ledger engine.
type Ledger struct {
	registry            *prometheus.Registry
	operations          *prometheus.CounterVec
	duration            *prometheus.HistogramVec
	notificationFailure *prometheus.CounterVec
}

// New registers the ledger collectors plus the Go and process collectors on a
// private registry.
func New() *Ledger {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Ledger{
		registry: reg,
		operations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_operations_total",
				Help: "Total number of ledger operations by outcome",
			},
			[]string{"operation", "outcome"},
		),
		duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ledger_operation_duration_seconds",
				Help:    "Duration of ledger operations",
				Buckets: []float64{.001, .005, .01, .05, .1, .25, .5, 1, 2},
			},
			[]string{"operation"},
		),
		notificationFailure: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_notification_failures_total",
				Help: "Total number of notifications that could not be delivered",
			},
			[]string{"kind"},
		),
	}
}

// Registry exposes the registry for the /metrics handler.
func (m *Ledger) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Observe records one operation. A nil receiver is a no-op.
func (m *Ledger) Observe(operation, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(operation, outcome).Inc()
	m.duration.WithLabelValues(operation).Observe(elapsed.Seconds())
}

// NotificationFailed counts a failed notification delivery.
func (m *Ledger) NotificationFailed(kind string) {
	if m == nil {
		return
	}
	m.notificationFailure.WithLabelValues(kind).Inc()
}
