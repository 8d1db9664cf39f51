package reconcile

import "github.com/prometheus/client_golang/prometheus"

// Metrics counts reconciliation outcomes.
type Metrics struct {
	OutcomesTotal *prometheus.CounterVec
	StoreErrors   *prometheus.CounterVec
}

// NewMetrics registers the reconcile collectors on registry.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	outcomes := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reconcile_outcomes_total",
			Help: "Reconciled items by outcome.",
		},
		[]string{"status"},
	)
	storeErrors := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reconcile_store_errors_total",
			Help: "Store failures by type.",
		},
		[]string{"error_type"},
	)
	if registry != nil {
		registry.MustRegister(outcomes, storeErrors)
	}
	return &Metrics{OutcomesTotal: outcomes, StoreErrors: storeErrors}
}

func (m *Metrics) observe(outcome Outcome) {
	if m == nil {
		return
	}
	m.OutcomesTotal.WithLabelValues(string(outcome.Status)).Inc()
	if outcome.Err == nil {
		return
	}
	switch {
	case IsConflict(outcome.Err):
		m.StoreErrors.WithLabelValues("conflict").Inc()
	case IsRetryable(outcome.Err):
		m.StoreErrors.WithLabelValues("unavailable").Inc()
	default:
		m.StoreErrors.WithLabelValues("other").Inc()
	}
}

// observeRejected counts an item refused before any store call.
func (m *Metrics) observeRejected() {
	if m == nil {
		return
	}
	m.OutcomesTotal.WithLabelValues(string(StatusError)).Inc()
}
