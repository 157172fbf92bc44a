package auth

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Timeout gate decisions.
const (
	GateDecisionExecuted   = "executed"
	GateDecisionSkipped    = "skipped"
	GateDecisionStoreError = "store_error"
)

// Metrics holds the counters for the authentication and timeout gates.
// A nil *Metrics records nothing.
type Metrics struct {
	gateOutcomes  *prometheus.CounterVec
	gateDecisions *prometheus.CounterVec
}

// NewMetrics creates unregistered counters.
func NewMetrics() *Metrics {
	return &Metrics{
		gateOutcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orgauth_gate_outcomes_total",
				Help: "Authentication gate outcomes by status.",
			},
			[]string{"status"},
		),
		gateDecisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orgauth_timeout_gate_decisions_total",
				Help: "Timeout gate decisions by kind.",
			},
			[]string{"decision"},
		),
	}
}

// Register adds the counters to reg.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{m.gateOutcomes, m.gateDecisions} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// GateOutcomes exposes the outcome counter.
func (m *Metrics) GateOutcomes() *prometheus.CounterVec {
	return m.gateOutcomes
}

// GateDecisions exposes the timeout gate counter.
func (m *Metrics) GateDecisions() *prometheus.CounterVec {
	return m.gateDecisions
}

func (m *Metrics) observeOutcome(status AuthStatus) {
	if m == nil {
		return
	}
	m.gateOutcomes.WithLabelValues(status.String()).Inc()
}

func (m *Metrics) observeDecision(decision string) {
	if m == nil {
		return
	}
	m.gateDecisions.WithLabelValues(decision).Inc()
}
