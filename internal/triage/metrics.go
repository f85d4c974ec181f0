package triage

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts triage outcomes. A nil *Metrics records nothing.
type Metrics struct {
	outcomes *prometheus.CounterVec
	faults   *prometheus.CounterVec
	degraded prometheus.Counter
}

// NewMetrics creates the collectors and registers them with reg when it is
// not nil. Collectors already registered by an earlier call are reused.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		outcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "triage_outcomes_total",
				Help: "Failed checks by terminal outcome",
			},
			[]string{"outcome"},
		),
		faults: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "triage_fault_signals_total",
				Help: "Fault signals raised on failed checks, by chance",
			},
			[]string{"chance"},
		),
		degraded: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "triage_degraded_reports_total",
				Help: "Reports emitted without the stack trace they asked for",
			},
		),
	}
	if reg == nil {
		return m, nil
	}

	var err error
	m.outcomes, err = register(reg, m.outcomes)
	if err != nil {
		return nil, err
	}
	m.faults, err = register(reg, m.faults)
	if err != nil {
		return nil, err
	}
	m.degraded, err = register(reg, m.degraded)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

func (m *Metrics) recordOutcome(o Outcome) {
	if m == nil {
		return
	}
	m.outcomes.WithLabelValues(o.String()).Inc()
}

func (m *Metrics) recordFault(c Chance) {
	if m == nil {
		return
	}
	m.faults.WithLabelValues(c.String()).Inc()
}

func (m *Metrics) recordDegraded() {
	if m == nil {
		return
	}
	m.degraded.Inc()
}
