package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the engine's Prometheus instruments.
type Metrics struct {
	LeadsProcessed *prometheus.CounterVec
	Outcomes       *prometheus.CounterVec
	ErrorsTotal    *prometheus.CounterVec
	RunsTotal      *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	return &Metrics{
		LeadsProcessed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "leadscout_leads_processed_total",
			Help: "Leads pulled from site strategies, by source",
		}, []string{"source"}),
		Outcomes: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "leadscout_reconcile_outcomes_total",
			Help: "Reconciliation outcomes",
		}, []string{"outcome"}),
		ErrorsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "leadscout_errors_total",
			Help: "Errors encountered, by type",
		}, []string{"type"}), // e.g. 'extraction', 'reconcile'
		RunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "leadscout_runs_total",
			Help: "Crawl runs by terminal state",
		}, []string{"state"}),
	}
}

func (m *Metrics) IncLead(source string) {
	if m == nil {
		return
	}
	m.LeadsProcessed.WithLabelValues(source).Inc()
}

func (m *Metrics) IncOutcome(outcome string) {
	if m == nil {
		return
	}
	m.Outcomes.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncError(errType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(errType).Inc()
}

func (m *Metrics) IncRun(state string) {
	if m == nil {
		return
	}
	m.RunsTotal.WithLabelValues(state).Inc()
}
