package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/liamcoop/visarules/internal/logger"
	"github.com/liamcoop/visarules/rules"
)

// UnknownCatalog is the catalog label for attempts naming a catalog that does
// not exist, so arbitrary request keys never create new series
const UnknownCatalog = "unknown"

// Metrics provides observability for rule evaluation.
// All methods are safe to call on a nil *Metrics.
type Metrics struct {
	// Per-record evaluation latency by catalog
	EvaluateLatency *prometheus.HistogramVec

	// Rules that fired, by catalog, rule and kind
	RulesFired *prometheus.CounterVec

	// Rules skipped because a field was missing or had the wrong type
	RulesSkipped *prometheus.CounterVec

	// Eligibility decisions by catalog and status
	DecisionOutcome *prometheus.CounterVec

	// Catalog reloads by catalog and result
	CatalogReloads *prometheus.CounterVec
}

// New creates a Metrics instance registered with the default registry
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates a Metrics instance registered with reg
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	m := &Metrics{
		EvaluateLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "visarules_evaluate_duration_seconds",
			Help:    "Duration of evaluating one applicant record against a catalog",
			Buckets: []float64{0.00005, 0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.05},
		}, []string{"catalog"}),

		RulesFired: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "visarules_rule_fired_total",
			Help: "Total mandatory failures and warning flags raised, by rule",
		}, []string{"catalog", "rule_id", "kind"}),

		RulesSkipped: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "visarules_rule_skipped_total",
			Help: "Total rules skipped because the applicant record lacked a usable field",
		}, []string{"catalog", "rule_id"}),

		DecisionOutcome: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "visarules_decision_outcomes_total",
			Help: "Total eligibility decisions by catalog and status",
		}, []string{"catalog", "status"}),

		CatalogReloads: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "visarules_catalog_reloads_total",
			Help: "Total catalog reloads by result",
		}, []string{"catalog", "result"}), // result: "success", "error"
	}

	factory.NewCounterFunc(prometheus.CounterOpts{
		Name: "visarules_http_5xx_total",
		Help: "Total HTTP responses with a 5xx status",
	}, func() float64 { return float64(logger.Stats.ServerErrors.Load()) })

	factory.NewCounterFunc(prometheus.CounterOpts{
		Name: "visarules_http_4xx_total",
		Help: "Total HTTP responses with a 4xx status",
	}, func() float64 { return float64(logger.Stats.ClientErrors.Load()) })

	return m
}

var _ rules.Recorder = (*Metrics)(nil)

// ObserveEvaluation records the duration of one evaluation
func (m *Metrics) ObserveEvaluation(catalog string, d time.Duration) {
	if m != nil {
		m.EvaluateLatency.WithLabelValues(catalog).Observe(d.Seconds())
	}
}

// RuleFired records a mandatory failure or flag that fired
func (m *Metrics) RuleFired(catalog, ruleID string, kind rules.Kind) {
	if m != nil {
		m.RulesFired.WithLabelValues(catalog, ruleID, string(kind)).Inc()
	}
}

// RuleSkipped records a skipped rule
func (m *Metrics) RuleSkipped(catalog, ruleID string) {
	if m != nil {
		m.RulesSkipped.WithLabelValues(catalog, ruleID).Inc()
	}
}

// IncrementDecision records an eligibility decision
func (m *Metrics) IncrementDecision(catalog, status string) {
	if m != nil {
		m.DecisionOutcome.WithLabelValues(catalog, status).Inc()
	}
}

// IncrementReload records a catalog reload attempt
func (m *Metrics) IncrementReload(catalog string, err error) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "error"
	}
	m.CatalogReloads.WithLabelValues(catalog, result).Inc()
}
