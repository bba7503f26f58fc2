package metrics

import (
	"time"

	"mercator-hq/certify/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// PolicyMetrics tracks metrics related to policy dispatch.
//
// Metrics:
//   - certify_policy_outcomes_total: Rule outcomes by category and result
//   - certify_policy_evaluation_duration_seconds: Engine time per rule
//   - certify_policy_empty_dispatch_total: Dispatches that resolved to zero rules
type PolicyMetrics struct {
	outcomesTotal      *prometheus.CounterVec
	evaluationDuration *prometheus.HistogramVec
	emptyTotal         *prometheus.CounterVec
}

// NewPolicyMetrics creates and registers policy metrics with the provided registry.
func NewPolicyMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *PolicyMetrics {
	pm := &PolicyMetrics{
		outcomesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "policy_outcomes_total",
				Help:      "Total number of policy rule outcomes",
			},
			[]string{"category", "result"},
		),

		evaluationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Name:      "policy_evaluation_duration_seconds",
				Help:      "Duration of a single policy rule evaluation in seconds",
				// opa eval subprocesses dominate: 5ms to ~20s
				Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
			},
			[]string{"category"},
		),

		emptyTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "policy_empty_dispatch_total",
				Help:      "Total number of dispatches that resolved to no policies",
			},
			[]string{"mode"},
		),
	}

	registry.MustRegister(
		pm.outcomesTotal,
		pm.evaluationDuration,
		pm.emptyTotal,
	)

	return pm
}

// RecordOutcome records a single rule outcome.
//
// Parameters:
//   - category: Top-level policy category (e.g., "eu_ai_act")
//   - result: "pass", "fail" or "error"
//   - duration: Time the engine took for this rule
//
// Example:
//
//	pm.RecordOutcome("eu_ai_act", "pass", 120*time.Millisecond)
func (pm *PolicyMetrics) RecordOutcome(category, result string, duration time.Duration) {
	pm.outcomesTotal.WithLabelValues(category, result).Inc()
	pm.evaluationDuration.WithLabelValues(category).Observe(duration.Seconds())
}

// RecordEmptyDispatch records a dispatch that matched no rule files.
// mode is "category" or "folder".
func (pm *PolicyMetrics) RecordEmptyDispatch(mode string) {
	pm.emptyTotal.WithLabelValues(mode).Inc()
}
