package metrics

import (
	"time"

	"mercator-hq/certify/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// RunMetrics tracks pipeline runs and their stages.
//
// Metrics:
//   - certify_runs_total: Runs by entry point and status
//   - certify_stage_duration_seconds: Stage durations by stage name
//   - certify_stage_failures_total: Stage failures by stage name
//   - certify_evaluator_results_total: Compliance evaluator results
//   - certify_reports_total: Report files written by format and status
type RunMetrics struct {
	runsTotal        *prometheus.CounterVec
	stageDuration    *prometheus.HistogramVec
	stageFailures    *prometheus.CounterVec
	evaluatorResults *prometheus.CounterVec
	reportsTotal     *prometheus.CounterVec
}

// NewRunMetrics creates and registers run metrics with the provided registry.
func NewRunMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *RunMetrics {
	rm := &RunMetrics{
		runsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "runs_total",
				Help:      "Total number of evaluation runs",
			},
			[]string{"entry", "status"},
		),

		stageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Name:      "stage_duration_seconds",
				Help:      "Duration of pipeline stages in seconds",
				Buckets:   cfg.StageDurationBuckets,
			},
			[]string{"stage"},
		),

		stageFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "stage_failures_total",
				Help:      "Total number of failed pipeline stages",
			},
			[]string{"stage"},
		),

		evaluatorResults: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "evaluator_results_total",
				Help:      "Total number of compliance evaluator results",
			},
			[]string{"evaluator", "compliant"},
		),

		reportsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "reports_total",
				Help:      "Total number of report files produced",
			},
			[]string{"format", "status"},
		),
	}

	registry.MustRegister(
		rm.runsTotal,
		rm.stageDuration,
		rm.stageFailures,
		rm.evaluatorResults,
		rm.reportsTotal,
	)

	return rm
}

// RecordRun records a finished run. status is "ok" or "degraded".
func (rm *RunMetrics) RecordRun(entry, status string) {
	rm.runsTotal.WithLabelValues(entry, status).Inc()
}

// RecordStage records a stage duration and, when failed, a stage failure.
func (rm *RunMetrics) RecordStage(stage string, duration time.Duration, failed bool) {
	rm.stageDuration.WithLabelValues(stage).Observe(duration.Seconds())
	if failed {
		rm.stageFailures.WithLabelValues(stage).Inc()
	}
}

// RecordEvaluator records one compliance evaluator result.
func (rm *RunMetrics) RecordEvaluator(name string, compliant bool) {
	rm.evaluatorResults.WithLabelValues(name, boolLabel(compliant)).Inc()
}

// RecordReport records one report output. status is "written", "skipped" or "failed".
func (rm *RunMetrics) RecordReport(format, status string) {
	rm.reportsTotal.WithLabelValues(format, status).Inc()
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
