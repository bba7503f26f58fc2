package evaluators

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"mercator-hq/certify/pkg/config"
	"mercator-hq/certify/pkg/contract"
	"mercator-hq/certify/pkg/scoring"
	"mercator-hq/certify/pkg/telemetry/metrics"
)

// Available returns the names of the built-in evaluators, in default run order.
func Available() []string {
	return append([]string(nil), config.KnownEvaluators...)
}

// ComplianceEvaluator runs a configured set of evaluators in order.
type ComplianceEvaluator struct {
	evaluators []Evaluator
	logger     *slog.Logger
	metrics    *metrics.Collector
}

// NewComplianceEvaluator builds the evaluators named in names (all built-in
// evaluators when empty). Unknown names are kept and report a failed result
// when run.
func NewComplianceEvaluator(names []string, cfg Config, backend scoring.Backend, logger *slog.Logger, collector *metrics.Collector) *ComplianceEvaluator {
	if logger == nil {
		logger = slog.Default()
	}
	if len(names) == 0 {
		names = Available()
	}

	evs := make([]Evaluator, 0, len(names))
	for _, name := range names {
		evs = append(evs, Guard(build(strings.ToLower(strings.TrimSpace(name)), cfg, backend)))
	}

	return &ComplianceEvaluator{
		evaluators: evs,
		logger:     logger.With("component", "evaluators"),
		metrics:    collector,
	}
}

func build(name string, cfg Config, backend scoring.Backend) Evaluator {
	switch name {
	case "fairness":
		return NewFairnessEvaluator(backend, cfg)
	case "content_safety":
		return NewContentSafetyEvaluator(backend, cfg)
	case "risk_management":
		return NewRiskManagementEvaluator(cfg)
	default:
		return unknownEvaluator(name)
	}
}

// Names returns the configured evaluator names, in run order.
func (ce *ComplianceEvaluator) Names() []string {
	names := make([]string, len(ce.evaluators))
	for i, e := range ce.evaluators {
		names[i] = e.Name()
	}
	return names
}

// Evaluate runs every evaluator sequentially and returns one result per
// evaluator, in configured order.
func (ce *ComplianceEvaluator) Evaluate(ctx context.Context, c *contract.Contract) []*Result {
	results := make([]*Result, 0, len(ce.evaluators))
	for _, e := range ce.evaluators {
		r, _ := e.Evaluate(ctx, c)
		if msg := r.Error(); msg != "" {
			ce.logger.WarnContext(ctx, "evaluator failed",
				"evaluator", r.Name,
				"error", msg,
			)
		} else {
			ce.logger.DebugContext(ctx, "evaluator finished",
				"evaluator", r.Name,
				"compliant", r.Compliant,
				"score", r.Score,
			)
		}
		ce.metrics.RecordEvaluator(r.Name, r.Compliant)
		results = append(results, r)
	}
	return results
}

// IsCompliant reports whether every result is compliant. An empty result
// set is compliant.
func IsCompliant(results []*Result) bool {
	for _, r := range results {
		if r == nil || !r.Compliant {
			return false
		}
	}
	return true
}

type unknownEvaluator string

func (u unknownEvaluator) Name() string { return string(u) }

func (u unknownEvaluator) Evaluate(context.Context, *contract.Contract) (*Result, error) {
	return nil, fmt.Errorf("unknown evaluator %q: must be one of %s", string(u), strings.Join(Available(), ", "))
}
