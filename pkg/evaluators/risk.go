package evaluators

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"mercator-hq/certify/pkg/contract"
)

// RiskManagementEvaluator checks that the contract documents its risk
// management. context.risk_documentation may be free text, in which case
// each required section must be mentioned, or a mapping whose keys name
// the sections (spaces and underscores are interchangeable).
type RiskManagementEvaluator struct {
	required []string
	minScore float64
}

// NewRiskManagementEvaluator creates a risk management evaluator.
func NewRiskManagementEvaluator(cfg Config) *RiskManagementEvaluator {
	return &RiskManagementEvaluator{required: cfg.RiskRequiredSections, minScore: cfg.RiskMinScore}
}

// Name returns "risk_management".
func (e *RiskManagementEvaluator) Name() string { return "risk_management" }

// Evaluate implements Evaluator.
func (e *RiskManagementEvaluator) Evaluate(ctx context.Context, c *contract.Contract) (*Result, error) {
	doc, ok := c.Context["risk_documentation"]
	if !ok || doc == nil {
		return &Result{
			Name:      e.Name(),
			Compliant: false,
			Threshold: e.minScore,
			Reason:    "No risk documentation provided",
			Details: map[string]any{
				"found_sections":   []string{},
				"missing_sections": append([]string(nil), e.required...),
			},
		}, nil
	}

	var has func(section string) bool
	switch d := doc.(type) {
	case string:
		text := strings.ToLower(d)
		has = func(section string) bool {
			return strings.Contains(text, strings.ToLower(section))
		}
	case map[string]any:
		keys := make(map[string]bool, len(d))
		for k, v := range d {
			if isEmpty(v) {
				continue
			}
			keys[sectionKey(k)] = true
		}
		has = func(section string) bool {
			return keys[sectionKey(section)]
		}
	default:
		return nil, fmt.Errorf("unsupported risk_documentation type %T", doc)
	}

	found := []string{}
	missing := []string{}
	for _, section := range e.required {
		if has(section) {
			found = append(found, section)
		} else {
			missing = append(missing, section)
		}
	}
	sort.Strings(missing)

	score := 1.0
	if len(e.required) > 0 {
		score = float64(len(found)) / float64(len(e.required))
	}
	compliant := score >= e.minScore

	reason := "All required risk documentation sections present"
	if len(missing) > 0 {
		reason = fmt.Sprintf("Missing risk documentation sections: %s", strings.Join(missing, ", "))
	}

	return &Result{
		Name:      e.Name(),
		Compliant: compliant,
		Score:     score,
		Threshold: e.minScore,
		Reason:    reason,
		Details: map[string]any{
			"found_sections":   found,
			"missing_sections": missing,
		},
	}, nil
}

func sectionKey(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), " ", "_")
}

func isEmpty(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(val) == ""
	case []any:
		return len(val) == 0
	case map[string]any:
		return len(val) == 0
	default:
		return false
	}
}
