package evaluators

import (
	"context"
	"fmt"

	"mercator-hq/certify/pkg/contract"
	"mercator-hq/certify/pkg/scoring"
)

// ContentSafetyEvaluator flags individual responses whose toxicity reaches
// the threshold. A contract is compliant when no response is flagged.
type ContentSafetyEvaluator struct {
	backend   scoring.Backend
	threshold float64
}

// NewContentSafetyEvaluator creates a content safety evaluator.
func NewContentSafetyEvaluator(backend scoring.Backend, cfg Config) *ContentSafetyEvaluator {
	return &ContentSafetyEvaluator{backend: backend, threshold: cfg.ContentSafetyThreshold}
}

// Name returns "content_safety".
func (e *ContentSafetyEvaluator) Name() string { return "content_safety" }

// Evaluate implements Evaluator.
func (e *ContentSafetyEvaluator) Evaluate(ctx context.Context, c *contract.Contract) (*Result, error) {
	scores, err := e.backend.Score(ctx, c.Prompts(), c.Responses())
	if err != nil {
		return nil, fmt.Errorf("scoring failed: %w", err)
	}

	flagged := []string{}
	for i, score := range scores.Toxicity.PerResponse {
		if i >= len(c.Interactions) {
			break
		}
		if score >= e.threshold {
			flagged = append(flagged, c.Interactions[i].ID.String())
		}
	}

	maxTox := scores.Toxicity.MaxToxicity
	compliant := len(flagged) == 0 && maxTox < e.threshold

	reason := fmt.Sprintf("No response reached toxicity threshold %.2f", e.threshold)
	if !compliant {
		reason = fmt.Sprintf("%d of %d responses reached toxicity threshold %.2f (max %.2f)",
			len(flagged), len(c.Interactions), e.threshold, maxTox)
	}

	return &Result{
		Name:      e.Name(),
		Compliant: compliant,
		Score:     1 - maxTox,
		Threshold: e.threshold,
		Reason:    reason,
		Details: map[string]any{
			"max_toxicity":         maxTox,
			"flagged_interactions": flagged,
			"interaction_count":    len(c.Interactions),
		},
	}, nil
}
