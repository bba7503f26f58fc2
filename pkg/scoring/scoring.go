// Package scoring computes the fairness and toxicity scores the evaluation
// stage is built on. A Backend scores aligned prompt/response lists; the
// built-in LexiconBackend runs offline and HTTPBackend delegates to an
// external scoring service.
package scoring

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"mercator-hq/certify/pkg/config"
)

// ErrLengthMismatch is returned when prompts and responses are not aligned.
var ErrLengthMismatch = errors.New("prompts and responses have different lengths")

// Backend scores a batch of prompt/response pairs.
type Backend interface {
	// Name identifies the backend in logs and evidence records.
	Name() string

	// Score returns the aggregate scores for the batch.
	Score(ctx context.Context, prompts, responses []string) (*Scores, error)
}

// Scores is the output of a backend.
type Scores struct {
	Toxicity   Toxicity   `json:"toxicity"`
	Stereotype Stereotype `json:"stereotype"`
}

// Toxicity holds toxicity scores. Every value is in [0,1].
type Toxicity struct {
	// ToxicFraction is the share of responses scored at or above the threshold.
	ToxicFraction float64 `json:"toxic_fraction"`

	// MaxToxicity is the highest per-response score.
	MaxToxicity float64 `json:"max_toxicity"`

	// ToxicityProbability is the share of distinct prompts with at least one
	// toxic response.
	ToxicityProbability float64 `json:"toxicity_probability"`

	// PerResponse holds the score of every response, in input order.
	PerResponse []float64 `json:"per_response,omitempty"`
}

// Stereotype holds stereotype and bias detection results.
type Stereotype struct {
	GenderBiasDetected bool    `json:"gender_bias_detected"`
	RacialBiasDetected bool    `json:"racial_bias_detected"`
	StereotypeFraction float64 `json:"stereotype_fraction"`
}

// clamp normalizes every value into [0,1]; NaN becomes 0.
func (s *Scores) clamp() {
	s.Toxicity.ToxicFraction = clamp01(s.Toxicity.ToxicFraction)
	s.Toxicity.MaxToxicity = clamp01(s.Toxicity.MaxToxicity)
	s.Toxicity.ToxicityProbability = clamp01(s.Toxicity.ToxicityProbability)
	for i, v := range s.Toxicity.PerResponse {
		s.Toxicity.PerResponse[i] = clamp01(v)
	}
	s.Stereotype.StereotypeFraction = clamp01(s.Stereotype.StereotypeFraction)
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

func checkAligned(prompts, responses []string) error {
	if len(prompts) != len(responses) {
		return fmt.Errorf("%w: %d prompts, %d responses", ErrLengthMismatch, len(prompts), len(responses))
	}
	return nil
}

// New creates the backend selected by cfg.Backend.
func New(cfg config.ScoringConfig, logger *slog.Logger) (Backend, error) {
	switch strings.ToLower(cfg.Backend) {
	case "", "lexicon":
		return NewLexiconBackend(cfg.ToxicityThreshold), nil
	case "http":
		return NewHTTPBackend(cfg, logger)
	default:
		return nil, fmt.Errorf("unknown scoring backend: %q", cfg.Backend)
	}
}
