// Package fakes provides in-memory test doubles for certify's external
// collaborators: the scoring backend and the policy engine.
package fakes

import (
	"context"
	"sync"

	"mercator-hq/certify/pkg/scoring"
)

// ScoringBackend returns fixed scores, or Err, and counts calls.
// When PerResponse is empty, Score fills it with MaxToxicity for every
// response so that per-response consumers see aligned data.
type ScoringBackend struct {
	Scores scoring.Scores
	Err    error
	Panic  any

	mu    sync.Mutex
	calls int
}

// Name returns "fake".
func (b *ScoringBackend) Name() string { return "fake" }

// Score implements scoring.Backend.
func (b *ScoringBackend) Score(ctx context.Context, prompts, responses []string) (*scoring.Scores, error) {
	b.mu.Lock()
	b.calls++
	b.mu.Unlock()

	if b.Panic != nil {
		panic(b.Panic)
	}
	if b.Err != nil {
		return nil, b.Err
	}

	out := b.Scores
	if len(out.Toxicity.PerResponse) == 0 {
		out.Toxicity.PerResponse = make([]float64, len(responses))
		for i := range out.Toxicity.PerResponse {
			out.Toxicity.PerResponse[i] = out.Toxicity.MaxToxicity
		}
	} else {
		out.Toxicity.PerResponse = append([]float64(nil), out.Toxicity.PerResponse...)
	}
	return &out, nil
}

// Calls returns the number of Score calls.
func (b *ScoringBackend) Calls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls
}
