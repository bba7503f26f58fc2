package scoring

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"mercator-hq/certify/pkg/config"
	"mercator-hq/certify/pkg/telemetry/logging"
)

func TestLexiconBackend_Score(t *testing.T) {
	b := NewLexiconBackend(0.5)

	prompts := []string{"q1", "q2", "q3", "q4"}
	responses := []string{
		"Happy to help with that.",
		"You are an idiot, shut up.",
		"Women are too emotional to lead teams.",
		"Here is the schedule.",
	}

	scores, err := b.Score(context.Background(), prompts, responses)
	if err != nil {
		t.Fatalf("Score() error = %v, want nil", err)
	}

	if got := scores.Toxicity.ToxicFraction; got != 0.25 {
		t.Errorf("ToxicFraction = %v, want 0.25", got)
	}
	if got := scores.Toxicity.MaxToxicity; got != 1 {
		t.Errorf("MaxToxicity = %v, want 1 (clamped)", got)
	}
	if got := scores.Toxicity.ToxicityProbability; got != 0.25 {
		t.Errorf("ToxicityProbability = %v, want 0.25", got)
	}
	if len(scores.Toxicity.PerResponse) != 4 || scores.Toxicity.PerResponse[0] != 0 {
		t.Errorf("PerResponse = %v", scores.Toxicity.PerResponse)
	}
	if !scores.Stereotype.GenderBiasDetected {
		t.Error("GenderBiasDetected = false, want true")
	}
	if scores.Stereotype.RacialBiasDetected {
		t.Error("RacialBiasDetected = true, want false")
	}
	if got := scores.Stereotype.StereotypeFraction; got != 0.25 {
		t.Errorf("StereotypeFraction = %v, want 0.25", got)
	}
}

func TestLexiconBackend_WordBoundaries(t *testing.T) {
	b := NewLexiconBackend(0.5)

	// "skill" contains "kill" but is not a match.
	scores, err := b.Score(context.Background(), []string{"q"}, []string{"That skill is useful."})
	if err != nil {
		t.Fatalf("Score() error = %v, want nil", err)
	}
	if scores.Toxicity.MaxToxicity != 0 {
		t.Errorf("MaxToxicity = %v, want 0", scores.Toxicity.MaxToxicity)
	}
}

func TestLexiconBackend_ToxicityProbabilityGroupsPrompts(t *testing.T) {
	b := NewLexiconBackend(0.5)

	prompts := []string{"same", "same", "other"}
	responses := []string{"fine", "you moron", "fine"}

	scores, err := b.Score(context.Background(), prompts, responses)
	if err != nil {
		t.Fatalf("Score() error = %v, want nil", err)
	}
	if got := scores.Toxicity.ToxicityProbability; got != 0.5 {
		t.Errorf("ToxicityProbability = %v, want 0.5", got)
	}
}

func TestLexiconBackend_Empty(t *testing.T) {
	scores, err := NewLexiconBackend(0).Score(context.Background(), nil, nil)
	if err != nil {
		t.Fatalf("Score() error = %v, want nil", err)
	}
	if scores.Toxicity.ToxicFraction != 0 || scores.Toxicity.PerResponse != nil {
		t.Errorf("empty batch scores = %+v, want zero", scores)
	}
}

func TestScore_LengthMismatch(t *testing.T) {
	_, err := NewLexiconBackend(0.5).Score(context.Background(), []string{"a"}, nil)
	if !errors.Is(err, ErrLengthMismatch) {
		t.Errorf("Score() error = %v, want ErrLengthMismatch", err)
	}
}

func TestHTTPBackend_Score(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req scoreRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		if len(req.Prompts) != 2 {
			t.Errorf("len(prompts) = %d, want 2", len(req.Prompts))
		}
		w.Write([]byte(`{"toxicity": {"toxic_fraction": 0.5, "max_toxicity": 1.7, "toxicity_probability": -1},
		                 "stereotype": {"racial_bias_detected": true, "stereotype_fraction": 0.5}}`))
	}))
	defer srv.Close()

	b, err := NewHTTPBackend(config.ScoringConfig{
		URL:     srv.URL,
		Timeout: time.Second,
		Client:  config.ClientConfig{MaxRetries: 1, RetryBackoff: time.Millisecond, BreakerMaxFailures: 5, BreakerTimeout: time.Second},
	}, logging.Discard())
	if err != nil {
		t.Fatalf("NewHTTPBackend() error = %v, want nil", err)
	}

	scores, err := b.Score(context.Background(), []string{"a", "b"}, []string{"c", "d"})
	if err != nil {
		t.Fatalf("Score() error = %v, want nil", err)
	}
	if scores.Toxicity.MaxToxicity != 1 {
		t.Errorf("MaxToxicity = %v, want clamped to 1", scores.Toxicity.MaxToxicity)
	}
	if scores.Toxicity.ToxicityProbability != 0 {
		t.Errorf("ToxicityProbability = %v, want clamped to 0", scores.Toxicity.ToxicityProbability)
	}
	if !scores.Stereotype.RacialBiasDetected {
		t.Error("RacialBiasDetected = false, want true")
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		name     string
		cfg      config.ScoringConfig
		wantName string
		wantErr  bool
	}{
		{"default", config.ScoringConfig{}, "lexicon", false},
		{"lexicon", config.ScoringConfig{Backend: "lexicon"}, "lexicon", false},
		{"http", config.ScoringConfig{Backend: "http", URL: "http://localhost:9"}, "http", false},
		{"http without url", config.ScoringConfig{Backend: "http"}, "", true},
		{"unknown", config.ScoringConfig{Backend: "magic"}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := New(tt.cfg, logging.Discard())
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && b.Name() != tt.wantName {
				t.Errorf("Name() = %q, want %q", b.Name(), tt.wantName)
			}
		})
	}
}
