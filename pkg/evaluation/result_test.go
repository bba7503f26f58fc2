package evaluation

import (
	"encoding/json"
	"reflect"
	"testing"

	"mercator-hq/certify/pkg/scoring"
)

func TestNormalize_Nil(t *testing.T) {
	r := Normalize(nil)

	if r.Metrics.Toxicity != (ToxicityMetrics{}) {
		t.Errorf("Toxicity = %+v, want zero", r.Metrics.Toxicity)
	}
	if r.Evaluation != (Flat{}) {
		t.Errorf("Evaluation = %+v, want zero", r.Evaluation)
	}

	m := r.Map()
	for _, key := range []string{"metrics", "summary", "evaluation"} {
		if _, ok := m[key]; !ok {
			t.Errorf("Map() missing %q", key)
		}
	}
	if _, ok := m["application_name"]; ok {
		t.Error("Map() should omit an empty application_name")
	}
}

func TestNormalize_Coercion(t *testing.T) {
	raw := map[string]any{
		"app_name": "CareerCoachAI",
		"metrics": map[string]any{
			"toxicity": map[string]any{
				"toxic_fraction":       "0.25",
				"max_toxicity":         json.Number("0.8"),
				"toxicity_probability": []string{"not", "a", "number"},
			},
			"counterfactual": map[string]any{
				"cosine":  3,
				"label":   "ok",
				"nested":  map[string]any{"x": 1},
				"samples": []float64{1, 2},
			},
			"broken": "value",
		},
		"summary": map[string]any{
			"stereotype_values": map[string]any{
				"gender_bias_detected": "true",
				"racial_bias_detected": 1,
			},
		},
	}

	r := Normalize(raw)

	if r.ApplicationName != "CareerCoachAI" {
		t.Errorf("ApplicationName = %q, want app_name fallback", r.ApplicationName)
	}
	want := ToxicityMetrics{ToxicFraction: 0.25, MaxToxicity: 0.8}
	if r.Metrics.Toxicity != want {
		t.Errorf("Toxicity = %+v, want %+v", r.Metrics.Toxicity, want)
	}
	if r.Summary.ToxicityValues != want {
		t.Errorf("Summary.ToxicityValues = %+v, want mirror of metrics", r.Summary.ToxicityValues)
	}
	if !r.Summary.StereotypeValues.GenderBiasDetected {
		t.Error("GenderBiasDetected = false, want true from string")
	}
	if r.Summary.StereotypeValues.RacialBiasDetected {
		t.Error("RacialBiasDetected = true, want false for non-bool")
	}

	wantGroup := map[string]any{"cosine": 3.0, "label": "ok"}
	if got := r.Metrics.Groups["counterfactual"]; !reflect.DeepEqual(got, wantGroup) {
		t.Errorf("counterfactual group = %v, want %v", got, wantGroup)
	}
	if _, ok := r.Metrics.Groups["broken"]; ok {
		t.Error("non-map group should be dropped")
	}
	if names := r.GroupNames(); !reflect.DeepEqual(names, []string{"counterfactual"}) {
		t.Errorf("GroupNames() = %v", names)
	}

	wantFlat := Flat{ToxicityScore: 0.8, ToxicFraction: 0.25, GenderBiasDetected: true}
	if r.Evaluation != wantFlat {
		t.Errorf("Evaluation = %+v, want %+v", r.Evaluation, wantFlat)
	}
}

func TestNormalize_BackfillFromSummary(t *testing.T) {
	raw := map[string]any{
		"summary": map[string]any{
			"toxicity_values": map[string]any{"max_toxicity": 0.4, "toxic_fraction": 0.1},
		},
	}

	r := Normalize(raw)
	if r.Metrics.Toxicity.MaxToxicity != 0.4 {
		t.Errorf("MaxToxicity = %v, want 0.4 back-filled from summary", r.Metrics.Toxicity.MaxToxicity)
	}
	if r.Evaluation.ToxicityScore != 0.4 {
		t.Errorf("ToxicityScore = %v, want 0.4", r.Evaluation.ToxicityScore)
	}
}

func TestNormalize_MetricsAuthoritative(t *testing.T) {
	raw := map[string]any{
		"metrics": map[string]any{"toxicity": map[string]any{"max_toxicity": 0.9}},
		"summary": map[string]any{"toxicity_values": map[string]any{"max_toxicity": 0.1}},
		"evaluation": map[string]any{
			"toxicity_score": 0.0,
		},
	}

	r := Normalize(raw)
	if r.Summary.ToxicityValues.MaxToxicity != 0.9 {
		t.Errorf("summary max_toxicity = %v, want 0.9 from metrics", r.Summary.ToxicityValues.MaxToxicity)
	}
	if r.Evaluation.ToxicityScore != 0.9 {
		t.Errorf("ToxicityScore = %v, want recomputed 0.9", r.Evaluation.ToxicityScore)
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	tests := []struct {
		name string
		raw  map[string]any
	}{
		{name: "nil", raw: nil},
		{
			name: "identifiers",
			raw:  map[string]any{"application_name": "A", "contract_id": "c-1", "interaction_count": 3},
		},
		{
			name: "from scores",
			raw: FromScores(&scoring.Scores{
				Toxicity:   scoring.Toxicity{ToxicFraction: 0.5, MaxToxicity: 0.7, ToxicityProbability: 0.5},
				Stereotype: scoring.Stereotype{RacialBiasDetected: true, StereotypeFraction: 0.25},
			}),
		},
		{name: "huge count", raw: map[string]any{"interaction_count": 1e20}},
		{name: "huge count string", raw: map[string]any{"interaction_count": "1e300"}},
		{name: "negative count", raw: map[string]any{"interaction_count": -4}},
		{name: "fractional count", raw: map[string]any{"interaction_count": 2.7}},
		{name: "nan count", raw: map[string]any{"interaction_count": "NaN"}},
		{
			name: "wrong-typed groups",
			raw: map[string]any{
				"metrics": map[string]any{"toxicity": "high", "stereotype": []any{1, 2}, "counterfactual": 7},
				"summary": "none",
			},
		},
		{
			name: "numeric strings",
			raw: map[string]any{
				"interaction_count": "12",
				"metrics": map[string]any{
					"toxicity":       map[string]any{"max_toxicity": "0.3", "toxic_fraction": " 0.1 "},
					"counterfactual": map[string]any{"cosine": "0.9", "inf": "+Inf", "nan": "NaN"},
				},
			},
		},
		{
			name: "null leaves",
			raw: map[string]any{
				"application_name":  nil,
				"contract_id":       nil,
				"interaction_count": nil,
				"metrics": map[string]any{
					"toxicity":   map[string]any{"max_toxicity": nil},
					"stereotype": map[string]any{"stereotype_fraction": nil},
				},
				"summary": map[string]any{"stereotype_values": nil},
			},
		},
		{
			name: "null toxicity with summary values",
			raw: map[string]any{
				"metrics": map[string]any{"toxicity": nil},
				"summary": map[string]any{"toxicity_values": map[string]any{"max_toxicity": 0.6}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			first := Normalize(tt.raw)
			second := Normalize(first.Map())
			if !reflect.DeepEqual(first, second) {
				t.Errorf("Normalize is not idempotent:\n first = %+v\nsecond = %+v", first, second)
			}
			if first.InteractionCount < 0 {
				t.Errorf("InteractionCount = %d, want >= 0", first.InteractionCount)
			}
		})
	}
}

func TestNormalize_InteractionCount(t *testing.T) {
	tests := []struct {
		in   any
		want int
	}{
		{in: 3, want: 3},
		{in: "12", want: 12},
		{in: 2.7, want: 2},
		{in: 0.5, want: 0},
		{in: -4, want: 0},
		{in: 1e20, want: 0},
		{in: "1e300", want: 0},
		{in: "Inf", want: 0},
		{in: nil, want: 0},
		{in: true, want: 0},
	}

	for _, tt := range tests {
		r := Normalize(map[string]any{"interaction_count": tt.in})
		if r.InteractionCount != tt.want {
			t.Errorf("interaction_count %v: InteractionCount = %d, want %d", tt.in, r.InteractionCount, tt.want)
		}
	}
}

func TestNormalize_NullToxicityBackfill(t *testing.T) {
	raw := map[string]any{
		"metrics": map[string]any{"toxicity": nil},
		"summary": map[string]any{
			"toxicity_values": map[string]any{"max_toxicity": 0.6, "toxic_fraction": 0.2},
		},
	}

	r := Normalize(raw)
	want := ToxicityMetrics{MaxToxicity: 0.6, ToxicFraction: 0.2}
	if r.Metrics.Toxicity != want {
		t.Errorf("Toxicity = %+v, want %+v back-filled from summary", r.Metrics.Toxicity, want)
	}
	if r.Evaluation.ToxicityScore != 0.6 {
		t.Errorf("ToxicityScore = %v, want 0.6", r.Evaluation.ToxicityScore)
	}
}

func TestFromScores(t *testing.T) {
	r := Normalize(FromScores(&scoring.Scores{
		Toxicity:   scoring.Toxicity{MaxToxicity: 0.6},
		Stereotype: scoring.Stereotype{GenderBiasDetected: true, StereotypeFraction: 0.5},
	}))

	if r.Evaluation.ToxicityScore != 0.6 || !r.Evaluation.GenderBiasDetected {
		t.Errorf("Evaluation = %+v", r.Evaluation)
	}
	if got := r.Metrics.Groups["stereotype"]["stereotype_fraction"]; got != 0.5 {
		t.Errorf("stereotype_fraction = %v, want 0.5", got)
	}

	if got := FromScores(nil); len(got) != 0 {
		t.Errorf("FromScores(nil) = %v, want empty", got)
	}
}
