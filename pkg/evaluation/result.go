// Package evaluation defines the evaluation result record and its single
// normalizer.
//
// Backends and callers produce loosely shaped mappings. Normalize turns any
// such mapping into a Result with every required field present, and
// Result.Map renders it back into the plain form handed to the policy
// engine and the report assembler. Normalization never fails: missing or
// malformed values take their defaults.
package evaluation

import (
	"encoding/json"
	"math"
	"sort"
	"strconv"
	"strings"

	"mercator-hq/certify/pkg/scoring"
)

// Result is the normalized outcome of the evaluation stage.
type Result struct {
	ApplicationName  string
	ContractID       string
	InteractionCount int
	Metrics          Metrics
	Summary          Summary
	Evaluation       Flat
}

// Metrics holds the metric groups. Toxicity is always present; other
// groups (stereotype, counterfactual, ...) are kept with numeric or
// scalar values only.
type Metrics struct {
	Toxicity ToxicityMetrics
	Groups   map[string]map[string]any
}

// ToxicityMetrics are the toxicity values shared by metrics and summary.
type ToxicityMetrics struct {
	ToxicFraction       float64 `json:"toxic_fraction"`
	MaxToxicity         float64 `json:"max_toxicity"`
	ToxicityProbability float64 `json:"toxicity_probability"`
}

// Summary mirrors the headline values of the evaluation.
type Summary struct {
	ToxicityValues   ToxicityMetrics
	StereotypeValues StereotypeValues
}

// StereotypeValues are the bias flags.
type StereotypeValues struct {
	GenderBiasDetected bool `json:"gender_bias_detected"`
	RacialBiasDetected bool `json:"racial_bias_detected"`
}

// Flat is the flattened evaluation block consumed by policies.
type Flat struct {
	ToxicityScore       float64 `json:"toxicity_score"`
	ToxicFraction       float64 `json:"toxic_fraction"`
	ToxicityProbability float64 `json:"toxicity_probability"`
	GenderBiasDetected  bool    `json:"gender_bias_detected"`
	RacialBiasDetected  bool    `json:"racial_bias_detected"`
}

// Derive computes the flat evaluation block. It is the only place the
// block is computed.
func Derive(m Metrics, s Summary) Flat {
	return Flat{
		ToxicityScore:       m.Toxicity.MaxToxicity,
		ToxicFraction:       m.Toxicity.ToxicFraction,
		ToxicityProbability: m.Toxicity.ToxicityProbability,
		GenderBiasDetected:  s.StereotypeValues.GenderBiasDetected,
		RacialBiasDetected:  s.StereotypeValues.RacialBiasDetected,
	}
}

// Normalize converts a raw mapping into a Result. A nil mapping yields
// every default.
func Normalize(raw map[string]any) *Result {
	r := &Result{
		ApplicationName: firstString(raw, "application_name", "app_name"),
		ContractID:      asString(raw["contract_id"]),
	}
	r.InteractionCount = count(raw["interaction_count"])

	metrics := asMap(raw["metrics"])
	summary := asMap(raw["summary"])

	toxicity := asMap(metrics["toxicity"])
	if toxicity == nil {
		// Back-fill from the summary when only it carries the values.
		toxicity = asMap(summary["toxicity_values"])
	}
	r.Metrics.Toxicity = toxicityFrom(toxicity)

	for name, group := range metrics {
		if name == "toxicity" {
			continue
		}
		values := scalarGroup(asMap(group))
		if values == nil {
			continue
		}
		if r.Metrics.Groups == nil {
			r.Metrics.Groups = make(map[string]map[string]any)
		}
		r.Metrics.Groups[name] = values
	}

	r.Summary.ToxicityValues = r.Metrics.Toxicity
	stereo := asMap(summary["stereotype_values"])
	r.Summary.StereotypeValues = StereotypeValues{
		GenderBiasDetected: toBool(stereo["gender_bias_detected"]),
		RacialBiasDetected: toBool(stereo["racial_bias_detected"]),
	}

	r.Evaluation = Derive(r.Metrics, r.Summary)
	return r
}

// Map renders the result as a plain mapping with the standard keys:
// application_name, contract_id, interaction_count, metrics, summary and
// evaluation. Empty identifiers are omitted.
func (r *Result) Map() map[string]any {
	metrics := map[string]any{
		"toxicity": toxicityMap(r.Metrics.Toxicity),
	}
	for name, group := range r.Metrics.Groups {
		copied := make(map[string]any, len(group))
		for k, v := range group {
			copied[k] = v
		}
		metrics[name] = copied
	}

	out := map[string]any{
		"metrics": metrics,
		"summary": map[string]any{
			"toxicity_values": toxicityMap(r.Summary.ToxicityValues),
			"stereotype_values": map[string]any{
				"gender_bias_detected": r.Summary.StereotypeValues.GenderBiasDetected,
				"racial_bias_detected": r.Summary.StereotypeValues.RacialBiasDetected,
			},
		},
		"evaluation": map[string]any{
			"toxicity_score":       r.Evaluation.ToxicityScore,
			"toxic_fraction":       r.Evaluation.ToxicFraction,
			"toxicity_probability": r.Evaluation.ToxicityProbability,
			"gender_bias_detected": r.Evaluation.GenderBiasDetected,
			"racial_bias_detected": r.Evaluation.RacialBiasDetected,
		},
	}
	if r.ApplicationName != "" {
		out["application_name"] = r.ApplicationName
	}
	if r.ContractID != "" {
		out["contract_id"] = r.ContractID
	}
	if r.InteractionCount > 0 {
		out["interaction_count"] = r.InteractionCount
	}
	return out
}

// GroupNames returns the names of the non-toxicity metric groups, sorted.
func (r *Result) GroupNames() []string {
	names := make([]string, 0, len(r.Metrics.Groups))
	for name := range r.Metrics.Groups {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// FromScores shapes backend scores as a raw result mapping.
func FromScores(s *scoring.Scores) map[string]any {
	if s == nil {
		return map[string]any{}
	}
	tox := ToxicityMetrics{
		ToxicFraction:       s.Toxicity.ToxicFraction,
		MaxToxicity:         s.Toxicity.MaxToxicity,
		ToxicityProbability: s.Toxicity.ToxicityProbability,
	}
	return map[string]any{
		"metrics": map[string]any{
			"toxicity": toxicityMap(tox),
			"stereotype": map[string]any{
				"stereotype_fraction": s.Stereotype.StereotypeFraction,
			},
		},
		"summary": map[string]any{
			"toxicity_values": toxicityMap(tox),
			"stereotype_values": map[string]any{
				"gender_bias_detected": s.Stereotype.GenderBiasDetected,
				"racial_bias_detected": s.Stereotype.RacialBiasDetected,
			},
		},
	}
}

func toxicityFrom(m map[string]any) ToxicityMetrics {
	return ToxicityMetrics{
		ToxicFraction:       number(m["toxic_fraction"]),
		MaxToxicity:         number(m["max_toxicity"]),
		ToxicityProbability: number(m["toxicity_probability"]),
	}
}

func toxicityMap(t ToxicityMetrics) map[string]any {
	return map[string]any{
		"toxic_fraction":       t.ToxicFraction,
		"max_toxicity":         t.MaxToxicity,
		"toxicity_probability": t.ToxicityProbability,
	}
}

// scalarGroup keeps the numeric (as float64), boolean and string values of
// a metric group. It returns nil for an empty result.
func scalarGroup(m map[string]any) map[string]any {
	var out map[string]any
	for k, v := range m {
		var kept any
		switch val := v.(type) {
		case bool, string:
			kept = val
		default:
			f, ok := toFloat(v)
			if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
				continue
			}
			kept = f
		}
		if out == nil {
			out = make(map[string]any)
		}
		out[k] = kept
	}
	return out
}

func asMap(v any) map[string]any {
	if m, ok := v.(map[string]any); ok {
		return m
	}
	return nil
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func firstString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s := asString(m[k]); s != "" {
			return s
		}
	}
	return ""
}

// number returns v as a finite float64, or 0.
func number(v any) float64 {
	f, ok := toFloat(v)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// maxInteractionCount bounds interaction counts. Larger values are
// treated as malformed.
const maxInteractionCount = math.MaxInt32

// count returns v as an interaction count. Values that are not finite,
// not positive or above maxInteractionCount yield 0.
func count(v any) int {
	n := number(v)
	if n < 1 || n > maxInteractionCount {
		return 0
	}
	return int(n)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func toBool(v any) bool {
	switch b := v.(type) {
	case bool:
		return b
	case string:
		return strings.EqualFold(strings.TrimSpace(b), "true")
	default:
		return false
	}
}
