// Package engine evaluates policy rules with Open Policy Agent.
//
// Two implementations are provided. CLIEngine runs "opa eval" as a
// subprocess for every rule, loading the rule file and the shared library
// modules. ServerEngine queries a running OPA server through its data API;
// the server is expected to have the policies loaded already.
//
// Both return a Decision parsed from the package document the rule
// produces, see ParseDecision.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"mercator-hq/certify/pkg/config"
	"mercator-hq/certify/pkg/policy/index"
)

var (
	// ErrUndefined is returned when the engine produced no value for a rule.
	ErrUndefined = errors.New("policy decision is undefined")

	// ErrNoVerdict is returned when the rule's value carries no pass/fail field.
	ErrNoVerdict = errors.New("policy decision has no allow, compliant, pass or overall_result field")

	// ErrNoPackage is returned for rule files without a package declaration.
	ErrNoPackage = errors.New("rule has no package declaration")
)

// Engine evaluates a single rule against an input document.
type Engine interface {
	// Name identifies the engine mode ("cli" or "server").
	Name() string

	// Evaluate evaluates rule with the shared library modules loaded.
	// input must be a plain JSON value.
	Evaluate(ctx context.Context, rule *index.Rule, libraries []string, input any) (*Decision, error)
}

// Decision is the parsed result of one rule evaluation.
type Decision struct {
	Pass            bool     `json:"pass"`
	Recommendations []string `json:"recommendations"`
	Raw             any      `json:"raw_result"`
}

// verdictKeys are the fields that carry a pass/fail verdict, in priority order.
var verdictKeys = []string{"allow", "compliant", "pass", "overall_result"}

// ParseDecision extracts a Decision from the value of a rule's package.
// The verdict is read from the first of allow, compliant, pass or
// overall_result present in the value, falling back to the same fields of
// a nested compliance_report object. Recommendations are read the same way.
func ParseDecision(value any) (*Decision, error) {
	if value == nil {
		return nil, ErrUndefined
	}
	doc, ok := value.(map[string]any)
	if !ok {
		if b, isBool := value.(bool); isBool {
			return &Decision{Pass: b, Recommendations: []string{}, Raw: value}, nil
		}
		return nil, fmt.Errorf("unexpected decision type %T", value)
	}

	report, _ := doc["compliance_report"].(map[string]any)

	pass, found := verdict(doc)
	if !found && report != nil {
		pass, found = verdict(report)
	}
	if !found {
		return nil, ErrNoVerdict
	}

	recs := recommendations(doc["recommendations"])
	if len(recs) == 0 && report != nil {
		recs = recommendations(report["recommendations"])
	}

	return &Decision{Pass: pass, Recommendations: recs, Raw: value}, nil
}

func verdict(doc map[string]any) (pass, found bool) {
	for _, key := range verdictKeys {
		v, ok := doc[key]
		if !ok {
			continue
		}
		switch val := v.(type) {
		case bool:
			return val, true
		case string:
			switch strings.ToLower(strings.TrimSpace(val)) {
			case "pass", "passed", "compliant", "true", "allow", "allowed":
				return true, true
			default:
				return false, true
			}
		}
	}
	return false, false
}

func recommendations(v any) []string {
	out := []string{}
	switch val := v.(type) {
	case string:
		if val != "" {
			out = append(out, val)
		}
	case []any:
		for _, item := range val {
			switch rec := item.(type) {
			case string:
				out = append(out, rec)
			case map[string]any:
				if s, ok := rec["recommendation"].(string); ok {
					out = append(out, s)
				} else if s, ok := rec["message"].(string); ok {
					out = append(out, s)
				}
			}
		}
	case []string:
		out = append(out, val...)
	}
	return out
}

// dataPath converts a package name to its data API path, e.g.
// "eu_ai_act.fairness" to "eu_ai_act/fairness".
func dataPath(pkg string) string {
	return strings.ReplaceAll(pkg, ".", "/")
}

// New creates the engine selected by cfg.Mode.
func New(cfg config.EngineConfig, logger *slog.Logger) (Engine, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch strings.ToLower(cfg.Mode) {
	case "", "cli":
		return NewCLIEngine(cfg, logger), nil
	case "server":
		return NewServerEngine(cfg, logger)
	default:
		return nil, fmt.Errorf("unknown engine mode: %q", cfg.Mode)
	}
}
