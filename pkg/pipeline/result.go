package pipeline

import (
	"encoding/json"
	"time"

	"mercator-hq/certify/pkg/evaluation"
	"mercator-hq/certify/pkg/evaluators"
	"mercator-hq/certify/pkg/evidence"
	"mercator-hq/certify/pkg/policy/dispatch"
)

// Stage names a step of a run.
type Stage string

// Stages, in execution order.
const (
	StageLoad      Stage = "LOAD"
	StageNormalize Stage = "NORMALIZE"
	StageEvaluate  Stage = "EVALUATE"
	StageDispatch  Stage = "DISPATCH"
	StageReport    Stage = "REPORT"
)

// StageError records a failed stage. Later stages still run.
type StageError struct {
	Stage   Stage  `json:"stage"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e StageError) Error() string {
	return string(e.Stage) + ": " + e.Message
}

// Options selects what a run does. Zero values fall back to configuration.
type Options struct {
	// PolicyCategories are "category" or "category/subcategory" targets,
	// evaluated in order. Ignored when PolicyFolder is set. Empty uses
	// policy.default_category.
	PolicyCategories []string

	// PolicyFolder selects folder-mode dispatch.
	PolicyFolder string

	// SkipPolicies disables the DISPATCH stage.
	SkipPolicies bool

	// Evaluators names the compliance evaluators to run. Empty uses
	// evaluators.enabled, which when empty means all.
	Evaluators []string

	// SkipEvaluators disables the EVALUATE stage.
	SkipEvaluators bool

	// EvaluatorSettings override evaluators.settings key by key.
	EvaluatorSettings map[string]any

	// GenerateReport enables the REPORT stage.
	GenerateReport bool

	// ReportFormats overrides report.formats.
	ReportFormats []string

	// OutputDir overrides report.output_dir.
	OutputDir string
}

// Result is what every entry point returns. It always carries whatever
// was obtained; failures are listed in Errors and the first one is
// repeated in Error.
type Result struct {
	RunID            string
	Kind             evidence.Kind
	ApplicationName  string
	ContractID       string
	ContractCount    int
	InteractionCount int

	Evaluation       *evaluation.Result
	EvaluatorResults []*evaluators.Result
	Policies         []*dispatch.Set
	Compliant        bool

	ReportPaths map[string]string

	// Skipped lists inputs that were dropped without failing the run,
	// e.g. unreadable files in a contract folder.
	Skipped []string

	Errors []StageError
	Error  string

	StartedAt time.Time
	Duration  time.Duration
}

// Failed reports whether any stage failed.
func (r *Result) Failed() bool {
	return len(r.Errors) > 0
}

func (r *Result) fail(stage Stage, msg string) {
	r.Errors = append(r.Errors, StageError{Stage: stage, Message: msg})
	if r.Error == "" {
		r.Error = msg
	}
}

// PolicyCounts returns the passed, failed and errored rule counts across
// every policy set. A set without policies counts as one error.
func (r *Result) PolicyCounts() (passed, failed, errored int) {
	for _, s := range r.Policies {
		passed += s.Passed()
		failed += s.Failed()
		errored += s.Errors()
		if s.NoPolicies {
			errored++
		}
	}
	return passed, failed, errored
}

// Map renders the result as plain JSON values.
func (r *Result) Map() map[string]any {
	out := map[string]any{
		"run_id":            r.RunID,
		"kind":              string(r.Kind),
		"application_name":  r.ApplicationName,
		"contract_count":    r.ContractCount,
		"interaction_count": r.InteractionCount,
		"compliant":         r.Compliant,
		"started_at":        r.StartedAt.UTC().Format(time.RFC3339),
		"duration_ms":       r.Duration.Milliseconds(),
	}
	if r.ContractID != "" {
		out["contract_id"] = r.ContractID
	}
	if r.Evaluation != nil {
		out["evaluation"] = r.Evaluation.Map()
	}
	if len(r.EvaluatorResults) > 0 {
		out["evaluator_results"] = r.EvaluatorResults
	}
	if r.Policies != nil {
		out["policies"] = r.Policies
	}
	if len(r.ReportPaths) > 0 {
		out["report_paths"] = r.ReportPaths
	}
	if len(r.Skipped) > 0 {
		out["skipped"] = r.Skipped
	}
	if len(r.Errors) > 0 {
		out["errors"] = r.Errors
		out["error"] = r.Error
	}
	return out
}

// MarshalJSON encodes Map.
func (r *Result) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Map())
}
