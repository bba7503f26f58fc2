// Package report assembles evaluation and policy results into a report
// model and renders it as Markdown, HTML, PDF or JSON.
//
// Assemble is total: whatever it is given, it returns a report. Rendering
// is deterministic for a given model, and ParseMarkdown recovers the
// report's outline from rendered Markdown.
package report

import "time"

// Report is the assembled report model.
type Report struct {
	AppDetails       AppDetails        `json:"app_details"`
	MetricGroups     []MetricGroup     `json:"metric_groups"`
	PolicyResults    []PolicyResult    `json:"policy_results"`
	EvaluatorResults []EvaluatorResult `json:"evaluator_results,omitempty"`
	Summary          string            `json:"summary"`
}

// AppDetails describes the evaluated application.
type AppDetails struct {
	Name           string    `json:"name"`
	EvaluationMode string    `json:"evaluation_mode"`
	ContractCount  int       `json:"contract_count"`
	EvaluationDate time.Time `json:"evaluation_date"`
}

// MetricGroup is a named group of metric values.
type MetricGroup struct {
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	Metrics     []MetricValue `json:"metrics"`
}

// MetricValue is one displayed metric.
type MetricValue struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	Value       any    `json:"value"`
}

// Policy result values.
const (
	ResultPass  = "PASS"
	ResultFail  = "FAIL"
	ResultError = "ERROR"
)

// PolicyResult is one policy outcome as shown in the report.
type PolicyResult struct {
	Name            string   `json:"name"`
	Result          string   `json:"result"`
	Recommendations []string `json:"recommendations,omitempty"`
	Error           string   `json:"error,omitempty"`
}

// EvaluatorResult is one compliance evaluator outcome as shown in the report.
type EvaluatorResult struct {
	Name      string  `json:"name"`
	Compliant bool    `json:"compliant"`
	Score     float64 `json:"score"`
	Threshold float64 `json:"threshold"`
	Reason    string  `json:"reason"`
}
