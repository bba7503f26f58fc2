package evidence

import (
	"context"
	"fmt"
	"time"
)

// Kind classifies an evaluation run by its entry point.
type Kind string

const (
	KindContract      Kind = "contract"
	KindConversations Kind = "conversations"
	KindFolder        Kind = "folder"
	KindPolicyInput   Kind = "policy_input"
	KindReport        Kind = "report"
)

// Record is the audit trail of one evaluation run: what was evaluated,
// against which policies, what came out and where the reports went.
// Records are written once and never updated.
type Record struct {
	// Identity
	ID    string `json:"id"`     // UUID v4
	RunID string `json:"run_id"` // Correlates log lines of the run
	Kind  Kind   `json:"kind"`

	// Subject
	ApplicationName  string `json:"application_name"`
	ContractID       string `json:"contract_id,omitempty"`
	ContractHash     string `json:"contract_hash,omitempty"` // SHA-256 of the canonical contract JSON
	InteractionCount int    `json:"interaction_count"`

	// Policies
	PolicyTarget  string `json:"policy_target"` // Category list or folder name
	PolicyVersion string `json:"policy_version,omitempty"`

	// Outcome
	Compliant      bool     `json:"compliant"`
	Evaluators     []string `json:"evaluators,omitempty"`
	PoliciesPassed int      `json:"policies_passed"`
	PoliciesFailed int      `json:"policies_failed"`
	PolicyErrors   int      `json:"policy_errors"`
	Errors         []string `json:"errors,omitempty"`

	// Output
	ReportPaths map[string]string `json:"report_paths,omitempty"` // format -> path

	// Timing
	StartedAt  time.Time     `json:"started_at"`
	Duration   time.Duration `json:"duration"`
	RecordedAt time.Time     `json:"recorded_at"`
}

// Failed reports whether the run ended with stage errors.
func (r *Record) Failed() bool {
	return len(r.Errors) > 0
}

const (
	// DefaultLimit is the number of records returned when Limit is 0.
	DefaultLimit = 100

	// MaxLimit is the largest page a single query may request.
	MaxLimit = 10000
)

// Query defines filter parameters for querying run records.
// Zero values leave the corresponding filter off.
type Query struct {
	ApplicationName string     `json:"application_name,omitempty"`
	Kind            Kind       `json:"kind,omitempty"`
	Compliant       *bool      `json:"compliant,omitempty"`
	Since           *time.Time `json:"since,omitempty"` // Inclusive lower bound on StartedAt
	Until           *time.Time `json:"until,omitempty"` // Exclusive upper bound on StartedAt

	Limit  int `json:"limit,omitempty"`
	Offset int `json:"offset,omitempty"`
}

// Validate checks query parameters.
func (q *Query) Validate() error {
	if q.Limit < 0 {
		return NewQueryError(q, fmt.Errorf("limit must be >= 0, got %d", q.Limit))
	}
	if q.Limit > MaxLimit {
		return NewQueryError(q, fmt.Errorf("limit must be <= %d, got %d", MaxLimit, q.Limit))
	}
	if q.Offset < 0 {
		return NewQueryError(q, fmt.Errorf("offset must be >= 0, got %d", q.Offset))
	}
	if q.Since != nil && q.Until != nil && !q.Since.Before(*q.Until) {
		return NewQueryError(q, fmt.Errorf("since must be before until"))
	}
	switch q.Kind {
	case "", KindContract, KindConversations, KindFolder, KindPolicyInput, KindReport:
	default:
		return NewQueryError(q, fmt.Errorf("invalid kind: %s", q.Kind))
	}
	return nil
}

// EffectiveLimit returns Limit, or DefaultLimit when unset.
func (q *Query) EffectiveLimit() int {
	if q.Limit == 0 {
		return DefaultLimit
	}
	return q.Limit
}

// Matches reports whether r passes the query filters. Pagination is not applied.
func (q *Query) Matches(r *Record) bool {
	if q.ApplicationName != "" && r.ApplicationName != q.ApplicationName {
		return false
	}
	if q.Kind != "" && r.Kind != q.Kind {
		return false
	}
	if q.Compliant != nil && r.Compliant != *q.Compliant {
		return false
	}
	if q.Since != nil && r.StartedAt.Before(*q.Since) {
		return false
	}
	if q.Until != nil && !r.StartedAt.Before(*q.Until) {
		return false
	}
	return true
}

// Storage defines the interface for run record storage backends.
type Storage interface {
	// Store persists a record. Storing an existing ID is an error.
	Store(ctx context.Context, record *Record) error

	// Query returns records matching q, newest first.
	Query(ctx context.Context, q *Query) ([]*Record, error)

	// Count returns the number of records matching q, ignoring pagination.
	Count(ctx context.Context, q *Query) (int64, error)

	// DeleteBefore removes records started before cutoff and returns how many were removed.
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// Close releases backend resources.
	Close() error
}
