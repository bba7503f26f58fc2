// Package evaluators holds the compliance evaluators run against a
// contract before policy evaluation.
//
// Each evaluator implements Evaluator. Evaluators are always invoked
// through Guard, which turns errors and panics into non-compliant results
// so that one failing evaluator never prevents the others from running.
package evaluators

import (
	"context"
	"fmt"

	"mercator-hq/certify/pkg/contract"
	"mercator-hq/certify/pkg/isolate"
)

// Evaluator checks one compliance aspect of a contract.
type Evaluator interface {
	// Name returns the evaluator's registry name, e.g. "fairness".
	Name() string

	// Evaluate checks the contract.
	Evaluate(ctx context.Context, c *contract.Contract) (*Result, error)
}

// Result is the outcome of one evaluator.
type Result struct {
	Name      string         `json:"name"`
	Compliant bool           `json:"compliant"`
	Score     float64        `json:"score"`
	Threshold float64        `json:"threshold"`
	Reason    string         `json:"reason"`
	Details   map[string]any `json:"details,omitempty"`
}

// Error returns the recorded failure message, if any.
func (r *Result) Error() string {
	if r == nil || r.Details == nil {
		return ""
	}
	msg, _ := r.Details["error"].(string)
	return msg
}

// Guard wraps e so that Evaluate never returns an error: failures and
// panics become non-compliant results carrying Details["error"].
func Guard(e Evaluator) Evaluator {
	if g, ok := e.(guarded); ok {
		return g
	}
	return guarded{inner: e}
}

type guarded struct {
	inner Evaluator
}

func (g guarded) Name() string { return g.inner.Name() }

func (g guarded) Evaluate(ctx context.Context, c *contract.Contract) (*Result, error) {
	name := g.inner.Name()
	out := isolate.Run("evaluator "+name, func() (*Result, error) {
		r, err := g.inner.Evaluate(ctx, c)
		if err == nil && r == nil {
			err = fmt.Errorf("evaluator returned no result")
		}
		return r, err
	})
	if !out.OK() {
		return failedResult(name, out.Err.Message()), nil
	}
	if out.Value.Name == "" {
		out.Value.Name = name
	}
	return out.Value, nil
}

func failedResult(name, msg string) *Result {
	return &Result{
		Name:      name,
		Compliant: false,
		Reason:    "Evaluation failed: " + msg,
		Details:   map[string]any{"error": msg},
	}
}
