package fakes

import (
	"context"
	"sync"

	"mercator-hq/certify/pkg/policy/engine"
	"mercator-hq/certify/pkg/policy/index"
)

// Engine returns canned decisions keyed by rule ID and records the inputs
// it receives. Rules without an entry pass with no recommendations.
type Engine struct {
	Decisions map[string]*engine.Decision
	Errors    map[string]error
	Panics    map[string]any

	mu     sync.Mutex
	calls  []string
	inputs []any
}

// Name returns "fake".
func (e *Engine) Name() string { return "fake" }

// Evaluate implements engine.Engine.
func (e *Engine) Evaluate(ctx context.Context, rule *index.Rule, libraries []string, input any) (*engine.Decision, error) {
	e.mu.Lock()
	e.calls = append(e.calls, rule.ID)
	e.inputs = append(e.inputs, input)
	e.mu.Unlock()

	if p, ok := e.Panics[rule.ID]; ok {
		panic(p)
	}
	if err, ok := e.Errors[rule.ID]; ok {
		return nil, err
	}
	if d, ok := e.Decisions[rule.ID]; ok {
		return d, nil
	}
	return &engine.Decision{Pass: true, Recommendations: []string{}, Raw: map[string]any{"allow": true}}, nil
}

// Calls returns the evaluated rule IDs, in call order.
func (e *Engine) Calls() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.calls...)
}

// LastInput returns the input of the most recent call.
func (e *Engine) LastInput() any {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.inputs) == 0 {
		return nil
	}
	return e.inputs[len(e.inputs)-1]
}
