// Package dispatch resolves a policy category or folder to rules and
// evaluates each rule against the same input document.
//
// Rules are evaluated one after another. Every engine call is isolated:
// a failing or panicking rule yields an error outcome for that rule only
// and the batch continues.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"mercator-hq/certify/pkg/isolate"
	"mercator-hq/certify/pkg/policy/engine"
	"mercator-hq/certify/pkg/policy/index"
	"mercator-hq/certify/pkg/telemetry/logging"
	"mercator-hq/certify/pkg/telemetry/metrics"
)

// Dispatch modes.
const (
	ModeCategory = "category"
	ModeFolder   = "folder"
)

// Outcome is the result of one rule.
type Outcome struct {
	PolicyID        string   `json:"policy_id"`
	Category        string   `json:"category"`
	Pass            bool     `json:"pass"`
	Recommendations []string `json:"recommendations"`
	Raw             any      `json:"raw_result,omitempty"`
	Error           string   `json:"error,omitempty"`
}

// Failed reports whether the rule evaluated and did not pass.
func (o *Outcome) Failed() bool {
	return o.Error == "" && !o.Pass
}

// Set is the collection of outcomes for one dispatch target.
type Set struct {
	Mode        string              `json:"mode"`
	Target      string              `json:"target"`
	Category    string              `json:"category,omitempty"`
	Subcategory string              `json:"subcategory,omitempty"`
	Outcomes    map[string]*Outcome `json:"outcomes"`
	Order       []string            `json:"order"`
	NoPolicies  bool                `json:"no_policies,omitempty"`
	Message     string              `json:"message,omitempty"`
}

func newSet(mode, target string) *Set {
	return &Set{
		Mode:     mode,
		Target:   target,
		Outcomes: make(map[string]*Outcome),
		Order:    []string{},
	}
}

// Ordered returns the outcomes in evaluation order.
func (s *Set) Ordered() []*Outcome {
	out := make([]*Outcome, 0, len(s.Order))
	for _, id := range s.Order {
		out = append(out, s.Outcomes[id])
	}
	return out
}

// Passed returns the number of passing rules.
func (s *Set) Passed() int {
	return s.count(func(o *Outcome) bool { return o.Error == "" && o.Pass })
}

// Failed returns the number of rules that evaluated to fail.
func (s *Set) Failed() int {
	return s.count((*Outcome).Failed)
}

// Errors returns the number of rules that could not be evaluated.
func (s *Set) Errors() int {
	return s.count(func(o *Outcome) bool { return o.Error != "" })
}

func (s *Set) count(pred func(*Outcome) bool) int {
	if s == nil {
		return 0
	}
	n := 0
	for _, o := range s.Outcomes {
		if pred(o) {
			n++
		}
	}
	return n
}

// Dispatcher evaluates rules from an index with an engine.
type Dispatcher struct {
	index   *index.Index
	engine  engine.Engine
	logger  *slog.Logger
	metrics *metrics.Collector
}

// New creates a dispatcher.
func New(idx *index.Index, eng engine.Engine, logger *slog.Logger, collector *metrics.Collector) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		index:   idx,
		engine:  eng,
		logger:  logger.With("component", "policy.dispatch"),
		metrics: collector,
	}
}

// Index returns the dispatcher's policy index.
func (d *Dispatcher) Index() *index.Index { return d.index }

// ByCategory evaluates every rule of target ("category" or
// "category/subcategory"). It never fails: a target without rules yields a
// set with NoPolicies set.
func (d *Dispatcher) ByCategory(ctx context.Context, target string, input any) *Set {
	category, subcategory := index.SplitCategory(target)

	set := newSet(ModeCategory, target)
	set.Category = category
	set.Subcategory = subcategory

	ctx = logging.WithCategory(ctx, target)

	rules := d.index.Resolve(category, subcategory)
	if len(rules) == 0 {
		set.NoPolicies = true
		set.Message = "no policies found for category: " + target
		d.logger.WarnContext(ctx, "no policies found", "category", target)
		d.metrics.RecordEmptyDispatch(ModeCategory)
		return set
	}

	d.evaluate(ctx, set, rules, input)
	return set
}

// ByFolder evaluates every rule under the policy directory matching folder.
// An unknown folder returns the resolution error; per-rule failures are
// isolated in the set.
func (d *Dispatcher) ByFolder(ctx context.Context, folder string, input any) (*Set, error) {
	rules, err := d.index.ResolveFolder(folder)
	if err != nil {
		return nil, err
	}

	set := newSet(ModeFolder, folder)
	ctx = logging.WithCategory(ctx, folder)

	if len(rules) == 0 {
		set.NoPolicies = true
		set.Message = "no policies found in folder: " + folder
		d.logger.WarnContext(ctx, "no policies found", "folder", folder)
		d.metrics.RecordEmptyDispatch(ModeFolder)
		return set, nil
	}

	d.evaluate(ctx, set, rules, input)
	return set, nil
}

func (d *Dispatcher) evaluate(ctx context.Context, set *Set, rules []*index.Rule, input any) {
	libs := d.index.Libraries()

	for _, rule := range rules {
		start := time.Now()
		op := fmt.Sprintf("policy %s (category %s)", rule.ID, rule.Category)

		out := isolate.Run(op, func() (*engine.Decision, error) {
			return d.engine.Evaluate(ctx, rule, libs, input)
		})

		o := &Outcome{PolicyID: rule.ID, Category: rule.Category, Recommendations: []string{}}
		result := "error"
		if out.OK() {
			o.Pass = out.Value.Pass
			o.Raw = out.Value.Raw
			if out.Value.Recommendations != nil {
				o.Recommendations = out.Value.Recommendations
			}
			result = "fail"
			if o.Pass {
				result = "pass"
			}
		} else {
			o.Error = out.Err.Error()
			d.logger.ErrorContext(ctx, "policy evaluation failed",
				"policy", rule.ID,
				"error", out.Err.Message(),
				"panicked", out.Err.Panicked,
			)
		}

		d.metrics.RecordPolicyOutcome(rule.Category, result, time.Since(start))
		set.Outcomes[rule.ID] = o
		set.Order = append(set.Order, rule.ID)
	}

	d.logger.InfoContext(ctx, "policies evaluated",
		"target", set.Target,
		"mode", set.Mode,
		"passed", set.Passed(),
		"failed", set.Failed(),
		"errors", set.Errors(),
	)
}
