package report

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"mercator-hq/certify/pkg/evaluation"
	"mercator-hq/certify/pkg/evaluators"
	"mercator-hq/certify/pkg/isolate"
	"mercator-hq/certify/pkg/policy/dispatch"
)

// UnknownApplication is used when the evaluation carries no application name.
const UnknownApplication = "Unknown"

// BasicSummary is the summary of a report that could not be fully assembled.
const BasicSummary = "Basic evaluation report"

// groupDescriptions describe the well-known metric groups.
var groupDescriptions = map[string]string{
	"toxicity":       "Share and severity of toxic content in application responses.",
	"stereotype":     "Detection of gender and racial stereotypes in application responses.",
	"counterfactual": "Consistency of responses across demographic counterfactual prompts.",
	"ranking":        "Fairness of recommendation rankings across groups.",
}

// displayNames overrides the generated display name of a metric.
var displayNames = map[string]string{
	"toxic_fraction":       "Toxic Fraction",
	"max_toxicity":         "Maximum Toxicity",
	"toxicity_probability": "Toxicity Probability",
	"gender_bias_detected": "Gender Bias Detected",
	"racial_bias_detected": "Racial Bias Detected",
}

type assembleOptions struct {
	mode          string
	contractCount int
	date          time.Time
	evaluators    []*evaluators.Result
	logger        *slog.Logger
}

// Option configures Assemble.
type Option func(*assembleOptions)

// WithMode sets the evaluation mode shown in the report (e.g. "contract",
// "folder", "comprehensive").
func WithMode(mode string) Option {
	return func(o *assembleOptions) { o.mode = mode }
}

// WithContractCount sets the number of contracts the evaluation covers.
func WithContractCount(n int) Option {
	return func(o *assembleOptions) { o.contractCount = n }
}

// WithDate sets the evaluation date.
func WithDate(t time.Time) Option {
	return func(o *assembleOptions) { o.date = t }
}

// WithEvaluatorResults adds compliance evaluator results.
func WithEvaluatorResults(results []*evaluators.Result) Option {
	return func(o *assembleOptions) { o.evaluators = results }
}

// WithLogger sets the logger used to report assembly failures.
func WithLogger(l *slog.Logger) Option {
	return func(o *assembleOptions) { o.logger = l }
}

// Assemble builds a report from an evaluation and policy outcome sets.
// It never fails: a nil evaluation is treated as empty, and if assembly
// breaks the result is a minimal report naming the application.
func Assemble(result *evaluation.Result, sets []*dispatch.Set, opts ...Option) *Report {
	o := assembleOptions{mode: "contract", contractCount: 1}
	for _, opt := range opts {
		opt(&o)
	}
	if o.date.IsZero() {
		o.date = time.Now().UTC()
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if result == nil {
		result = evaluation.Normalize(nil)
	}

	name := result.ApplicationName
	if name == "" {
		name = UnknownApplication
	}

	out := isolate.Run("report assemble", func() (*Report, error) {
		return assemble(name, result, sets, &o), nil
	})
	if !out.OK() {
		o.logger.Error("report assembly failed, using basic report",
			"application", name,
			"error", out.Err.Message(),
		)
		return Minimal(name, o.date)
	}
	return out.Value
}

// Minimal returns the fallback report.
func Minimal(name string, date time.Time) *Report {
	if name == "" {
		name = UnknownApplication
	}
	return &Report{
		AppDetails:    AppDetails{Name: name, EvaluationMode: "basic", EvaluationDate: date},
		MetricGroups:  []MetricGroup{},
		PolicyResults: []PolicyResult{},
		Summary:       BasicSummary,
	}
}

func assemble(name string, result *evaluation.Result, sets []*dispatch.Set, o *assembleOptions) *Report {
	r := &Report{
		AppDetails: AppDetails{
			Name:           name,
			EvaluationMode: o.mode,
			ContractCount:  o.contractCount,
			EvaluationDate: o.date,
		},
		MetricGroups:  metricGroups(result),
		PolicyResults: policyResults(sets),
	}

	for _, e := range o.evaluators {
		if e == nil {
			continue
		}
		r.EvaluatorResults = append(r.EvaluatorResults, EvaluatorResult{
			Name:      e.Name,
			Compliant: e.Compliant,
			Score:     e.Score,
			Threshold: e.Threshold,
			Reason:    e.Reason,
		})
	}

	r.Summary = summarize(r, result)
	return r
}

func metricGroups(result *evaluation.Result) []MetricGroup {
	tox := result.Metrics.Toxicity
	groups := []MetricGroup{
		{
			Name:        "Toxicity",
			Description: groupDescriptions["toxicity"],
			Metrics: []MetricValue{
				metric("toxic_fraction", tox.ToxicFraction),
				metric("max_toxicity", tox.MaxToxicity),
				metric("toxicity_probability", tox.ToxicityProbability),
			},
		},
	}

	stereo := MetricGroup{
		Name:        "Stereotype",
		Description: groupDescriptions["stereotype"],
		Metrics: []MetricValue{
			metric("gender_bias_detected", result.Summary.StereotypeValues.GenderBiasDetected),
			metric("racial_bias_detected", result.Summary.StereotypeValues.RacialBiasDetected),
		},
	}
	if extra, ok := result.Metrics.Groups["stereotype"]; ok {
		stereo.Metrics = append(stereo.Metrics, groupMetrics(extra)...)
	}
	groups = append(groups, stereo)

	for _, name := range result.GroupNames() {
		if name == "stereotype" {
			continue
		}
		groups = append(groups, MetricGroup{
			Name:        displayName(name),
			Description: groupDescriptions[name],
			Metrics:     groupMetrics(result.Metrics.Groups[name]),
		})
	}
	return groups
}

func groupMetrics(values map[string]any) []MetricValue {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]MetricValue, 0, len(keys))
	for _, k := range keys {
		out = append(out, metric(k, values[k]))
	}
	return out
}

func metric(name string, value any) MetricValue {
	return MetricValue{Name: name, DisplayName: displayName(name), Value: value}
}

// displayName turns "toxic_fraction" into "Toxic Fraction".
func displayName(name string) string {
	if d, ok := displayNames[name]; ok {
		return d
	}
	words := strings.Fields(strings.ReplaceAll(name, "_", " "))
	for i, w := range words {
		_, size := utf8.DecodeRuneInString(w)
		words[i] = strings.ToUpper(w[:size]) + w[size:]
	}
	return strings.Join(words, " ")
}

func policyResults(sets []*dispatch.Set) []PolicyResult {
	out := []PolicyResult{}
	for _, set := range sets {
		if set == nil {
			continue
		}
		if set.NoPolicies {
			out = append(out, PolicyResult{
				Name:   set.Target,
				Result: ResultError,
				Error:  set.Message,
			})
			continue
		}
		for _, o := range set.Ordered() {
			pr := PolicyResult{Name: o.PolicyID, Recommendations: o.Recommendations}
			switch {
			case o.Error != "":
				pr.Result = ResultError
				pr.Error = o.Error
			case o.Pass:
				pr.Result = ResultPass
			default:
				pr.Result = ResultFail
			}
			out = append(out, pr)
		}
	}
	return out
}

func summarize(r *Report, result *evaluation.Result) string {
	var passed, failed, errored int
	for _, p := range r.PolicyResults {
		switch p.Result {
		case ResultPass:
			passed++
		case ResultFail:
			failed++
		default:
			errored++
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Evaluation of %s", r.AppDetails.Name)
	if result.InteractionCount > 0 {
		fmt.Fprintf(&b, " covering %d interactions", result.InteractionCount)
	}
	b.WriteString(". ")

	if len(r.PolicyResults) == 0 {
		b.WriteString("No policies were evaluated.")
	} else {
		fmt.Fprintf(&b, "%d policies passed, %d failed, %d could not be evaluated.", passed, failed, errored)
	}

	if len(r.EvaluatorResults) > 0 {
		compliant := 0
		for _, e := range r.EvaluatorResults {
			if e.Compliant {
				compliant++
			}
		}
		fmt.Fprintf(&b, " %d of %d compliance evaluators reported the application compliant.", compliant, len(r.EvaluatorResults))
	}
	return b.String()
}
