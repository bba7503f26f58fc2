package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"mercator-hq/certify/pkg/contract"
	"mercator-hq/certify/pkg/evaluation"
	"mercator-hq/certify/pkg/evaluators"
	"mercator-hq/certify/pkg/evidence"
	"mercator-hq/certify/pkg/evidence/recorder"
	"mercator-hq/certify/pkg/isolate"
	"mercator-hq/certify/pkg/policy/dispatch"
	"mercator-hq/certify/pkg/report"
	"mercator-hq/certify/pkg/telemetry/logging"
)

// failurePrefix is prepended to the message of a failed stage.
var failurePrefix = map[Stage]string{
	StageLoad:      "Contract load failed",
	StageNormalize: "Evaluation failed",
	StageEvaluate:  "Evaluator configuration failed",
	StageDispatch:  "OPA evaluation error",
	StageReport:    "Report generation failed",
}

// reportModes maps run kinds to the evaluation mode shown in reports.
var reportModes = map[evidence.Kind]string{
	evidence.KindContract:      "contract",
	evidence.KindConversations: "conversations",
	evidence.KindFolder:        "consolidated",
	evidence.KindPolicyInput:   "policy_input",
	evidence.KindReport:        "report",
}

// loader produces the contract of a run.
type loader func(ctx context.Context, r *run) (*contract.Contract, error)

// run is the call-scoped state of one entry point invocation.
type run struct {
	rt   *Runtime
	opts Options
	res  *Result

	load loader

	// rawEvaluation, when set, is normalized instead of scoring a contract.
	rawEvaluation map[string]any

	// policyInput, when set, is dispatched instead of the evaluation document.
	policyInput any

	contract     *contract.Contract
	contractHash string
}

func (rt *Runtime) newRun(kind evidence.Kind, opts Options) *run {
	return &run{
		rt:   rt,
		opts: opts,
		res: &Result{
			RunID:     uuid.New().String(),
			Kind:      kind,
			StartedAt: rt.now().UTC(),
		},
	}
}

// execute runs every stage and finishes the run.
func (r *run) execute(ctx context.Context) *Result {
	ctx = logging.WithRunID(ctx, r.res.RunID)
	r.rt.logger.InfoContext(ctx, "evaluation started", "kind", r.res.Kind)

	if r.load != nil {
		r.stage(ctx, StageLoad, r.loadContract)
	}
	if r.contract != nil {
		ctx = logging.WithContractID(ctx, r.res.ContractID)
	}
	if r.res.ApplicationName != "" {
		ctx = logging.WithApplication(ctx, r.res.ApplicationName)
	}

	r.stage(ctx, StageNormalize, r.normalize)
	if r.res.Evaluation == nil {
		r.res.Evaluation = evaluation.Normalize(r.identity())
	}

	if !r.opts.SkipEvaluators && r.contract != nil {
		r.stage(ctx, StageEvaluate, r.evaluate)
	}
	if !r.opts.SkipPolicies {
		r.stage(ctx, StageDispatch, r.dispatch)
	}
	if r.opts.GenerateReport {
		r.stage(ctx, StageReport, r.report)
	}

	return r.finish(ctx)
}

// stage runs fn in isolation and records its duration and failure.
func (r *run) stage(ctx context.Context, stage Stage, fn func(context.Context) error) {
	ctx = logging.WithStage(ctx, string(stage))
	start := time.Now()

	failure := isolate.Do(strings.ToLower(string(stage)), func() error {
		return fn(ctx)
	})

	r.rt.metrics.RecordStage(string(stage), time.Since(start), failure != nil)
	if failure == nil {
		return
	}

	msg := failure.Message()
	if failure.Panicked {
		msg = "panic: " + msg
	}
	r.res.fail(stage, failurePrefix[stage]+": "+msg)
	r.rt.logger.ErrorContext(ctx, "stage failed",
		"stage", stage,
		"error", msg,
	)
}

func (r *run) loadContract(ctx context.Context) error {
	c, err := r.load(ctx, r)
	if err != nil {
		return err
	}
	r.contract = c
	r.res.ApplicationName = c.ApplicationName
	r.res.ContractID = c.ID.String()
	r.res.InteractionCount = len(c.Interactions)
	if r.res.ContractCount == 0 {
		r.res.ContractCount = 1
	}

	hash, err := recorder.HashJSON(c)
	if err != nil {
		r.rt.logger.WarnContext(ctx, "failed to hash contract", "error", err)
	}
	r.contractHash = hash
	return nil
}

// identity returns the identifying fields of the run as a raw evaluation.
func (r *run) identity() map[string]any {
	raw := map[string]any{}
	if r.res.ApplicationName != "" {
		raw["application_name"] = r.res.ApplicationName
	}
	if r.res.ContractID != "" {
		raw["contract_id"] = r.res.ContractID
	}
	if r.res.InteractionCount > 0 {
		raw["interaction_count"] = r.res.InteractionCount
	}
	return raw
}

func (r *run) normalize(ctx context.Context) error {
	if r.rawEvaluation != nil {
		r.res.Evaluation = evaluation.Normalize(r.rawEvaluation)
		if r.res.ApplicationName == "" {
			r.res.ApplicationName = r.res.Evaluation.ApplicationName
		}
		if r.res.ContractID == "" {
			r.res.ContractID = r.res.Evaluation.ContractID
		}
		if r.res.InteractionCount == 0 {
			r.res.InteractionCount = r.res.Evaluation.InteractionCount
		}
		return nil
	}
	if r.contract == nil {
		return nil
	}

	scores, err := r.rt.scoring.Score(ctx, r.contract.Prompts(), r.contract.Responses())
	if err != nil {
		return fmt.Errorf("scoring backend %s: %w", r.rt.scoring.Name(), err)
	}

	raw := evaluation.FromScores(scores)
	for k, v := range r.identity() {
		raw[k] = v
	}
	r.res.Evaluation = evaluation.Normalize(raw)
	return nil
}

func (r *run) evaluate(ctx context.Context) error {
	settings := make(map[string]any, len(r.rt.cfg.Evaluators.Settings)+len(r.opts.EvaluatorSettings))
	for k, v := range r.rt.cfg.Evaluators.Settings {
		settings[k] = v
	}
	for k, v := range r.opts.EvaluatorSettings {
		settings[k] = v
	}

	names := r.opts.Evaluators
	if len(names) == 0 {
		names = r.rt.cfg.Evaluators.Enabled
	}

	cfg, cfgErr := evaluators.DecodeConfig(settings)
	if cfgErr != nil {
		// Run with defaults so the evaluators still report.
		cfg = evaluators.DefaultConfig()
	}

	ce := evaluators.NewComplianceEvaluator(names, cfg, r.rt.scoring, r.rt.logger, r.rt.metrics)
	r.res.EvaluatorResults = ce.Evaluate(ctx, r.contract)
	return cfgErr
}

func (r *run) dispatch(ctx context.Context) error {
	r.res.Policies = []*dispatch.Set{}
	if r.rt.dispatcher == nil {
		return r.rt.unavailable()
	}

	input, err := r.buildPolicyInput()
	if err != nil {
		return err
	}

	if r.opts.PolicyFolder != "" {
		set, err := r.rt.dispatcher.ByFolder(ctx, r.opts.PolicyFolder, input)
		if err != nil {
			return err
		}
		r.res.Policies = append(r.res.Policies, set)
		return nil
	}

	categories := r.opts.PolicyCategories
	if len(categories) == 0 {
		categories = []string{r.rt.cfg.Policy.DefaultCategory}
	}
	for _, category := range categories {
		r.res.Policies = append(r.res.Policies, r.rt.dispatcher.ByCategory(ctx, category, input))
	}
	return nil
}

// buildPolicyInput returns the document handed to the policy engine:
// the evaluation map with the contract attached under "contract" and the
// "evaluation" block extended with the run's identity, the fairness
// evaluator details and a one-line summary.
func (r *run) buildPolicyInput() (any, error) {
	if r.policyInput != nil {
		return dispatch.PlainJSON(r.policyInput)
	}

	doc := r.res.Evaluation.Map()
	flat, _ := doc["evaluation"].(map[string]any)
	if flat == nil {
		flat = map[string]any{}
		doc["evaluation"] = flat
	}

	fairness := map[string]any{}
	for _, er := range r.res.EvaluatorResults {
		if er.Name == "fairness" && er.Details != nil {
			fairness = er.Details
		}
	}

	flat["contract_id"] = r.res.ContractID
	flat["application_name"] = r.res.ApplicationName
	flat["interaction_count"] = r.res.InteractionCount
	flat["fairness_metrics"] = fairness
	flat["summary_text"] = fmt.Sprintf("Evaluation of %s with %d interactions", r.res.ApplicationName, r.res.InteractionCount)

	if r.contract != nil {
		doc["contract"] = r.contract
	}
	return dispatch.PlainJSON(doc)
}

func (r *run) report(ctx context.Context) error {
	mode := reportModes[r.res.Kind]
	prefix := report.PrefixReport
	switch {
	case r.opts.PolicyFolder != "":
		mode, prefix = "folder", report.PrefixFolder
	case len(r.res.EvaluatorResults) > 0:
		mode, prefix = "comprehensive", report.PrefixComprehensive
	}

	rep := report.Assemble(r.res.Evaluation, r.res.Policies,
		report.WithMode(mode),
		report.WithContractCount(r.res.ContractCount),
		report.WithDate(r.res.StartedAt),
		report.WithEvaluatorResults(r.res.EvaluatorResults),
		report.WithLogger(r.rt.logger),
	)

	paths, err := r.rt.reports.Write(ctx, rep, report.WriteOptions{
		Prefix:    prefix,
		Formats:   r.opts.ReportFormats,
		OutputDir: r.opts.OutputDir,
	})
	if len(paths) > 0 {
		r.res.ReportPaths = paths
	}
	return err
}

// finish computes compliance, records the run and logs the outcome.
func (r *run) finish(ctx context.Context) *Result {
	res := r.res
	res.Duration = r.rt.now().UTC().Sub(res.StartedAt)

	passed, failed, errored := res.PolicyCounts()
	res.Compliant = !res.Failed() &&
		evaluators.IsCompliant(res.EvaluatorResults) &&
		failed == 0 && errored == 0

	r.rt.metrics.RecordRun(string(res.Kind), res.Failed())

	if r.rt.recorder != nil {
		rec := &evidence.Record{
			RunID:            res.RunID,
			Kind:             res.Kind,
			ApplicationName:  res.ApplicationName,
			ContractID:       res.ContractID,
			ContractHash:     r.contractHash,
			InteractionCount: res.InteractionCount,
			PolicyTarget:     r.policyTarget(),
			PolicyVersion:    r.rt.policyVersion,
			Compliant:        res.Compliant,
			PoliciesPassed:   passed,
			PoliciesFailed:   failed,
			PolicyErrors:     errored,
			ReportPaths:      res.ReportPaths,
			StartedAt:        res.StartedAt,
			Duration:         res.Duration,
		}
		for _, er := range res.EvaluatorResults {
			rec.Evaluators = append(rec.Evaluators, er.Name)
		}
		for _, se := range res.Errors {
			rec.Errors = append(rec.Errors, se.Error())
		}
		// Failures are logged by the recorder and do not affect the result.
		_ = r.rt.recorder.Record(ctx, rec)
	}

	r.rt.logger.InfoContext(ctx, "evaluation finished",
		"kind", res.Kind,
		"compliant", res.Compliant,
		"policies_passed", passed,
		"policies_failed", failed,
		"policy_errors", errored,
		"stage_errors", len(res.Errors),
		"duration", res.Duration,
	)
	return res
}

func (r *run) policyTarget() string {
	switch {
	case r.opts.SkipPolicies:
		return ""
	case r.opts.PolicyFolder != "":
		return "folder:" + r.opts.PolicyFolder
	case len(r.opts.PolicyCategories) > 0:
		return strings.Join(r.opts.PolicyCategories, ",")
	default:
		return r.rt.cfg.Policy.DefaultCategory
	}
}
