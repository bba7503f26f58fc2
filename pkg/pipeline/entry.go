package pipeline

import (
	"context"
	"errors"

	"mercator-hq/certify/pkg/contract"
	"mercator-hq/certify/pkg/evidence"
	"mercator-hq/certify/pkg/policy/dispatch"
)

var errNoContract = errors.New("no contract given")

// EvaluateContract runs the pipeline on a loaded contract.
func (rt *Runtime) EvaluateContract(ctx context.Context, c *contract.Contract, opts Options) *Result {
	r := rt.newRun(evidence.KindContract, opts)
	r.load = func(context.Context, *run) (*contract.Contract, error) {
		if c == nil {
			return nil, errNoContract
		}
		return c, nil
	}
	return r.execute(ctx)
}

// EvaluateContractFile loads a contract file and runs the pipeline on it.
// A file that cannot be loaded fails the LOAD stage only.
func (rt *Runtime) EvaluateContractFile(ctx context.Context, path string, opts Options) *Result {
	r := rt.newRun(evidence.KindContract, opts)
	r.load = func(context.Context, *run) (*contract.Contract, error) {
		return contract.Load(path)
	}
	return r.execute(ctx)
}

// EvaluateConversations adapts raw prompt/response pairs into a contract
// of appName and runs the pipeline on it.
func (rt *Runtime) EvaluateConversations(ctx context.Context, appName string, conversations []contract.Conversation, opts Options) *Result {
	r := rt.newRun(evidence.KindConversations, opts)
	r.res.ApplicationName = appName
	r.load = func(context.Context, *run) (*contract.Contract, error) {
		return contract.FromConversations(appName, conversations)
	}
	return r.execute(ctx)
}

// EvaluateFolder consolidates every contract of appName found in dir into
// one contract and runs the pipeline on it. Files that fail to load are
// listed in Result.Skipped; the run fails only when no contract is left.
func (rt *Runtime) EvaluateFolder(ctx context.Context, dir, appName string, opts Options) *Result {
	r := rt.newRun(evidence.KindFolder, opts)
	r.res.ApplicationName = appName
	r.load = func(ctx context.Context, r *run) (*contract.Contract, error) {
		contracts, errs := contract.LoadFolder(dir, appName)
		if len(contracts) == 0 && len(errs) == 1 && isDirError(dir, errs[0]) {
			return nil, errs[0]
		}
		for _, err := range errs {
			r.res.Skipped = append(r.res.Skipped, err.Error())
			rt.logger.WarnContext(ctx, "skipping contract", "error", err)
		}
		c, err := contract.Consolidate(appName, contracts)
		if err != nil {
			return nil, err
		}
		r.res.ContractCount = len(contracts)
		rt.logger.InfoContext(ctx, "contracts consolidated",
			"contracts", len(contracts),
			"interactions", len(c.Interactions),
		)
		return c, nil
	}
	return r.execute(ctx)
}

// isDirError reports whether err is the failure to read dir itself.
func isDirError(dir string, err error) bool {
	var le *contract.LoadError
	return errors.As(err, &le) && le.Path == dir
}

// EvaluatePolicyInput dispatches an arbitrary JSON document to the
// policies. The document is also normalized so that reports show any
// metrics it carries. Compliance evaluators do not run.
func (rt *Runtime) EvaluatePolicyInput(ctx context.Context, input map[string]any, opts Options) *Result {
	opts.SkipEvaluators = true
	r := rt.newRun(evidence.KindPolicyInput, opts)
	if input == nil {
		input = map[string]any{}
	}
	r.rawEvaluation = input
	r.policyInput = input
	return r.execute(ctx)
}

// GenerateReport renders reports for an existing evaluation and policy
// outcomes without evaluating anything.
func (rt *Runtime) GenerateReport(ctx context.Context, rawEvaluation map[string]any, policies []*dispatch.Set, opts Options) *Result {
	opts.SkipEvaluators = true
	opts.SkipPolicies = true
	opts.GenerateReport = true
	r := rt.newRun(evidence.KindReport, opts)
	if rawEvaluation == nil {
		rawEvaluation = map[string]any{}
	}
	r.rawEvaluation = rawEvaluation
	r.res.Policies = policies
	return r.execute(ctx)
}
