// Package pipeline composes contract loading, scoring, compliance
// evaluators, policy dispatch and reporting into one run.
//
// # Stages
//
// Every entry point adapts its input into a contract and runs the same
// sequence:
//
//	LOAD -> NORMALIZE -> EVALUATE -> DISPATCH -> REPORT
//
// Each stage is isolated. A failed stage appends a StageError to the
// Result and the following stages run on degraded input: a contract that
// could not be scored is dispatched with default metrics, a dispatch that
// failed leaves an empty policy list for the report. Entry points never
// return an error; callers inspect Result.Error.
//
// # Runtime
//
// Runtime is the explicit context object shared by runs: configuration,
// logger, scoring backend, policy index and dispatcher, report writer,
// evidence recorder and metrics. Tests build one with fakes through the
// With* options.
//
//	rt, err := pipeline.NewRuntime(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	defer rt.Close()
//
//	res := rt.EvaluateContractFile(ctx, "contract.json", pipeline.Options{
//	    PolicyCategories: []string{"eu_ai_act"},
//	    GenerateReport:   true,
//	})
//	if res.Error != "" {
//	    log.Printf("partial result: %s", res.Error)
//	}
package pipeline
