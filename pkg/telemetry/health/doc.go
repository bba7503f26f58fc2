// Package health runs readiness checks on the collaborators an evaluation
// depends on: the policy repository, the OPA engine, the scoring backend,
// the PDF converter and the evidence store.
//
// # Usage
//
//	checker := health.New(5 * time.Second)
//	checker.RegisterCheck("opa", func(ctx context.Context) error {
//	    _, err := exec.LookPath("opa")
//	    return err
//	})
//	checker.RegisterCheck("pdf", func(ctx context.Context) error {
//	    return health.Skip("pdf reports are not enabled")
//	})
//
//	status := checker.CheckReadiness(ctx)
//	if status.Status != health.StatusReady {
//	    // at least one check failed
//	}
//
// Checks run concurrently, each bounded by the checker timeout. Results
// keep registration order so that output is stable.
package health
