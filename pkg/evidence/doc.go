// Package evidence keeps the run history of certify: one immutable Record
// per evaluation run, describing the evaluated application, the policy
// target, the outcome and the reports that were written.
//
// # Architecture
//
// The evidence system consists of four parts:
//
//  1. recorder - stamps and persists records produced by the pipeline
//  2. storage - backends implementing Storage (SQLite, in-memory)
//  3. export - JSON and CSV exporters for "certify evidence query"
//  4. retention - age-based pruning for "certify evidence prune"
//
// # Records
//
// Each record captures:
//   - The entry point (Kind) and the run ID used in log lines
//   - Application name, contract ID and a SHA-256 of the contract
//   - The policy target and, for Git-backed repositories, the commit
//   - Evaluator names, policy pass/fail/error counts and stage errors
//   - Report paths by format
//
// # Basic Usage
//
//	store, err := storage.New(cfg.Evidence, logger)
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
//
//	records, err := store.Query(ctx, &evidence.Query{
//	    ApplicationName: "CareerCoachAI",
//	    Limit:           20,
//	})
package evidence
