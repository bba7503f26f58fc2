// Package logging builds the structured logger used across certify.
//
// # Overview
//
// The package wraps Go's standard log/slog handlers to provide:
//   - JSON, text and console formats
//   - PII redaction of every string attribute (emails, phone numbers,
//     API keys, bearer tokens, SSNs, card numbers)
//   - Context fields (run_id, contract_id, application, category, stage)
//     attached from context.Context
//
// # Usage
//
//	logger, err := logging.New(logging.Config{
//	    Level:     "info",
//	    Format:    "json",
//	    RedactPII: true,
//	})
//
//	ctx = logging.WithRunID(ctx, runID)
//	logger.InfoContext(ctx, "policy evaluated",
//	    "policy", "eu_ai_act/fairness/bias",
//	    "response", resp, // redacted
//	)
//
// Components receive a *slog.Logger and never build their own handler.
package logging
