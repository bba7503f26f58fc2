// Certify evaluates AI application interaction logs ("contracts") for
// regulatory compliance.
//
// It scores contracts for toxicity and bias, runs compliance evaluators,
// evaluates the result against a repository of OPA/Rego policies and
// renders audit reports.
//
// Usage:
//
//	# Evaluate an evaluation document against a policy category
//	certify eval-policy --category eu_ai_act --input evaluation.json
//
//	# Consolidated evaluation of every contract of one application
//	certify eval-folder --app-name support-bot --folder contracts/ --output consolidated.json
//
//	# Consolidated evaluation followed by policy evaluation
//	certify eval-all --app-name support-bot --folder contracts/ --output consolidated.json --category eu_ai_act
//
//	# Full evaluation of one contract with reports
//	certify eval-contract --contract contract.json --category eu_ai_act --report --format markdown,pdf
//
//	# Query run history
//	certify evidence query --app support-bot --since 168h
//
//	# Check that opa, the policy root and the evidence store are usable
//	certify doctor
package main

func main() {
	Execute()
}
