// Package metrics provides Prometheus metrics collection for certify.
//
// # Metrics Categories
//
//   - Run Metrics: runs by entry point, stage durations and failures,
//     compliance evaluator results, report outputs
//   - Policy Metrics: rule outcomes by category, engine latency, empty
//     dispatches
//
// # Usage
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//	collector.RecordPolicyOutcome("eu_ai_act", "pass", elapsed)
//	_ = collector.WriteTextfile("/var/lib/node_exporter/certify.prom")
package metrics
