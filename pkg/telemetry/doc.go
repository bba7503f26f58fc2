// Package telemetry groups certify's observability packages.
//
// # Components
//
//   - logging: structured slog logging with run, stage and application context
//   - metrics: Prometheus metrics for runs, stages, policies and reports,
//     written to a node_exporter textfile at the end of a command
//   - health: readiness checks behind the doctor command
//
// # Usage
//
//	logger, err := logging.New(logging.FromConfig(cfg.Telemetry.Logging))
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, prometheus.NewRegistry())
//	defer collector.WriteTextfile(cfg.Telemetry.Metrics.Textfile)
package telemetry
