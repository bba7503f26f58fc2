package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"mercator-hq/certify/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector owns the Prometheus registry for a certify process and exposes
// one recording method per event the pipeline emits.
//
// certify runs as a short-lived command, so nothing is scraped; instead
// the registry is written as a node exporter textfile when the command
// finishes (see WriteTextfile).
//
// A nil *Collector is valid and records nothing, which keeps call sites
// free of enabled checks.
type Collector struct {
	config   *config.MetricsConfig
	registry *prometheus.Registry

	runMetrics    *RunMetrics
	policyMetrics *PolicyMetrics
}

// NewCollector creates a new metrics collector with the specified configuration
// and Prometheus registry. If registry is nil, a fresh registry is created.
//
// Example:
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//	defer collector.WriteTextfile(cfg.Telemetry.Metrics.Textfile)
func NewCollector(cfg *config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	if cfg.Namespace == "" {
		cfg.Namespace = config.DefaultMetricsNamespace
	}
	if len(cfg.StageDurationBuckets) == 0 {
		cfg.StageDurationBuckets = config.DefaultStageDurationBuckets
	}

	return &Collector{
		config:        cfg,
		registry:      registry,
		runMetrics:    NewRunMetrics(cfg, registry),
		policyMetrics: NewPolicyMetrics(cfg, registry),
	}
}

func (c *Collector) active() bool {
	return c != nil && c.config.Enabled
}

// RecordRun records a finished pipeline run.
//
// Parameters:
//   - entry: Entry point ("contract", "conversations", "folder", "policy_input", "report")
//   - degraded: Whether any stage failed
func (c *Collector) RecordRun(entry string, degraded bool) {
	if !c.active() {
		return
	}
	status := "ok"
	if degraded {
		status = "degraded"
	}
	c.runMetrics.RecordRun(entry, status)
}

// RecordStage records a pipeline stage.
func (c *Collector) RecordStage(stage string, duration time.Duration, failed bool) {
	if !c.active() {
		return
	}
	c.runMetrics.RecordStage(stage, duration, failed)
}

// RecordEvaluator records a compliance evaluator result.
func (c *Collector) RecordEvaluator(name string, compliant bool) {
	if !c.active() {
		return
	}
	c.runMetrics.RecordEvaluator(name, compliant)
}

// RecordReport records a report output.
func (c *Collector) RecordReport(format, status string) {
	if !c.active() {
		return
	}
	c.runMetrics.RecordReport(format, status)
}

// RecordPolicyOutcome records a single rule outcome.
func (c *Collector) RecordPolicyOutcome(category, result string, duration time.Duration) {
	if !c.active() {
		return
	}
	c.policyMetrics.RecordOutcome(category, result, duration)
}

// RecordEmptyDispatch records a dispatch that matched no rule files.
func (c *Collector) RecordEmptyDispatch(mode string) {
	if !c.active() {
		return
	}
	c.policyMetrics.RecordEmptyDispatch(mode)
}

// Registry returns the underlying Prometheus registry.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// WriteTextfile writes every gathered metric to path in the Prometheus
// text exposition format. The write is atomic (temp file + rename). An
// empty path, a nil collector or disabled metrics are no-ops.
func (c *Collector) WriteTextfile(path string) error {
	if !c.active() || path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create metrics directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, c.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile %q: %w", path, err)
	}
	return nil
}
