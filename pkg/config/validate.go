package config

import (
	"fmt"
	"net/url"
	"strings"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g., "engine.mode").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a configuration.
// It implements the error interface and provides access to all field errors.
type ValidationError struct {
	// Errors contains all validation errors found in the configuration.
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// KnownEvaluators lists the evaluator names accepted in evaluators.enabled.
var KnownEvaluators = []string{"fairness", "content_safety", "risk_management"}

// KnownReportFormats lists the values accepted in report.formats.
var KnownReportFormats = []string{"markdown", "html", "pdf", "json"}

// Validate validates the entire configuration and returns a ValidationError
// if any validation rules fail. It returns nil if the configuration is valid.
// All validation errors are collected and returned together.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validatePolicy(&cfg.Policy)...)
	errs = append(errs, validateEngine(&cfg.Engine)...)
	errs = append(errs, validateScoring(&cfg.Scoring)...)
	errs = append(errs, validateEvaluators(&cfg.Evaluators)...)
	errs = append(errs, validateReport(&cfg.Report)...)
	errs = append(errs, validateEvidence(&cfg.Evidence)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}

	return nil
}

// validatePolicy validates policy repository configuration.
func validatePolicy(cfg *PolicyConfig) []FieldError {
	var errs []FieldError

	if cfg.Root == "" {
		errs = append(errs, FieldError{
			Field:   "policy.root",
			Message: "policy root is required",
		})
	}
	if cfg.Extension != "" && !strings.HasPrefix(cfg.Extension, ".") {
		errs = append(errs, FieldError{
			Field:   "policy.extension",
			Message: fmt.Sprintf("extension %q must start with '.'", cfg.Extension),
		})
	}

	if !cfg.Git.Enabled {
		return errs
	}

	if cfg.Git.Repository == "" {
		errs = append(errs, FieldError{
			Field:   "policy.git.repository",
			Message: "repository is required when git is enabled",
		})
	}
	if cfg.Git.Timeout < 0 {
		errs = append(errs, FieldError{
			Field:   "policy.git.timeout",
			Message: "timeout must be positive",
		})
	}
	if cfg.Git.Depth < 0 {
		errs = append(errs, FieldError{
			Field:   "policy.git.depth",
			Message: "depth must be non-negative",
		})
	}

	switch cfg.Git.Auth.Type {
	case "none":
	case "token":
		if cfg.Git.Auth.Token == "" {
			errs = append(errs, FieldError{
				Field:   "policy.git.auth.token",
				Message: "token is required when auth type is 'token'",
			})
		}
	case "ssh":
		if cfg.Git.Auth.SSHKeyPath == "" {
			errs = append(errs, FieldError{
				Field:   "policy.git.auth.ssh_key_path",
				Message: "ssh key path is required when auth type is 'ssh'",
			})
		}
	default:
		errs = append(errs, FieldError{
			Field:   "policy.git.auth.type",
			Message: fmt.Sprintf("invalid auth type %q: must be 'token', 'ssh', or 'none'", cfg.Git.Auth.Type),
		})
	}

	return errs
}

// validateEngine validates policy engine configuration.
func validateEngine(cfg *EngineConfig) []FieldError {
	var errs []FieldError

	switch cfg.Mode {
	case "cli":
		if cfg.Binary == "" {
			errs = append(errs, FieldError{
				Field:   "engine.binary",
				Message: "binary is required in cli mode",
			})
		}
	case "server":
		errs = append(errs, validateURL("engine.server_url", cfg.ServerURL)...)
	default:
		errs = append(errs, FieldError{
			Field:   "engine.mode",
			Message: fmt.Sprintf("invalid engine mode %q: must be 'cli' or 'server'", cfg.Mode),
		})
	}

	if cfg.Timeout < 0 {
		errs = append(errs, FieldError{
			Field:   "engine.timeout",
			Message: "timeout must be positive",
		})
	}
	errs = append(errs, validateClient("engine.client", &cfg.Client)...)

	return errs
}

// validateScoring validates scoring backend configuration.
func validateScoring(cfg *ScoringConfig) []FieldError {
	var errs []FieldError

	switch cfg.Backend {
	case "lexicon":
	case "http":
		errs = append(errs, validateURL("scoring.url", cfg.URL)...)
	default:
		errs = append(errs, FieldError{
			Field:   "scoring.backend",
			Message: fmt.Sprintf("invalid scoring backend %q: must be 'lexicon' or 'http'", cfg.Backend),
		})
	}

	if cfg.ToxicityThreshold < 0 || cfg.ToxicityThreshold > 1 {
		errs = append(errs, FieldError{
			Field:   "scoring.toxicity_threshold",
			Message: "toxicity threshold must be between 0.0 and 1.0",
		})
	}
	errs = append(errs, validateClient("scoring.client", &cfg.Client)...)

	return errs
}

// validateEvaluators validates the evaluator selection.
func validateEvaluators(cfg *EvaluatorsConfig) []FieldError {
	var errs []FieldError

	for i, name := range cfg.Enabled {
		if !contains(KnownEvaluators, name) {
			errs = append(errs, FieldError{
				Field:   fmt.Sprintf("evaluators.enabled[%d]", i),
				Message: fmt.Sprintf("unknown evaluator %q: must be one of %s", name, strings.Join(KnownEvaluators, ", ")),
			})
		}
	}

	return errs
}

// validateReport validates report configuration.
func validateReport(cfg *ReportConfig) []FieldError {
	var errs []FieldError

	if cfg.OutputDir == "" {
		errs = append(errs, FieldError{
			Field:   "report.output_dir",
			Message: "output directory is required",
		})
	}
	for i, format := range cfg.Formats {
		if !contains(KnownReportFormats, format) {
			errs = append(errs, FieldError{
				Field:   fmt.Sprintf("report.formats[%d]", i),
				Message: fmt.Sprintf("unknown report format %q: must be one of %s", format, strings.Join(KnownReportFormats, ", ")),
			})
		}
	}

	return errs
}

// validateEvidence validates evidence configuration.
func validateEvidence(cfg *EvidenceConfig) []FieldError {
	var errs []FieldError

	if !cfg.Enabled {
		return errs
	}

	switch cfg.Backend {
	case "memory":
	case "sqlite":
		if cfg.SQLite.Path == "" {
			errs = append(errs, FieldError{
				Field:   "evidence.sqlite.path",
				Message: "sqlite path is required when backend is 'sqlite'",
			})
		}
		if cfg.SQLite.Driver != "sqlite3" && cfg.SQLite.Driver != "sqlite" {
			errs = append(errs, FieldError{
				Field:   "evidence.sqlite.driver",
				Message: fmt.Sprintf("invalid sqlite driver %q: must be 'sqlite3' or 'sqlite'", cfg.SQLite.Driver),
			})
		}
		if cfg.SQLite.MaxOpenConns < 0 {
			errs = append(errs, FieldError{
				Field:   "evidence.sqlite.max_open_conns",
				Message: "max open connections must be non-negative",
			})
		}
	default:
		errs = append(errs, FieldError{
			Field:   "evidence.backend",
			Message: fmt.Sprintf("invalid evidence backend %q: must be 'sqlite' or 'memory'", cfg.Backend),
		})
	}

	if cfg.RetentionDays < 0 {
		errs = append(errs, FieldError{
			Field:   "evidence.retention_days",
			Message: "retention days must be non-negative",
		})
	}

	return errs
}

// validateTelemetry validates telemetry configuration.
func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if cfg.Logging.Level == "" {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: "logging level is required",
		})
	} else if !validLevels[cfg.Logging.Level] {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: fmt.Sprintf("invalid logging level %q: must be 'debug', 'info', 'warn', or 'error'", cfg.Logging.Level),
		})
	}

	validFormats := map[string]bool{"json": true, "text": true, "console": true}
	if cfg.Logging.Format == "" {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: "logging format is required",
		})
	} else if !validFormats[cfg.Logging.Format] {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: fmt.Sprintf("invalid logging format %q: must be 'json', 'text', or 'console'", cfg.Logging.Format),
		})
	}

	for i, p := range cfg.Logging.RedactPatterns {
		if p.Name == "" || p.Pattern == "" {
			errs = append(errs, FieldError{
				Field:   fmt.Sprintf("telemetry.logging.redact_patterns[%d]", i),
				Message: "name and pattern are required",
			})
		}
	}

	if cfg.Metrics.Enabled && cfg.Metrics.Namespace == "" {
		errs = append(errs, FieldError{
			Field:   "telemetry.metrics.namespace",
			Message: "namespace is required when metrics are enabled",
		})
	}

	return errs
}

func validateClient(prefix string, cfg *ClientConfig) []FieldError {
	var errs []FieldError

	if cfg.MaxRetries < 0 {
		errs = append(errs, FieldError{
			Field:   prefix + ".max_retries",
			Message: "max retries must be non-negative",
		})
	}
	if cfg.RetryBackoff < 0 {
		errs = append(errs, FieldError{
			Field:   prefix + ".retry_backoff",
			Message: "retry backoff must be positive",
		})
	}
	if cfg.BreakerTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   prefix + ".breaker_timeout",
			Message: "breaker timeout must be positive",
		})
	}

	return errs
}

func validateURL(field, raw string) []FieldError {
	if raw == "" {
		return []FieldError{{Field: field, Message: "url is required"}}
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return []FieldError{{Field: field, Message: fmt.Sprintf("invalid url %q: must be an absolute http(s) URL", raw)}}
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
