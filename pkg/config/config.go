package config

import "time"

// Config is the root configuration structure for certify.
// It groups the policy repository, the policy engine, the scoring backend,
// the compliance evaluators, report generation, the evidence trail and
// telemetry settings.
type Config struct {
	// Policy describes where policy rule files live and how they are indexed.
	Policy PolicyConfig `yaml:"policy"`

	// Engine selects and configures the policy engine used to evaluate rules.
	Engine EngineConfig `yaml:"engine"`

	// Scoring configures the fairness and toxicity scoring backend.
	Scoring ScoringConfig `yaml:"scoring"`

	// Evaluators configures the compliance evaluators run before policy dispatch.
	Evaluators EvaluatorsConfig `yaml:"evaluators"`

	// Report configures report rendering and output.
	Report ReportConfig `yaml:"report"`

	// Evidence configures the run history kept for every evaluation.
	Evidence EvidenceConfig `yaml:"evidence"`

	// Telemetry contains logging and metrics configuration.
	Telemetry TelemetryConfig `yaml:"telemetry"`

	// Secrets configures resolution of ${secret:name} references.
	Secrets SecretsConfig `yaml:"secrets"`
}

// SecretsConfig configures where ${secret:name} references are looked up.
// References are allowed in policy.git.repository, policy.git.auth.token,
// policy.git.auth.ssh_key_passphrase, engine.server_url and scoring.url.
type SecretsConfig struct {
	// Dir holds one file per secret, e.g. a mounted Kubernetes secret.
	// Secrets missing from Dir are read from CERTIFY_SECRET_<NAME>.
	// Default: "" (environment only)
	Dir string `yaml:"dir"`
}

// PolicyConfig describes the policy repository.
type PolicyConfig struct {
	// Root is the directory holding policy categories.
	// Layout: <root>/<category>/<subcategory>/<rule>.rego
	// Default: "./policies"
	Root string `yaml:"root"`

	// LibraryDirs are directory names whose modules are shared helpers.
	// They are loaded with every evaluation but never evaluated as rules.
	// Default: ["common", "helper_functions"]
	LibraryDirs []string `yaml:"library_dirs"`

	// Extension is the rule file extension.
	// Default: ".rego"
	Extension string `yaml:"extension"`

	// DefaultCategory is used by commands when no category is given.
	// Default: "eu_ai_act"
	DefaultCategory string `yaml:"default_category"`

	// Git configures an optional Git-backed policy repository.
	Git GitPolicyConfig `yaml:"git"`
}

// GitPolicyConfig configures Git-based policy loading.
type GitPolicyConfig struct {
	// Enabled determines if policies are synced from Git before indexing.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Repository URL (HTTPS or SSH).
	// Example: "https://github.com/company/policies.git"
	Repository string `yaml:"repository"`

	// Branch to track.
	// Default: "main"
	Branch string `yaml:"branch"`

	// Path within the repository that holds policy categories.
	// Default: "" (repository root)
	Path string `yaml:"path"`

	// LocalPath is where the repository is cloned.
	// Default: "./data/policy-repo"
	LocalPath string `yaml:"local_path"`

	// Timeout bounds clone and pull operations.
	// Default: 30s
	Timeout time.Duration `yaml:"timeout"`

	// Depth for shallow clones (0 = full clone).
	// Default: 1
	Depth int `yaml:"depth"`

	// Auth configures Git authentication.
	Auth GitAuthConfig `yaml:"auth"`
}

// GitAuthConfig configures Git authentication.
type GitAuthConfig struct {
	// Type: "token", "ssh", "none"
	// Default: "none"
	Type string `yaml:"type"`

	// Token for HTTPS authentication.
	// Required when Type is "token".
	Token string `yaml:"token"`

	// SSHKeyPath for SSH authentication.
	// Required when Type is "ssh".
	SSHKeyPath string `yaml:"ssh_key_path"`

	// SSHKeyPassphrase for encrypted SSH keys.
	SSHKeyPassphrase string `yaml:"ssh_key_passphrase"`
}

// EngineConfig configures the policy engine.
type EngineConfig struct {
	// Mode selects the engine implementation.
	// Options: "cli" (opa eval subprocess), "server" (OPA REST API)
	// Default: "cli"
	Mode string `yaml:"mode"`

	// Binary is the OPA executable used in "cli" mode.
	// Default: "opa"
	Binary string `yaml:"binary"`

	// ServerURL is the OPA server base URL used in "server" mode.
	// Also read from OPA_SERVER_URL.
	// Default: "http://localhost:8181"
	ServerURL string `yaml:"server_url"`

	// Timeout bounds a single rule evaluation.
	// Default: 30s
	Timeout time.Duration `yaml:"timeout"`

	// Debug logs engine commands and raw outputs.
	// Also read from OPA_DEBUG.
	// Default: false
	Debug bool `yaml:"debug"`

	// Client configures retries and the circuit breaker for "server" mode.
	Client ClientConfig `yaml:"client"`
}

// ClientConfig configures an outbound HTTP client.
type ClientConfig struct {
	// MaxRetries is the number of retries for transient failures.
	// Default: 3
	MaxRetries int `yaml:"max_retries"`

	// RetryBackoff is the initial Fibonacci backoff interval.
	// Default: 200ms
	RetryBackoff time.Duration `yaml:"retry_backoff"`

	// BreakerMaxFailures is the number of consecutive failures that opens the breaker.
	// Default: 5
	BreakerMaxFailures uint32 `yaml:"breaker_max_failures"`

	// BreakerTimeout is how long the breaker stays open.
	// Default: 30s
	BreakerTimeout time.Duration `yaml:"breaker_timeout"`
}

// ScoringConfig configures the fairness and toxicity scoring backend.
type ScoringConfig struct {
	// Backend selects the scorer.
	// Options: "lexicon" (built-in, offline), "http" (external scoring service)
	// Default: "lexicon"
	Backend string `yaml:"backend"`

	// URL is the scoring service endpoint for the "http" backend.
	URL string `yaml:"url"`

	// Timeout bounds a single scoring request.
	// Default: 60s
	Timeout time.Duration `yaml:"timeout"`

	// ToxicityThreshold marks a response as toxic at or above this score.
	// Default: 0.5
	ToxicityThreshold float64 `yaml:"toxicity_threshold"`

	// Client configures retries and the circuit breaker for the "http" backend.
	Client ClientConfig `yaml:"client"`
}

// EvaluatorsConfig configures the compliance evaluators.
type EvaluatorsConfig struct {
	// Enabled lists the evaluators to run, in order. Empty runs all.
	// Options: "fairness", "content_safety", "risk_management"
	Enabled []string `yaml:"enabled"`

	// Settings holds evaluator settings keyed by setting name.
	// Decoded per evaluator, e.g. toxicity_threshold: 0.1
	Settings map[string]any `yaml:"settings"`
}

// ReportConfig configures report output.
type ReportConfig struct {
	// OutputDir is where reports are written.
	// Default: "reports"
	OutputDir string `yaml:"output_dir"`

	// Formats lists the report formats to produce.
	// Options: "markdown", "html", "pdf", "json"
	// Default: ["markdown"]
	Formats []string `yaml:"formats"`

	// PDFCommand is the external converter used for PDF output.
	// It is invoked as: <command> <input.md> -o <output.pdf>
	// Default: "pandoc"
	PDFCommand string `yaml:"pdf_command"`

	// PDFTimeout bounds the PDF converter.
	// Default: 60s
	PDFTimeout time.Duration `yaml:"pdf_timeout"`
}

// EvidenceConfig configures the evaluation run history.
type EvidenceConfig struct {
	// Enabled controls whether runs are recorded.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Backend selects the storage backend.
	// Options: "sqlite", "memory"
	// Default: "sqlite"
	Backend string `yaml:"backend"`

	// SQLite contains SQLite-specific configuration.
	SQLite SQLiteConfig `yaml:"sqlite"`

	// RetentionDays is the default age used by "evidence prune".
	// Default: 90
	RetentionDays int `yaml:"retention_days"`
}

// SQLiteConfig configures the SQLite evidence store.
type SQLiteConfig struct {
	// Path is the database file path.
	// Default: "data/evidence.db"
	Path string `yaml:"path"`

	// Driver is the database/sql driver name.
	// Options: "sqlite3" (cgo, mattn/go-sqlite3), "sqlite" (pure Go, modernc.org/sqlite)
	// Default: "sqlite3"
	Driver string `yaml:"driver"`

	// MaxOpenConns is the maximum number of open connections.
	// Default: 4
	MaxOpenConns int `yaml:"max_open_conns"`

	// WALMode enables write-ahead logging.
	// Default: true
	WALMode bool `yaml:"wal_mode"`

	// BusyTimeout is how long to wait for a locked database.
	// Default: 5s
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

// TelemetryConfig contains observability configuration.
type TelemetryConfig struct {
	// Logging contains logging configuration.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics contains metrics collection configuration.
	Metrics MetricsConfig `yaml:"metrics"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level to emit.
	// Options: "debug", "info", "warn", "error"
	// Default: "info"
	Level string `yaml:"level"`

	// Format controls the log output format.
	// Options: "json", "text", "console"
	// Default: "text"
	Format string `yaml:"format"`

	// AddSource includes file and line number in log entries.
	// Default: false
	AddSource bool `yaml:"add_source"`

	// RedactPII enables PII redaction of logged attributes.
	// Contract text is user data, so this defaults to on.
	// Default: true
	RedactPII bool `yaml:"redact_pii"`

	// RedactPatterns contains custom PII redaction patterns.
	RedactPatterns []RedactPattern `yaml:"redact_patterns"`
}

// RedactPattern defines a custom PII redaction pattern.
type RedactPattern struct {
	// Name is a descriptive name for the pattern.
	Name string `yaml:"name"`

	// Pattern is the regular expression to match.
	Pattern string `yaml:"pattern"`

	// Replacement is the string to replace matches with.
	Replacement string `yaml:"replacement"`
}

// MetricsConfig contains metrics collection configuration.
type MetricsConfig struct {
	// Enabled controls whether metrics are collected.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Namespace is the metric name prefix.
	// Default: "certify"
	Namespace string `yaml:"namespace"`

	// Textfile, when set, receives the metrics in Prometheus text format
	// at the end of every command (node exporter textfile collector).
	Textfile string `yaml:"textfile"`

	// StageDurationBuckets defines histogram buckets for stage durations (seconds).
	// Default: [0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60]
	StageDurationBuckets []float64 `yaml:"stage_duration_buckets"`
}
