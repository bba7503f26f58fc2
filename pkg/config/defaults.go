package config

import "time"

// Default values for configuration fields.
const (
	// Policy defaults
	DefaultPolicyRoot            = "./policies"
	DefaultPolicyExtension       = ".rego"
	DefaultPolicyCategory        = "eu_ai_act"
	DefaultPolicyGitBranch       = "main"
	DefaultPolicyGitLocalPath    = "./data/policy-repo"
	DefaultPolicyGitTimeout      = 30 * time.Second
	DefaultPolicyGitDepth        = 1
	DefaultPolicyGitAuthType     = "none"
	DefaultEngineMode            = "cli"
	DefaultEngineBinary          = "opa"
	DefaultEngineServerURL       = "http://localhost:8181"
	DefaultEngineTimeout         = 30 * time.Second
	DefaultClientMaxRetries      = 3
	DefaultClientRetryBackoff    = 200 * time.Millisecond
	DefaultClientBreakerFailures = uint32(5)
	DefaultClientBreakerTimeout  = 30 * time.Second

	// Scoring defaults
	DefaultScoringBackend    = "lexicon"
	DefaultScoringTimeout    = 60 * time.Second
	DefaultToxicityThreshold = 0.5

	// Report defaults
	DefaultReportOutputDir  = "reports"
	DefaultReportFormat     = "markdown"
	DefaultReportPDFCommand = "pandoc"
	DefaultReportPDFTimeout = 60 * time.Second

	// Evidence defaults
	DefaultEvidenceEnabled           = true
	DefaultEvidenceBackend           = "sqlite"
	DefaultEvidenceSQLitePath        = "data/evidence.db"
	DefaultEvidenceSQLiteDriver      = "sqlite3"
	DefaultEvidenceSQLiteMaxOpen     = 4
	DefaultEvidenceSQLiteWALMode     = true
	DefaultEvidenceSQLiteBusyTimeout = 5 * time.Second
	DefaultEvidenceRetentionDays     = 90

	// Telemetry defaults
	DefaultLoggingLevel     = "info"
	DefaultLoggingFormat    = "text"
	DefaultLoggingRedactPII = true
	DefaultMetricsEnabled   = true
	DefaultMetricsNamespace = "certify"
)

// DefaultLibraryDirs are the shared-module directories of a policy repository.
var DefaultLibraryDirs = []string{"common", "helper_functions"}

// DefaultStageDurationBuckets are the histogram buckets for pipeline stage durations.
var DefaultStageDurationBuckets = []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60}

// DefaultConfig returns a configuration with every default applied.
// LoadConfig decodes YAML on top of this value so that boolean settings
// defaulting to true stay true unless the file sets them.
func DefaultConfig() *Config {
	cfg := &Config{
		Evidence: EvidenceConfig{
			Enabled: DefaultEvidenceEnabled,
			SQLite: SQLiteConfig{
				WALMode: DefaultEvidenceSQLiteWALMode,
			},
		},
		Telemetry: TelemetryConfig{
			Logging: LoggingConfig{
				RedactPII: DefaultLoggingRedactPII,
			},
			Metrics: MetricsConfig{
				Enabled: DefaultMetricsEnabled,
			},
		},
	}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults applies default values to a Config struct.
// It sets defaults for any fields that have zero values.
// This function is idempotent and safe to call multiple times.
func ApplyDefaults(cfg *Config) {
	// Policy defaults
	if cfg.Policy.Root == "" {
		cfg.Policy.Root = DefaultPolicyRoot
	}
	if cfg.Policy.LibraryDirs == nil {
		cfg.Policy.LibraryDirs = append([]string(nil), DefaultLibraryDirs...)
	}
	if cfg.Policy.Extension == "" {
		cfg.Policy.Extension = DefaultPolicyExtension
	}
	if cfg.Policy.DefaultCategory == "" {
		cfg.Policy.DefaultCategory = DefaultPolicyCategory
	}
	if cfg.Policy.Git.Branch == "" {
		cfg.Policy.Git.Branch = DefaultPolicyGitBranch
	}
	if cfg.Policy.Git.LocalPath == "" {
		cfg.Policy.Git.LocalPath = DefaultPolicyGitLocalPath
	}
	if cfg.Policy.Git.Timeout == 0 {
		cfg.Policy.Git.Timeout = DefaultPolicyGitTimeout
	}
	if cfg.Policy.Git.Depth == 0 {
		cfg.Policy.Git.Depth = DefaultPolicyGitDepth
	}
	if cfg.Policy.Git.Auth.Type == "" {
		cfg.Policy.Git.Auth.Type = DefaultPolicyGitAuthType
	}

	// Engine defaults
	if cfg.Engine.Mode == "" {
		cfg.Engine.Mode = DefaultEngineMode
	}
	if cfg.Engine.Binary == "" {
		cfg.Engine.Binary = DefaultEngineBinary
	}
	if cfg.Engine.ServerURL == "" {
		cfg.Engine.ServerURL = DefaultEngineServerURL
	}
	if cfg.Engine.Timeout == 0 {
		cfg.Engine.Timeout = DefaultEngineTimeout
	}
	applyClientDefaults(&cfg.Engine.Client)

	// Scoring defaults
	if cfg.Scoring.Backend == "" {
		cfg.Scoring.Backend = DefaultScoringBackend
	}
	if cfg.Scoring.Timeout == 0 {
		cfg.Scoring.Timeout = DefaultScoringTimeout
	}
	if cfg.Scoring.ToxicityThreshold == 0 {
		cfg.Scoring.ToxicityThreshold = DefaultToxicityThreshold
	}
	applyClientDefaults(&cfg.Scoring.Client)

	// Report defaults
	if cfg.Report.OutputDir == "" {
		cfg.Report.OutputDir = DefaultReportOutputDir
	}
	if len(cfg.Report.Formats) == 0 {
		cfg.Report.Formats = []string{DefaultReportFormat}
	}
	if cfg.Report.PDFCommand == "" {
		cfg.Report.PDFCommand = DefaultReportPDFCommand
	}
	if cfg.Report.PDFTimeout == 0 {
		cfg.Report.PDFTimeout = DefaultReportPDFTimeout
	}

	// Evidence defaults
	if cfg.Evidence.Backend == "" {
		cfg.Evidence.Backend = DefaultEvidenceBackend
	}
	if cfg.Evidence.SQLite.Path == "" {
		cfg.Evidence.SQLite.Path = DefaultEvidenceSQLitePath
	}
	if cfg.Evidence.SQLite.Driver == "" {
		cfg.Evidence.SQLite.Driver = DefaultEvidenceSQLiteDriver
	}
	if cfg.Evidence.SQLite.MaxOpenConns == 0 {
		cfg.Evidence.SQLite.MaxOpenConns = DefaultEvidenceSQLiteMaxOpen
	}
	if cfg.Evidence.SQLite.BusyTimeout == 0 {
		cfg.Evidence.SQLite.BusyTimeout = DefaultEvidenceSQLiteBusyTimeout
	}
	if cfg.Evidence.RetentionDays == 0 {
		cfg.Evidence.RetentionDays = DefaultEvidenceRetentionDays
	}

	// Telemetry defaults
	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = DefaultLoggingLevel
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = DefaultLoggingFormat
	}
	if cfg.Telemetry.Metrics.Namespace == "" {
		cfg.Telemetry.Metrics.Namespace = DefaultMetricsNamespace
	}
	if len(cfg.Telemetry.Metrics.StageDurationBuckets) == 0 {
		cfg.Telemetry.Metrics.StageDurationBuckets = append([]float64(nil), DefaultStageDurationBuckets...)
	}
}

func applyClientDefaults(c *ClientConfig) {
	if c.MaxRetries == 0 {
		c.MaxRetries = DefaultClientMaxRetries
	}
	if c.RetryBackoff == 0 {
		c.RetryBackoff = DefaultClientRetryBackoff
	}
	if c.BreakerMaxFailures == 0 {
		c.BreakerMaxFailures = DefaultClientBreakerFailures
	}
	if c.BreakerTimeout == 0 {
		c.BreakerTimeout = DefaultClientBreakerTimeout
	}
}

// MinimalConfig returns the smallest valid configuration: all defaults,
// in-memory evidence and metrics disabled. Intended for tests and
// embedding.
func MinimalConfig() *Config {
	cfg := DefaultConfig()
	cfg.Evidence.Backend = "memory"
	cfg.Telemetry.Metrics.Enabled = false
	return cfg
}
