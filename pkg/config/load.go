package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of every environment variable override.
const EnvPrefix = "CERTIFY_"

// LoadConfig loads configuration from a YAML file at the specified path.
// The file is decoded on top of DefaultConfig, remaining zero values get
// defaults, and the result is validated. Environment variables are not
// consulted; use LoadConfigWithEnvOverrides for that.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	ApplyDefaults(cfg)

	if err := ResolveSecrets(context.Background(), cfg); err != nil {
		return nil, fmt.Errorf("configuration file %q: %w", path, err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and applies
// environment variable overrides. Environment variables follow the naming
// convention CERTIFY_SECTION_FIELD (e.g., CERTIFY_ENGINE_MODE) and always
// take precedence over the file. OPA_SERVER_URL and OPA_DEBUG are honored
// as well, below their CERTIFY_ counterparts.
//
// An empty path, or a path that does not exist, yields the defaults.
//
// The loading sequence is:
// 1. Load YAML from file (or defaults)
// 2. Apply default values
// 3. Apply environment variable overrides
// 4. Validate final configuration
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	var cfg *Config
	if path == "" {
		cfg = DefaultConfig()
	} else {
		loaded, err := LoadConfig(path)
		switch {
		case err == nil:
			cfg = loaded
		case errors.Is(err, fs.ErrNotExist):
			cfg = DefaultConfig()
		default:
			return nil, err
		}
	}

	applyEnvOverrides(cfg)

	if err := ResolveSecrets(context.Background(), cfg); err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func applyEnvOverrides(cfg *Config) {
	// Engine variables understood by the OPA tooling itself
	if val := os.Getenv("OPA_SERVER_URL"); val != "" {
		cfg.Engine.ServerURL = val
	}
	if val := os.Getenv("OPA_DEBUG"); val != "" {
		cfg.Engine.Debug = parseLooseBool(val)
	}

	// Policy overrides
	envString("POLICY_ROOT", &cfg.Policy.Root)
	envString("POLICY_DEFAULT_CATEGORY", &cfg.Policy.DefaultCategory)
	envList("POLICY_LIBRARY_DIRS", &cfg.Policy.LibraryDirs)
	envBool("POLICY_GIT_ENABLED", &cfg.Policy.Git.Enabled)
	envString("POLICY_GIT_REPOSITORY", &cfg.Policy.Git.Repository)
	envString("POLICY_GIT_BRANCH", &cfg.Policy.Git.Branch)
	envString("POLICY_GIT_PATH", &cfg.Policy.Git.Path)
	envString("POLICY_GIT_LOCAL_PATH", &cfg.Policy.Git.LocalPath)
	envString("POLICY_GIT_AUTH_TYPE", &cfg.Policy.Git.Auth.Type)
	envString("POLICY_GIT_AUTH_TOKEN", &cfg.Policy.Git.Auth.Token)
	envString("POLICY_GIT_AUTH_SSH_KEY_PATH", &cfg.Policy.Git.Auth.SSHKeyPath)

	// Engine overrides
	envString("ENGINE_MODE", &cfg.Engine.Mode)
	envString("ENGINE_BINARY", &cfg.Engine.Binary)
	envString("ENGINE_SERVER_URL", &cfg.Engine.ServerURL)
	envDuration("ENGINE_TIMEOUT", &cfg.Engine.Timeout)
	envBool("ENGINE_DEBUG", &cfg.Engine.Debug)

	// Scoring overrides
	envString("SCORING_BACKEND", &cfg.Scoring.Backend)
	envString("SCORING_URL", &cfg.Scoring.URL)
	envDuration("SCORING_TIMEOUT", &cfg.Scoring.Timeout)
	envFloat("SCORING_TOXICITY_THRESHOLD", &cfg.Scoring.ToxicityThreshold)

	// Evaluator overrides
	envList("EVALUATORS_ENABLED", &cfg.Evaluators.Enabled)

	// Report overrides
	envString("REPORT_OUTPUT_DIR", &cfg.Report.OutputDir)
	envList("REPORT_FORMATS", &cfg.Report.Formats)
	envString("REPORT_PDF_COMMAND", &cfg.Report.PDFCommand)

	// Evidence overrides
	envBool("EVIDENCE_ENABLED", &cfg.Evidence.Enabled)
	envString("EVIDENCE_BACKEND", &cfg.Evidence.Backend)
	envString("EVIDENCE_SQLITE_PATH", &cfg.Evidence.SQLite.Path)
	envString("EVIDENCE_SQLITE_DRIVER", &cfg.Evidence.SQLite.Driver)
	envInt("EVIDENCE_RETENTION_DAYS", &cfg.Evidence.RetentionDays)

	// Telemetry overrides
	envString("TELEMETRY_LOGGING_LEVEL", &cfg.Telemetry.Logging.Level)
	envString("TELEMETRY_LOGGING_FORMAT", &cfg.Telemetry.Logging.Format)
	envBool("TELEMETRY_LOGGING_REDACT_PII", &cfg.Telemetry.Logging.RedactPII)
	envBool("TELEMETRY_METRICS_ENABLED", &cfg.Telemetry.Metrics.Enabled)
	envString("TELEMETRY_METRICS_TEXTFILE", &cfg.Telemetry.Metrics.Textfile)

	envString("SECRETS_DIR", &cfg.Secrets.Dir)
}

func envString(key string, dst *string) {
	if val := os.Getenv(EnvPrefix + key); val != "" {
		*dst = val
	}
}

func envBool(key string, dst *bool) {
	if val := os.Getenv(EnvPrefix + key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			*dst = b
		}
	}
}

func envInt(key string, dst *int) {
	if val := os.Getenv(EnvPrefix + key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			*dst = i
		}
	}
}

func envFloat(key string, dst *float64) {
	if val := os.Getenv(EnvPrefix + key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			*dst = f
		}
	}
}

func envDuration(key string, dst *time.Duration) {
	if val := os.Getenv(EnvPrefix + key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			*dst = d
		}
	}
}

// envList reads a comma-separated list.
func envList(key string, dst *[]string) {
	val := os.Getenv(EnvPrefix + key)
	if val == "" {
		return
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	*dst = out
}

// parseLooseBool accepts the spellings used by OPA_DEBUG ("1", "yes", "on", "true").
func parseLooseBool(val string) bool {
	switch strings.ToLower(strings.TrimSpace(val)) {
	case "1", "t", "true", "yes", "y", "on":
		return true
	default:
		return false
	}
}
