// Package config provides configuration management for certify.
//
// Configuration is loaded from a YAML file with environment variable
// overrides. A missing file is not an error: every setting has a default,
// so the command line tool works from an empty directory.
//
// # Configuration Loading
//
//	cfg, err := config.LoadConfig("certify.yaml")               // file only
//	cfg, err := config.LoadConfigWithEnvOverrides("certify.yaml") // file + env
//
// # Environment Variable Overrides
//
// Environment variables follow the naming convention CERTIFY_SECTION_FIELD:
//
//   - CERTIFY_POLICY_ROOT overrides policy.root
//   - CERTIFY_ENGINE_MODE overrides engine.mode
//   - CERTIFY_REPORT_FORMATS overrides report.formats (comma separated)
//   - CERTIFY_TELEMETRY_LOGGING_LEVEL overrides telemetry.logging.level
//
// OPA_SERVER_URL and OPA_DEBUG are also honored for engine.server_url and
// engine.debug.
//
// # Configuration Precedence
//
//  1. Default values (defaults.go)
//  2. Values from the YAML file
//  3. Environment variable overrides
//  4. Validation (all field errors are collected into a ValidationError)
//
// There is no process-wide configuration singleton. The loaded *Config is
// handed to pipeline.NewRuntime, which owns every component built from it.
package config
