package config

import (
	"context"
	"fmt"

	"mercator-hq/certify/pkg/security/secrets"
)

// ResolveSecrets replaces ${secret:name} references in the credential and
// endpoint fields of cfg. Secrets are read from Secrets.Dir first, then
// from CERTIFY_SECRET_<NAME>. Configurations without references are left
// untouched and Secrets.Dir is not opened.
func ResolveSecrets(ctx context.Context, cfg *Config) error {
	fields := []struct {
		name  string
		value *string
	}{
		{"policy.git.repository", &cfg.Policy.Git.Repository},
		{"policy.git.auth.token", &cfg.Policy.Git.Auth.Token},
		{"policy.git.auth.ssh_key_passphrase", &cfg.Policy.Git.Auth.SSHKeyPassphrase},
		{"engine.server_url", &cfg.Engine.ServerURL},
		{"scoring.url", &cfg.Scoring.URL},
	}

	var manager *secrets.Manager
	for _, f := range fields {
		if !secrets.HasReferences(*f.value) {
			continue
		}
		if manager == nil {
			m, err := newSecretManager(cfg.Secrets)
			if err != nil {
				return FieldError{Field: "secrets.dir", Message: err.Error()}
			}
			manager = m
		}

		resolved, err := manager.ResolveReferences(ctx, *f.value)
		if err != nil {
			return FieldError{Field: f.name, Message: err.Error()}
		}
		*f.value = resolved
	}
	return nil
}

func newSecretManager(cfg SecretsConfig) (*secrets.Manager, error) {
	var providers []secrets.SecretProvider
	if cfg.Dir != "" {
		files, err := secrets.NewFileProvider(cfg.Dir)
		if err != nil {
			return nil, fmt.Errorf("secrets directory: %w", err)
		}
		providers = append(providers, files)
	}
	providers = append(providers, secrets.NewEnvProvider(secrets.DefaultEnvPrefix))
	return secrets.NewManager(nil, providers...), nil
}
