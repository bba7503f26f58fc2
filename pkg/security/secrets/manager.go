package secrets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
)

// secretRefRegex matches ${secret:name} patterns in configuration
var secretRefRegex = regexp.MustCompile(`\$\{secret:([^}]+)\}`)

// Manager resolves secrets from the first provider that has them.
type Manager struct {
	providers []SecretProvider
	logger    *slog.Logger
}

// NewManager creates a secret manager. Providers are tried in order.
func NewManager(logger *slog.Logger, providers ...SecretProvider) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{providers: providers, logger: logger}
}

// GetSecret retrieves a secret from the first provider that supports it
// and returns it without error.
func (m *Manager) GetSecret(ctx context.Context, name string) (string, error) {
	var lastErr error
	for _, provider := range m.providers {
		if !provider.Supports(name) {
			continue
		}

		value, err := provider.GetSecret(ctx, name)
		if err != nil {
			lastErr = err
			m.logger.Debug("provider failed to get secret",
				"provider", provider.Provider(),
				"name", redactSecretName(name),
				"error", err,
			)
			continue
		}

		m.logger.Debug("secret retrieved",
			"provider", provider.Provider(),
			"name", redactSecretName(name),
		)
		return value, nil
	}

	if lastErr != nil {
		return "", fmt.Errorf("failed to get secret %q: %w", name, lastErr)
	}
	return "", fmt.Errorf("secret not found: %q (no provider supports this secret)", name)
}

// HasReferences reports whether input contains a ${secret:name} reference.
func HasReferences(input string) bool {
	return secretRefRegex.MatchString(input)
}

// ResolveReferences replaces ${secret:name} patterns with secret values.
// References that cannot be resolved are kept and reported in the error.
func (m *Manager) ResolveReferences(ctx context.Context, input string) (string, error) {
	var errs []error

	output := secretRefRegex.ReplaceAllStringFunc(input, func(match string) string {
		name := secretRefRegex.FindStringSubmatch(match)[1]
		value, err := m.GetSecret(ctx, name)
		if err != nil {
			errs = append(errs, err)
			return match
		}
		return value
	})

	if len(errs) > 0 {
		return output, fmt.Errorf("failed to resolve secret references: %w", errors.Join(errs...))
	}
	return output, nil
}

// redactSecretName shortens a secret name for logging.
func redactSecretName(name string) string {
	if len(name) <= 4 {
		return "***"
	}
	return name[:2] + "..." + name[len(name)-2:]
}
