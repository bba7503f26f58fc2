package logging

import (
	"context"
	"log/slog"
)

// Context keys for common log fields.
type contextKey string

const (
	// RunIDKey is the context key for evaluation run IDs.
	RunIDKey contextKey = "run_id"

	// ContractIDKey is the context key for contract IDs.
	ContractIDKey contextKey = "contract_id"

	// ApplicationKey is the context key for application names.
	ApplicationKey contextKey = "application"

	// CategoryKey is the context key for the policy category or folder.
	CategoryKey contextKey = "category"

	// StageKey is the context key for the pipeline stage.
	StageKey contextKey = "stage"
)

// contextKeys lists the keys extracted into every record, in output order.
var contextKeys = []contextKey{RunIDKey, ContractIDKey, ApplicationKey, CategoryKey, StageKey}

// WithRunID adds a run ID to the context.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, RunIDKey, runID)
}

// GetRunID retrieves the run ID from the context.
func GetRunID(ctx context.Context) string {
	return getString(ctx, RunIDKey)
}

// WithContractID adds a contract ID to the context.
func WithContractID(ctx context.Context, contractID string) context.Context {
	return context.WithValue(ctx, ContractIDKey, contractID)
}

// GetContractID retrieves the contract ID from the context.
func GetContractID(ctx context.Context) string {
	return getString(ctx, ContractIDKey)
}

// WithApplication adds an application name to the context.
func WithApplication(ctx context.Context, app string) context.Context {
	return context.WithValue(ctx, ApplicationKey, app)
}

// GetApplication retrieves the application name from the context.
func GetApplication(ctx context.Context) string {
	return getString(ctx, ApplicationKey)
}

// WithCategory adds a policy category (or folder) to the context.
func WithCategory(ctx context.Context, category string) context.Context {
	return context.WithValue(ctx, CategoryKey, category)
}

// GetCategory retrieves the policy category from the context.
func GetCategory(ctx context.Context) string {
	return getString(ctx, CategoryKey)
}

// WithStage adds the current pipeline stage to the context.
func WithStage(ctx context.Context, stage string) context.Context {
	return context.WithValue(ctx, StageKey, stage)
}

// GetStage retrieves the pipeline stage from the context.
func GetStage(ctx context.Context) string {
	return getString(ctx, StageKey)
}

func getString(ctx context.Context, key contextKey) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}

// contextAttrs extracts the known context fields as attributes.
func contextAttrs(ctx context.Context) []slog.Attr {
	var attrs []slog.Attr
	for _, key := range contextKeys {
		if v := getString(ctx, key); v != "" {
			attrs = append(attrs, slog.String(string(key), v))
		}
	}
	return attrs
}
