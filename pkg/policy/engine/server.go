package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"mercator-hq/certify/pkg/config"
	"mercator-hq/certify/pkg/policy/index"
	"mercator-hq/certify/pkg/transport"
)

// ServerEngine queries an OPA server's data API. Library modules are not
// uploaded; the server must already serve the policy repository.
type ServerEngine struct {
	baseURL string
	client  *transport.Client
	logger  *slog.Logger
	debug   bool
}

// NewServerEngine creates an engine for the server at cfg.ServerURL.
func NewServerEngine(cfg config.EngineConfig, logger *slog.Logger) (*ServerEngine, error) {
	if cfg.ServerURL == "" {
		return nil, fmt.Errorf("engine server_url is required in server mode")
	}
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = config.DefaultEngineTimeout
	}
	return &ServerEngine{
		baseURL: strings.TrimRight(cfg.ServerURL, "/"),
		client:  transport.NewClient("opa", cfg.Client, timeout, logger),
		logger:  logger.With("component", "policy.engine", "mode", "server"),
		debug:   cfg.Debug,
	}, nil
}

// Name returns "server".
func (e *ServerEngine) Name() string { return "server" }

// Evaluate implements Engine.
func (e *ServerEngine) Evaluate(ctx context.Context, rule *index.Rule, _ []string, input any) (*Decision, error) {
	if rule.Package == "" {
		return nil, ErrNoPackage
	}

	url := e.baseURL + "/v1/data/" + dataPath(rule.Package)
	if e.debug {
		e.logger.DebugContext(ctx, "querying opa server", "rule", rule.ID, "url", url)
	}

	var resp struct {
		Result any `json:"result"`
	}
	if err := e.client.PostJSON(ctx, url, map[string]any{"input": input}, &resp); err != nil {
		return nil, fmt.Errorf("opa server query failed: %w", err)
	}
	return ParseDecision(resp.Result)
}
