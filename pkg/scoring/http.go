package scoring

import (
	"context"
	"fmt"
	"log/slog"

	"mercator-hq/certify/pkg/config"
	"mercator-hq/certify/pkg/transport"
)

// HTTPBackend delegates scoring to an external service. The service
// receives {"prompts": [...], "responses": [...]} and answers with a
// Scores document.
type HTTPBackend struct {
	url    string
	client *transport.Client
}

type scoreRequest struct {
	Prompts   []string `json:"prompts"`
	Responses []string `json:"responses"`
}

// NewHTTPBackend creates a backend for the service at cfg.URL.
func NewHTTPBackend(cfg config.ScoringConfig, logger *slog.Logger) (*HTTPBackend, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("scoring url is required for the http backend")
	}
	return &HTTPBackend{
		url:    cfg.URL,
		client: transport.NewClient("scoring", cfg.Client, cfg.Timeout, logger),
	}, nil
}

// Name returns "http".
func (b *HTTPBackend) Name() string { return "http" }

// Score implements Backend.
func (b *HTTPBackend) Score(ctx context.Context, prompts, responses []string) (*Scores, error) {
	if err := checkAligned(prompts, responses); err != nil {
		return nil, err
	}

	var scores Scores
	if err := b.client.PostJSON(ctx, b.url, scoreRequest{Prompts: prompts, Responses: responses}, &scores); err != nil {
		return nil, fmt.Errorf("scoring request failed: %w", err)
	}
	scores.clamp()
	return &scores, nil
}
