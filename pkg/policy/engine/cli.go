package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"mercator-hq/certify/pkg/config"
	"mercator-hq/certify/pkg/policy/index"
)

// Runner executes a command with stdin and returns its stdout.
type Runner func(ctx context.Context, name string, args []string, stdin []byte) ([]byte, error)

// CLIEngine evaluates rules by running "opa eval".
type CLIEngine struct {
	binary  string
	timeout time.Duration
	debug   bool
	run     Runner
	logger  *slog.Logger
}

// CLIOption configures a CLIEngine.
type CLIOption func(*CLIEngine)

// WithRunner replaces the command runner.
func WithRunner(r Runner) CLIOption {
	return func(e *CLIEngine) { e.run = r }
}

// NewCLIEngine creates a subprocess engine.
func NewCLIEngine(cfg config.EngineConfig, logger *slog.Logger, opts ...CLIOption) *CLIEngine {
	if logger == nil {
		logger = slog.Default()
	}
	e := &CLIEngine{
		binary:  cfg.Binary,
		timeout: cfg.Timeout,
		debug:   cfg.Debug,
		run:     execRunner,
		logger:  logger.With("component", "policy.engine", "mode", "cli"),
	}
	if e.binary == "" {
		e.binary = config.DefaultEngineBinary
	}
	if e.timeout <= 0 {
		e.timeout = config.DefaultEngineTimeout
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name returns "cli".
func (e *CLIEngine) Name() string { return "cli" }

// Available reports whether the OPA binary can be found.
func (e *CLIEngine) Available() error {
	if _, err := exec.LookPath(e.binary); err != nil {
		return fmt.Errorf("opa binary %q not found: %w", e.binary, err)
	}
	return nil
}

type evalOutput struct {
	Result []struct {
		Expressions []struct {
			Value any    `json:"value"`
			Text  string `json:"text"`
		} `json:"expressions"`
	} `json:"result"`
}

// Evaluate implements Engine.
func (e *CLIEngine) Evaluate(ctx context.Context, rule *index.Rule, libraries []string, input any) (*Decision, error) {
	if rule.Package == "" {
		return nil, ErrNoPackage
	}

	stdin, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("failed to encode policy input: %w", err)
	}

	args := []string{"eval", "--format", "json", "--stdin-input", "-d", rule.Path}
	for _, lib := range libraries {
		args = append(args, "-d", lib)
	}
	args = append(args, "data."+rule.Package)

	if e.debug {
		e.logger.DebugContext(ctx, "running opa",
			"rule", rule.ID,
			"command", e.binary+" "+strings.Join(args, " "),
		)
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	stdout, err := e.run(ctx, e.binary, args, stdin)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("opa eval timed out after %v: %w", e.timeout, err)
		}
		return nil, fmt.Errorf("opa eval failed: %w", err)
	}

	if e.debug {
		e.logger.DebugContext(ctx, "opa output", "rule", rule.ID, "output", string(stdout))
	}

	var out evalOutput
	if err := json.Unmarshal(stdout, &out); err != nil {
		return nil, fmt.Errorf("failed to parse opa output: %w", err)
	}
	if len(out.Result) == 0 || len(out.Result[0].Expressions) == 0 {
		return nil, ErrUndefined
	}
	return ParseDecision(out.Result[0].Expressions[0].Value)
}

// execRunner runs a command with os/exec. Stderr is folded into the error.
func execRunner(ctx context.Context, name string, args []string, stdin []byte) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = bytes.NewReader(stdin)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%w: %s", err, msg)
		}
		return nil, err
	}
	return stdout.Bytes(), nil
}
