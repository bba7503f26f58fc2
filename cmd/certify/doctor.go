package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"mercator-hq/certify/pkg/cli"
	"mercator-hq/certify/pkg/config"
	"mercator-hq/certify/pkg/evidence"
	"mercator-hq/certify/pkg/evidence/storage"
	"mercator-hq/certify/pkg/policy/index"
	"mercator-hq/certify/pkg/telemetry/health"
	"mercator-hq/certify/pkg/telemetry/logging"
)

var errNotReady = errors.New("one or more checks failed")

var doctorFlags struct {
	timeout time.Duration
	format  string
}

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check the environment an evaluation depends on",
	Long: `Check that the configured collaborators of an evaluation are usable:

  policies - the policy root can be indexed and holds rules
  opa      - the opa binary (cli mode) or the OPA server (server mode)
  scoring  - the scoring service, for the http backend
  pdf      - the PDF converter, when pdf is a configured report format
  evidence - the evidence store opens and can be queried

Checks that do not apply to the configuration are skipped. The command
exits with an error when any check fails.

Examples:
  certify doctor
  certify doctor --config prod.yaml --output-format json`,
	RunE: runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)

	doctorCmd.Flags().DurationVar(&doctorFlags.timeout, "timeout", 5*time.Second, "timeout per check")
	doctorCmd.Flags().StringVar(&doctorFlags.format, "output-format", "text", "output format: text, json")
}

// lookPath is replaced in tests.
var lookPath = exec.LookPath

func newChecker(cfg *config.Config) *health.Checker {
	checker := health.New(doctorFlags.timeout)
	checker.RegisterCheck("policies", func(ctx context.Context) error { return checkPolicies(cfg) })
	checker.RegisterCheck("opa", func(ctx context.Context) error { return checkEngine(ctx, cfg.Engine) })
	checker.RegisterCheck("scoring", func(ctx context.Context) error { return checkScoring(ctx, cfg.Scoring) })
	checker.RegisterCheck("pdf", func(ctx context.Context) error { return checkPDF(cfg.Report) })
	checker.RegisterCheck("evidence", func(ctx context.Context) error { return checkEvidence(ctx, cfg.Evidence) })
	return checker
}

func checkPolicies(cfg *config.Config) error {
	root := cfg.Policy.Root
	if cfg.Policy.Git.Enabled {
		root = filepath.Join(cfg.Policy.Git.LocalPath, cfg.Policy.Git.Path)
		if _, err := os.Stat(cfg.Policy.Git.LocalPath); err != nil {
			return fmt.Errorf("policy repository not cloned at %s, run certify policies sync", cfg.Policy.Git.LocalPath)
		}
	}
	idx, err := index.BuildWithOptions(root, index.Options{
		LibraryDirs: cfg.Policy.LibraryDirs,
		Extension:   cfg.Policy.Extension,
	})
	if err != nil {
		return err
	}
	if len(idx.Rules()) == 0 {
		return fmt.Errorf("no rules found under %s", root)
	}
	return nil
}

func checkEngine(ctx context.Context, cfg config.EngineConfig) error {
	if cfg.Mode == "server" {
		return ping(ctx, strings.TrimRight(cfg.ServerURL, "/")+"/health")
	}
	_, err := lookPath(cfg.Binary)
	return err
}

func checkScoring(ctx context.Context, cfg config.ScoringConfig) error {
	if cfg.Backend != "http" {
		return health.Skip("built-in " + cfg.Backend + " scoring")
	}
	return ping(ctx, cfg.URL)
}

func checkPDF(cfg config.ReportConfig) error {
	if !slices.Contains(cfg.Formats, "pdf") {
		return health.Skip("pdf is not a configured report format")
	}
	_, err := lookPath(cfg.PDFCommand)
	return err
}

func checkEvidence(ctx context.Context, cfg config.EvidenceConfig) error {
	if !cfg.Enabled {
		return health.Skip("evidence recording is disabled")
	}
	store, err := storage.New(cfg, logging.Discard())
	if err != nil {
		return err
	}
	defer store.Close()
	_, err = store.Count(ctx, &evidence.Query{})
	return err
}

// ping reports whether url answers. Any HTTP response other than a
// server error counts as reachable.
func ping(ctx context.Context, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("%s returned %s", url, resp.Status)
	}
	return nil
}

type doctorView health.HealthStatus

func (v doctorView) Text() string {
	var b strings.Builder
	for _, c := range v.Checks {
		fmt.Fprintf(&b, "%-10s %-9s %s\n", c.Name, c.Status, c.Message)
	}
	fmt.Fprintf(&b, "\nStatus: %s\n", v.Status)
	return b.String()
}

func runDoctor(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	status := newChecker(cfg).CheckReadiness(cmd.Context())
	if err := output(cmd, doctorFlags.format, doctorView(status), status); err != nil {
		return err
	}
	if !status.Ready() {
		return cli.NewCommandError(cmd.Name(), errNotReady)
	}
	return nil
}
