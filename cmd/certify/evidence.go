package main

import (
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"mercator-hq/certify/pkg/cli"
	"mercator-hq/certify/pkg/config"
	"mercator-hq/certify/pkg/evidence"
	"mercator-hq/certify/pkg/evidence/export"
	"mercator-hq/certify/pkg/evidence/retention"
	"mercator-hq/certify/pkg/evidence/storage"
	"mercator-hq/certify/pkg/telemetry/logging"
)

var evidenceFlags struct {
	backend    string
	app        string
	kind       string
	compliant  string
	since      string
	until      string
	limit      int
	offset     int
	format     string
	output     string
	olderThan  int
	archiveDir string
}

// now is the clock used to resolve relative times.
var now = time.Now

var evidenceCmd = &cobra.Command{
	Use:   "evidence",
	Short: "Query and prune the evaluation run history",
	Long: `Query, export and prune the evidence store, the audit trail of every
evaluation run.

Subcommands:
  query - Query run records with filters
  prune - Delete records older than the retention period

Time Format:
  --since and --until accept RFC3339 timestamps or a duration before
  now, e.g. "24h" or "168h".

Examples:
  # Runs of the last week
  certify evidence query --since 168h

  # Non-compliant runs of one application as CSV
  certify evidence query --app support-bot --compliant false --format csv --output runs.csv

  # Apply the configured retention period, archiving pruned records
  certify evidence prune --archive-dir archive/`,
}

var evidenceQueryCmd = &cobra.Command{
	Use:   "query",
	Short: "Query run records",
	RunE:  queryEvidence,
}

var evidencePruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete records older than the retention period",
	RunE:  pruneEvidence,
}

func init() {
	rootCmd.AddCommand(evidenceCmd)
	evidenceCmd.AddCommand(evidenceQueryCmd, evidencePruneCmd)

	evidenceCmd.PersistentFlags().StringVar(&evidenceFlags.backend, "backend", "", "backend: sqlite, memory (uses config if not specified)")

	evidenceQueryCmd.Flags().StringVar(&evidenceFlags.app, "app", "", "filter by application name")
	evidenceQueryCmd.Flags().StringVar(&evidenceFlags.kind, "kind", "", "filter by run kind: contract, conversations, folder, policy_input, report")
	evidenceQueryCmd.Flags().StringVar(&evidenceFlags.compliant, "compliant", "", "filter by compliance: true, false")
	evidenceQueryCmd.Flags().StringVar(&evidenceFlags.since, "since", "", "runs started at or after (RFC3339 or duration ago)")
	evidenceQueryCmd.Flags().StringVar(&evidenceFlags.until, "until", "", "runs started before (RFC3339 or duration ago)")
	evidenceQueryCmd.Flags().IntVar(&evidenceFlags.limit, "limit", evidence.DefaultLimit, "max results")
	evidenceQueryCmd.Flags().IntVar(&evidenceFlags.offset, "offset", 0, "pagination offset")
	evidenceQueryCmd.Flags().StringVar(&evidenceFlags.format, "format", "text", "output format: text, json, csv")
	evidenceQueryCmd.Flags().StringVarP(&evidenceFlags.output, "output", "o", "", "output file (default: stdout)")

	evidencePruneCmd.Flags().IntVar(&evidenceFlags.olderThan, "older-than", 0, "retention in days (default: evidence.retention_days)")
	evidencePruneCmd.Flags().StringVar(&evidenceFlags.archiveDir, "archive-dir", "", "write pruned records to this directory first")
}

// openEvidence opens the configured evidence backend, or the one named by
// --backend.
func openEvidence() (evidence.Storage, *config.Config, *slog.Logger, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, nil, err
	}
	evCfg := cfg.Evidence
	if evidenceFlags.backend != "" {
		evCfg.Backend = evidenceFlags.backend
	}

	logger, err := logging.New(logging.FromConfig(cfg.Telemetry.Logging))
	if err != nil {
		return nil, nil, nil, cli.NewConfigError("telemetry.logging", err.Error())
	}
	store, err := storage.New(evCfg, logger)
	if err != nil {
		return nil, nil, nil, cli.NewCommandError("evidence", err)
	}
	return store, cfg, logger, nil
}

func buildEvidenceQuery() (*evidence.Query, error) {
	q := &evidence.Query{
		ApplicationName: evidenceFlags.app,
		Kind:            evidence.Kind(evidenceFlags.kind),
		Limit:           evidenceFlags.limit,
		Offset:          evidenceFlags.offset,
	}
	if evidenceFlags.compliant != "" {
		b, err := strconv.ParseBool(evidenceFlags.compliant)
		if err != nil {
			return nil, fmt.Errorf("invalid --compliant value %q: %w", evidenceFlags.compliant, err)
		}
		q.Compliant = &b
	}
	if evidenceFlags.since != "" {
		t, err := parseTimeFlag(evidenceFlags.since)
		if err != nil {
			return nil, fmt.Errorf("invalid --since: %w", err)
		}
		q.Since = &t
	}
	if evidenceFlags.until != "" {
		t, err := parseTimeFlag(evidenceFlags.until)
		if err != nil {
			return nil, fmt.Errorf("invalid --until: %w", err)
		}
		q.Until = &t
	}
	if err := q.Validate(); err != nil {
		return nil, err
	}
	return q, nil
}

// parseTimeFlag accepts an RFC3339 timestamp or a duration before now.
func parseTimeFlag(v string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return time.Time{}, fmt.Errorf("%q is neither RFC3339 nor a duration", v)
	}
	return now().Add(-d), nil
}

func queryEvidence(cmd *cobra.Command, args []string) error {
	q, err := buildEvidenceQuery()
	if err != nil {
		return err
	}

	var exporter export.Exporter
	if evidenceFlags.format != "text" {
		exporter, err = export.New(evidenceFlags.format)
		if err != nil {
			return err
		}
	}

	store, _, _, err := openEvidence()
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := cmd.Context()
	records, err := store.Query(ctx, q)
	if err != nil {
		return cli.NewCommandError("evidence query", err)
	}

	out, err := cli.OpenOutput(evidenceFlags.output, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	defer out.Close()

	if exporter != nil {
		return exporter.Export(ctx, records, out)
	}

	total, err := store.Count(ctx, q)
	if err != nil {
		return cli.NewCommandError("evidence query", err)
	}
	return writeEvidenceText(out, records, total, q)
}

func writeEvidenceText(w io.Writer, records []*evidence.Record, total int64, q *evidence.Query) error {
	var b strings.Builder
	if q.Since != nil || q.Until != nil {
		from, to := "-", "now"
		if q.Since != nil {
			from = q.Since.UTC().Format(time.RFC3339)
		}
		if q.Until != nil {
			to = q.Until.UTC().Format(time.RFC3339)
		}
		fmt.Fprintf(&b, "Time range: %s to %s\n", from, to)
	}
	fmt.Fprintf(&b, "Total records: %d (showing %d)\n", total, len(records))

	if len(records) == 0 {
		b.WriteString("\nNo records found.\n")
		_, err := io.WriteString(w, b.String())
		return err
	}

	for _, r := range records {
		b.WriteString("\n")
		fmt.Fprintf(&b, "Run: %s (%s)\n", r.RunID, r.Kind)
		fmt.Fprintf(&b, "Started: %s, took %s\n", r.StartedAt.UTC().Format(time.RFC3339), r.Duration.Round(time.Millisecond))
		if r.ApplicationName != "" {
			fmt.Fprintf(&b, "Application: %s\n", r.ApplicationName)
		}
		if r.ContractID != "" {
			fmt.Fprintf(&b, "Contract: %s (%d interactions)\n", r.ContractID, r.InteractionCount)
		}
		if r.PolicyTarget != "" {
			fmt.Fprintf(&b, "Policies: %s: %d passed, %d failed, %d errors\n",
				r.PolicyTarget, r.PoliciesPassed, r.PoliciesFailed, r.PolicyErrors)
		}
		if r.PolicyVersion != "" {
			fmt.Fprintf(&b, "Policy version: %s\n", shortSHA(r.PolicyVersion))
		}
		if len(r.Evaluators) > 0 {
			fmt.Fprintf(&b, "Evaluators: %s\n", strings.Join(r.Evaluators, ", "))
		}
		fmt.Fprintf(&b, "Compliant: %s\n", yesNo(r.Compliant))
		for _, e := range r.Errors {
			fmt.Fprintf(&b, "Error: %s\n", e)
		}
	}

	if int64(q.Offset+len(records)) < total {
		fmt.Fprintf(&b, "\n... %d more records, use --limit and --offset for pagination.\n",
			total-int64(q.Offset+len(records)))
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func pruneEvidence(cmd *cobra.Command, args []string) error {
	store, cfg, logger, err := openEvidence()
	if err != nil {
		return err
	}
	defer store.Close()

	days := cfg.Evidence.RetentionDays
	if evidenceFlags.olderThan > 0 {
		days = evidenceFlags.olderThan
	}

	pruner := retention.NewPruner(store, retention.Config{
		RetentionDays: days,
		ArchiveDir:    evidenceFlags.archiveDir,
	}, logger)
	pruner.SetClock(now)

	result, err := pruner.Prune(cmd.Context())
	if err != nil {
		return cli.NewCommandError("evidence prune", err)
	}

	out := cmd.OutOrStdout()
	if result.Cutoff.IsZero() {
		fmt.Fprintln(out, "Retention disabled, nothing pruned.")
		return nil
	}
	fmt.Fprintf(out, "Deleted %d records started before %s\n", result.Deleted, result.Cutoff.UTC().Format(time.RFC3339))
	if result.ArchivePath != "" {
		fmt.Fprintf(out, "Archived %d records to %s\n", result.Archived, result.ArchivePath)
	}
	return nil
}
