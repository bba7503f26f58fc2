package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"mercator-hq/certify/pkg/evidence"
)

// CSVExporter exports records as CSV, one row per run.
type CSVExporter struct {
	// IncludeHeader includes a header row with column names.
	IncludeHeader bool
}

// NewCSVExporter creates a new CSV exporter.
func NewCSVExporter(includeHeader bool) *CSVExporter {
	return &CSVExporter{IncludeHeader: includeHeader}
}

var csvHeader = []string{
	"id", "run_id", "kind", "application_name", "contract_id", "contract_hash",
	"interaction_count", "policy_target", "policy_version", "compliant", "evaluators",
	"policies_passed", "policies_failed", "policy_errors", "errors", "report_paths",
	"started_at", "duration_ms", "recorded_at",
}

// Export writes records to w. List fields are joined with ";" and report
// paths are written as format=path pairs sorted by format.
func (e *CSVExporter) Export(ctx context.Context, records []*evidence.Record, w io.Writer) error {
	writer := csv.NewWriter(w)

	if e.IncludeHeader {
		if err := writer.Write(csvHeader); err != nil {
			return evidence.NewExportError("csv", len(records), err)
		}
	}

	for i, r := range records {
		if i%100 == 0 {
			if err := ctx.Err(); err != nil {
				return evidence.NewExportError("csv", len(records), err)
			}
		}
		if err := writer.Write(recordToRow(r)); err != nil {
			return evidence.NewExportError("csv", len(records), err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return evidence.NewExportError("csv", len(records), err)
	}
	return nil
}

func recordToRow(r *evidence.Record) []string {
	return []string{
		r.ID,
		r.RunID,
		string(r.Kind),
		r.ApplicationName,
		r.ContractID,
		r.ContractHash,
		strconv.Itoa(r.InteractionCount),
		r.PolicyTarget,
		r.PolicyVersion,
		strconv.FormatBool(r.Compliant),
		strings.Join(r.Evaluators, ";"),
		strconv.Itoa(r.PoliciesPassed),
		strconv.Itoa(r.PoliciesFailed),
		strconv.Itoa(r.PolicyErrors),
		strings.Join(r.Errors, ";"),
		formatReportPaths(r.ReportPaths),
		r.StartedAt.UTC().Format(time.RFC3339),
		strconv.FormatInt(r.Duration.Milliseconds(), 10),
		r.RecordedAt.UTC().Format(time.RFC3339),
	}
}

func formatReportPaths(paths map[string]string) string {
	formats := make([]string, 0, len(paths))
	for f := range paths {
		formats = append(formats, f)
	}
	sort.Strings(formats)

	pairs := make([]string, len(formats))
	for i, f := range formats {
		pairs[i] = fmt.Sprintf("%s=%s", f, paths[f])
	}
	return strings.Join(pairs, ";")
}
