package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"mercator-hq/certify/pkg/cli"
	"mercator-hq/certify/pkg/pipeline"
	"mercator-hq/certify/pkg/policy/dispatch"
)

var reportFlags struct {
	evaluation string
	policies   string
	formats    []string
	outputDir  string
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Render reports from an existing evaluation",
	Long: `Render reports from an evaluation document and, optionally, policy
results, without evaluating anything.

--evaluation accepts a raw evaluation (as written by eval-folder) or a
result written by eval-contract --output, in which case its policies are
used unless --policies is given. --policies accepts a list of policy sets
or an object with a "policies" list.

Examples:
  certify report --evaluation consolidated.json --format markdown,html
  certify report --evaluation result.json --output-dir out/`,
	RunE: generateReport,
}

func init() {
	rootCmd.AddCommand(reportCmd)

	reportCmd.Flags().StringVar(&reportFlags.evaluation, "evaluation", "", "evaluation or result JSON file")
	reportCmd.Flags().StringVar(&reportFlags.policies, "policies", "", "policy results JSON file")
	reportCmd.Flags().StringSliceVar(&reportFlags.formats, "format", nil, "report formats: markdown, html, pdf, json (default: report.formats)")
	reportCmd.Flags().StringVar(&reportFlags.outputDir, "output-dir", "", "report directory (default: report.output_dir)")
	_ = reportCmd.MarkFlagRequired("evaluation")
}

func generateReport(cmd *cobra.Command, args []string) error {
	doc, err := readJSONObject(reportFlags.evaluation)
	if err != nil {
		return cli.NewCommandError(cmd.Name(), err)
	}
	raw, embedded := splitResult(doc)

	sets := embedded
	if reportFlags.policies != "" {
		sets, err = readPolicySets(reportFlags.policies)
		if err != nil {
			return cli.NewCommandError(cmd.Name(), err)
		}
	}

	rt, err := newRuntime(cmd)
	if err != nil {
		return err
	}
	defer closeRuntime(rt)

	res := rt.GenerateReport(cmd.Context(), raw, sets, pipeline.Options{
		ReportFormats: reportFlags.formats,
		OutputDir:     reportFlags.outputDir,
	})

	formats := make([]string, 0, len(res.ReportPaths))
	for f := range res.ReportPaths {
		formats = append(formats, f)
	}
	sort.Strings(formats)
	for _, f := range formats {
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", f, res.ReportPaths[f])
	}
	return runError(cmd, res)
}

// splitResult separates a saved pipeline result into its raw evaluation
// and policy sets. Other documents are returned as the evaluation.
func splitResult(doc map[string]any) (map[string]any, []*dispatch.Set) {
	if _, ok := doc["run_id"]; !ok {
		return doc, nil
	}
	raw, ok := doc["evaluation"].(map[string]any)
	if !ok {
		return doc, nil
	}
	for _, key := range []string{"application_name", "contract_id", "interaction_count"} {
		if _, set := raw[key]; !set && doc[key] != nil {
			raw[key] = doc[key]
		}
	}

	var sets []*dispatch.Set
	if policies, ok := doc["policies"]; ok {
		if data, err := json.Marshal(policies); err == nil {
			_ = json.Unmarshal(data, &sets)
		}
	}
	return raw, sets
}

func readPolicySets(path string) ([]*dispatch.Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, cli.NewInputError(path, err)
	}

	var sets []*dispatch.Set
	if err := json.Unmarshal(data, &sets); err == nil {
		return sets, nil
	}

	var wrapped struct {
		Policies []*dispatch.Set `json:"policies"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return nil, cli.NewInputError(path, fmt.Errorf("invalid JSON format: %w", err))
	}
	return wrapped.Policies, nil
}
