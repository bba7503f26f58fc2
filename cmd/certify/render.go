package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"mercator-hq/certify/pkg/cli"
	"mercator-hq/certify/pkg/pipeline"
	"mercator-hq/certify/pkg/policy/dispatch"
)

// output writes textValue or jsonValue to the command output depending on
// format.
func output(cmd *cobra.Command, format string, textValue cli.TextRenderer, jsonValue any) error {
	formatter, err := cli.NewFormatter(cli.OutputFormat(format))
	if err != nil {
		return err
	}
	if _, ok := formatter.(*cli.JSONFormatter); ok {
		return formatter.FormatTo(cmd.OutOrStdout(), jsonValue)
	}
	return formatter.FormatTo(cmd.OutOrStdout(), textValue)
}

// outcomesByPolicy flattens policy sets into rule ID -> outcome.
func outcomesByPolicy(sets []*dispatch.Set) map[string]*dispatch.Outcome {
	out := make(map[string]*dispatch.Outcome)
	for _, s := range sets {
		for _, o := range s.Ordered() {
			out[o.PolicyID] = o
		}
	}
	return out
}

// policyView renders policy outcomes, one line per rule.
type policyView []*dispatch.Set

func (v policyView) Text() string {
	var b strings.Builder
	for _, s := range v {
		fmt.Fprintf(&b, "Policies (%s %s):\n", s.Mode, s.Target)
		if s.NoPolicies {
			fmt.Fprintf(&b, "  %s\n", s.Message)
			continue
		}
		for _, o := range s.Ordered() {
			switch {
			case o.Error != "":
				fmt.Fprintf(&b, "  ERROR %s: %s\n", o.PolicyID, o.Error)
			case o.Pass:
				fmt.Fprintf(&b, "  PASS  %s\n", o.PolicyID)
			default:
				fmt.Fprintf(&b, "  FAIL  %s\n", o.PolicyID)
			}
			for _, r := range o.Recommendations {
				fmt.Fprintf(&b, "        - %s\n", r)
			}
		}
	}
	return b.String()
}

// resultView renders a pipeline result for humans.
type resultView struct {
	*pipeline.Result
}

func (v resultView) Text() string {
	r := v.Result
	var b strings.Builder

	fmt.Fprintf(&b, "Application:  %s\n", r.ApplicationName)
	if r.ContractID != "" {
		fmt.Fprintf(&b, "Contract:     %s\n", r.ContractID)
	}
	fmt.Fprintf(&b, "Interactions: %d", r.InteractionCount)
	if r.ContractCount > 1 {
		fmt.Fprintf(&b, " (from %d contracts)", r.ContractCount)
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "Compliant:    %s\n", yesNo(r.Compliant))

	if e := r.Evaluation; e != nil {
		t := e.Metrics.Toxicity
		fmt.Fprintf(&b, "Toxicity:     fraction %.4f, max %.4f, probability %.4f\n",
			t.ToxicFraction, t.MaxToxicity, t.ToxicityProbability)
	}

	if len(r.EvaluatorResults) > 0 {
		b.WriteString("\nEvaluators:\n")
		for _, er := range r.EvaluatorResults {
			status := "compliant"
			if !er.Compliant {
				status = "non-compliant"
			}
			fmt.Fprintf(&b, "  %-16s %-14s %s\n", er.Name, status, er.Reason)
		}
	}

	if len(r.Policies) > 0 {
		b.WriteString("\n")
		b.WriteString(policyView(r.Policies).Text())
	}

	if len(r.ReportPaths) > 0 {
		b.WriteString("\nReports:\n")
		formats := make([]string, 0, len(r.ReportPaths))
		for f := range r.ReportPaths {
			formats = append(formats, f)
		}
		sort.Strings(formats)
		for _, f := range formats {
			fmt.Fprintf(&b, "  %s: %s\n", f, r.ReportPaths[f])
		}
	}

	if len(r.Skipped) > 0 {
		b.WriteString("\nSkipped:\n")
		for _, s := range r.Skipped {
			fmt.Fprintf(&b, "  %s\n", s)
		}
	}

	if len(r.Errors) > 0 {
		b.WriteString("\nErrors:\n")
		for _, se := range r.Errors {
			fmt.Fprintf(&b, "  %s\n", se.Error())
		}
	}
	return b.String()
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}

// jsonView renders a JSON document as indented text.
type jsonView struct {
	title string
	value any
}

func (v jsonView) Text() string {
	data, err := (&cli.JSONFormatter{Indent: true}).Format(v.value)
	if err != nil {
		return fmt.Sprintf("%s: %v", v.title, err)
	}
	if v.title == "" {
		return string(data)
	}
	return v.title + ":\n" + string(data)
}

// textList renders sections one after another.
type textList []cli.TextRenderer

func (l textList) Text() string {
	parts := make([]string, len(l))
	for i, r := range l {
		parts[i] = strings.TrimRight(r.Text(), "\n")
	}
	return strings.Join(parts, "\n\n")
}
