package report

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// Title is the heading of every rendered report.
const Title = "AI Compliance Evaluation Report"

const dateLayout = "2006-01-02 15:04:05 MST"

// RenderMarkdown renders r as Markdown. The output depends only on r.
func RenderMarkdown(r *Report) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", Title)

	b.WriteString("## Application Details\n\n")
	fmt.Fprintf(&b, "- **Application Name:** %s\n", inline(r.AppDetails.Name))
	fmt.Fprintf(&b, "- **Evaluation Mode:** %s\n", inline(r.AppDetails.EvaluationMode))
	fmt.Fprintf(&b, "- **Contract Count:** %d\n", r.AppDetails.ContractCount)
	if !r.AppDetails.EvaluationDate.IsZero() {
		fmt.Fprintf(&b, "- **Evaluation Date:** %s\n", r.AppDetails.EvaluationDate.UTC().Format(dateLayout))
	}
	b.WriteString("\n")

	b.WriteString("## Executive Summary\n\n")
	fmt.Fprintf(&b, "%s\n\n", inline(r.Summary))

	if len(r.MetricGroups) > 0 {
		b.WriteString("## Metrics\n\n")
		for _, g := range r.MetricGroups {
			fmt.Fprintf(&b, "### %s\n\n", inline(g.Name))
			if g.Description != "" {
				fmt.Fprintf(&b, "%s\n\n", inline(g.Description))
			}
			b.WriteString("| Metric | Value |\n|--------|-------|\n")
			for _, m := range g.Metrics {
				fmt.Fprintf(&b, "| %s | %s |\n", cell(m.DisplayName), cell(formatValue(m.Value)))
			}
			b.WriteString("\n")
		}
	}

	if len(r.EvaluatorResults) > 0 {
		b.WriteString("## Compliance Evaluators\n\n")
		b.WriteString("| Evaluator | Compliant | Score | Threshold | Reason |\n")
		b.WriteString("|-----------|-----------|-------|-----------|--------|\n")
		for _, e := range r.EvaluatorResults {
			fmt.Fprintf(&b, "| %s | %s | %s | %s | %s |\n",
				cell(e.Name), formatValue(e.Compliant), formatValue(e.Score), formatValue(e.Threshold), cell(e.Reason))
		}
		b.WriteString("\n")
	}

	b.WriteString("## Policy Results\n\n")
	if len(r.PolicyResults) == 0 {
		b.WriteString("_No policies evaluated._\n")
		return b.String()
	}
	b.WriteString("| Policy | Result | Details |\n|--------|--------|---------|\n")
	for _, p := range r.PolicyResults {
		details := strings.Join(p.Recommendations, "; ")
		if p.Error != "" {
			details = p.Error
		}
		fmt.Fprintf(&b, "| %s | %s | %s |\n", escapeCell(p.Name), p.Result, cell(details))
	}
	return b.String()
}

// Outline is the structure recovered from a rendered report.
type Outline struct {
	ApplicationName string
	MetricGroups    []string
	Policies        map[string]string
	PolicyOrder     []string
}

// ParseMarkdown recovers the outline of a report rendered by RenderMarkdown.
func ParseMarkdown(md string) *Outline {
	out := &Outline{Policies: make(map[string]string)}

	section := ""
	tableRows := 0
	scanner := bufio.NewScanner(strings.NewReader(md))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()

		switch {
		case strings.HasPrefix(line, "## "):
			section = strings.TrimPrefix(line, "## ")
			tableRows = 0
			continue
		case strings.HasPrefix(line, "### ") && section == "Metrics":
			out.MetricGroups = append(out.MetricGroups, strings.TrimPrefix(line, "### "))
			continue
		}

		if section == "Application Details" {
			if name, ok := strings.CutPrefix(line, "- **Application Name:** "); ok {
				out.ApplicationName = name
			}
			continue
		}

		if section == "Policy Results" && strings.HasPrefix(line, "|") {
			tableRows++
			// The first two rows are the header and the delimiter.
			cells := splitRow(line)
			if tableRows <= 2 || len(cells) < 2 {
				continue
			}
			if _, seen := out.Policies[cells[0]]; !seen {
				out.PolicyOrder = append(out.PolicyOrder, cells[0])
			}
			out.Policies[cells[0]] = cells[1]
		}
	}
	return out
}

// splitRow splits a table row into unescaped cells.
func splitRow(line string) []string {
	line = strings.TrimSpace(line)
	line = strings.TrimPrefix(line, "|")
	line = strings.TrimSuffix(line, "|")

	var cells []string
	var cur strings.Builder
	for i := 0; i < len(line); i++ {
		switch {
		case line[i] == '\\' && i+1 < len(line):
			cur.WriteByte(line[i])
			cur.WriteByte(line[i+1])
			i++
		case line[i] == '|':
			cells = append(cells, unescapeCell(strings.TrimSpace(cur.String())))
			cur.Reset()
		default:
			cur.WriteByte(line[i])
		}
	}
	return append(cells, unescapeCell(strings.TrimSpace(cur.String())))
}

// escapeCell escapes s for a table cell so that unescapeCell recovers it
// exactly. Backslashes, pipes and ampersands are backslash escaped. Line
// breaks, tabs and leading or trailing spaces become numeric character
// references. Both forms are valid CommonMark.
func escapeCell(s string) string {
	var b strings.Builder
	for i, r := range s {
		switch {
		case r == '\\' || r == '|' || r == '&':
			b.WriteByte('\\')
			b.WriteRune(r)
		case r == ' ' && (i == 0 || i == len(s)-1):
			fmt.Fprintf(&b, "&#%d;", r)
		case r != ' ' && unicode.IsSpace(r):
			fmt.Fprintf(&b, "&#%d;", r)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// unescapeCell reverses escapeCell. Backslash escapes of ASCII punctuation
// and decimal character references are decoded; anything else is kept.
func unescapeCell(s string) string {
	if !strings.ContainsAny(s, `\&`) {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '\\' && i+1 < len(s) && isASCIIPunct(s[i+1]) {
			b.WriteByte(s[i+1])
			i++
			continue
		}
		if c == '&' && strings.HasPrefix(s[i:], "&#") {
			if end := strings.IndexByte(s[i:], ';'); end > 2 {
				if n, err := strconv.Atoi(s[i+2 : i+end]); err == nil && n > 0 && n <= unicode.MaxRune {
					b.WriteRune(rune(n))
					i += end
					continue
				}
			}
		}
		b.WriteByte(c)
	}
	return b.String()
}

func isASCIIPunct(c byte) bool {
	return c < 0x80 && unicode.IsPunct(rune(c)) || strings.IndexByte("$+<=>^`|~", c) >= 0
}

// inline flattens text onto one line.
func inline(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// cell flattens text and escapes pipes for use in a table cell.
func cell(s string) string {
	return strings.ReplaceAll(inline(s), "|", `\|`)
}

func formatValue(v any) string {
	switch val := v.(type) {
	case float64:
		return fmt.Sprintf("%.4f", val)
	case float32:
		return fmt.Sprintf("%.4f", val)
	case bool:
		if val {
			return "Yes"
		}
		return "No"
	case nil:
		return "-"
	default:
		return fmt.Sprint(val)
	}
}
