package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"mercator-hq/certify/pkg/cli"
	"mercator-hq/certify/pkg/policy/git"
	"mercator-hq/certify/pkg/policy/index"
	"mercator-hq/certify/pkg/telemetry/logging"
)

var errGitDisabled = errors.New("git policy source is not enabled (policy.git.enabled)")

var policiesFlags struct {
	category string
	limit    int
	format   string
}

var policiesCmd = &cobra.Command{
	Use:   "policies",
	Short: "Inspect and sync the policy repository",
	Long: `Inspect the policy repository and keep a Git-hosted one up to date.

Subcommands:
  list    - List categories and rules
  sync    - Clone or pull the Git policy repository
  history - Show policy commit history

Examples:
  # List every rule
  certify policies list

  # Rules of one category as JSON
  certify policies list --category eu_ai_act --output-format json

  # Pull the latest policies
  certify policies sync`,
}

var policiesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List policy categories and rules",
	RunE:  listPolicies,
}

var policiesSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Clone or pull the Git policy repository",
	RunE:  syncPolicies,
}

var policiesHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "Show policy commit history",
	RunE:  showPolicyHistory,
}

func init() {
	rootCmd.AddCommand(policiesCmd)
	policiesCmd.AddCommand(policiesListCmd, policiesSyncCmd, policiesHistoryCmd)

	policiesCmd.PersistentFlags().StringVar(&policiesFlags.format, "output-format", "text", "output format: text, json")
	policiesListCmd.Flags().StringVar(&policiesFlags.category, "category", "", "only list rules of this category")
	policiesHistoryCmd.Flags().IntVar(&policiesFlags.limit, "limit", 10, "number of commits to show")
}

type ruleEntry struct {
	ID          string `json:"id"`
	Category    string `json:"category"`
	Subcategory string `json:"subcategory,omitempty"`
	Package     string `json:"package"`
	Path        string `json:"path"`
}

type policyList struct {
	Root       string      `json:"root"`
	Version    string      `json:"version,omitempty"`
	Categories []string    `json:"categories"`
	Libraries  []string    `json:"libraries"`
	Rules      []ruleEntry `json:"rules"`
}

func (l policyList) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Policy root: %s\n", l.Root)
	if l.Version != "" {
		fmt.Fprintf(&b, "Version:     %s\n", l.Version)
	}
	fmt.Fprintf(&b, "Categories:  %s\n", strings.Join(l.Categories, ", "))
	fmt.Fprintf(&b, "Libraries:   %d\n", len(l.Libraries))
	fmt.Fprintf(&b, "\nRules (%d):\n", len(l.Rules))
	for _, r := range l.Rules {
		fmt.Fprintf(&b, "  %-48s %s\n", r.ID, r.Package)
	}
	return b.String()
}

func newPolicyList(idx *index.Index, version, category string) policyList {
	l := policyList{
		Root:       idx.Root(),
		Version:    version,
		Categories: idx.Categories(),
		Libraries:  idx.Libraries(),
		Rules:      []ruleEntry{},
	}
	for _, r := range idx.Rules() {
		if category != "" && r.Category != category {
			continue
		}
		l.Rules = append(l.Rules, ruleEntry{
			ID:          r.ID,
			Category:    r.Category,
			Subcategory: r.Subcategory,
			Package:     r.Package,
			Path:        r.Path,
		})
	}
	return l
}

func listPolicies(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime(cmd)
	if err != nil {
		return err
	}
	defer closeRuntime(rt)

	idx, err := rt.Index()
	if err != nil {
		return cli.NewCommandError("policies list", err)
	}
	l := newPolicyList(idx, rt.PolicyVersion(), policiesFlags.category)
	return output(cmd, policiesFlags.format, l, l)
}

// gitSource builds and syncs the configured Git policy source.
func gitSource(cmd *cobra.Command) (*git.Source, *git.SyncResult, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	if !cfg.Policy.Git.Enabled {
		return nil, nil, cli.NewConfigError("policy.git.enabled", errGitDisabled.Error())
	}
	logger, err := logging.New(logging.FromConfig(cfg.Telemetry.Logging))
	if err != nil {
		return nil, nil, cli.NewConfigError("telemetry.logging", err.Error())
	}

	src, err := git.NewSource(cfg.Policy.Git, logger)
	if err != nil {
		return nil, nil, cli.NewConfigError("policy.git", err.Error())
	}
	result, err := src.Sync(cmd.Context())
	if err != nil {
		return nil, nil, cli.NewCommandError("policies", err)
	}
	return src, result, nil
}

type syncView struct {
	Cloned       bool            `json:"cloned"`
	Updated      bool            `json:"updated"`
	FromSHA      string          `json:"from_sha,omitempty"`
	ToSHA        string          `json:"to_sha"`
	ChangedFiles []string        `json:"changed_files,omitempty"`
	Commit       *git.CommitInfo `json:"commit,omitempty"`
}

func (v syncView) Text() string {
	var b strings.Builder
	switch {
	case v.Cloned:
		fmt.Fprintf(&b, "Cloned policy repository at %s\n", shortSHA(v.ToSHA))
	case v.Updated:
		fmt.Fprintf(&b, "Updated %s -> %s (%d files changed)\n", shortSHA(v.FromSHA), shortSHA(v.ToSHA), len(v.ChangedFiles))
		for _, f := range v.ChangedFiles {
			fmt.Fprintf(&b, "  %s\n", f)
		}
	default:
		fmt.Fprintf(&b, "Already up to date at %s\n", shortSHA(v.ToSHA))
	}
	if v.Commit != nil {
		fmt.Fprintf(&b, "Author: %s <%s>\nDate:   %s\n\n    %s\n",
			v.Commit.Author, v.Commit.Email, v.Commit.Timestamp.Format("2006-01-02 15:04:05"),
			strings.TrimSpace(v.Commit.Message))
	}
	return b.String()
}

func syncPolicies(cmd *cobra.Command, args []string) error {
	src, result, err := gitSource(cmd)
	if err != nil {
		return err
	}

	v := syncView{
		Cloned:       result.Cloned,
		Updated:      result.Updated(),
		FromSHA:      result.FromSHA,
		ToSHA:        result.ToSHA,
		ChangedFiles: result.ChangedFiles,
	}
	if commit, err := src.CurrentCommit(); err == nil {
		v.Commit = commit
	}
	return output(cmd, policiesFlags.format, v, v)
}

type historyView []*git.CommitInfo

func (h historyView) Text() string {
	var b strings.Builder
	for _, c := range h {
		fmt.Fprintf(&b, "%s %s %-20s %s\n",
			shortSHA(c.SHA), c.Timestamp.Format("2006-01-02"), c.Author, firstLine(c.Message))
	}
	return b.String()
}

func showPolicyHistory(cmd *cobra.Command, args []string) error {
	if policiesFlags.limit <= 0 {
		return fmt.Errorf("--limit must be positive")
	}
	src, _, err := gitSource(cmd)
	if err != nil {
		return err
	}
	history, err := src.History(policiesFlags.limit)
	if err != nil {
		return cli.NewCommandError("policies history", err)
	}
	return output(cmd, policiesFlags.format, historyView(history), history)
}

func shortSHA(sha string) string {
	if len(sha) > 8 {
		return sha[:8]
	}
	return sha
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
