package main

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"mercator-hq/certify/pkg/cli"
)

func resetPoliciesFlags(t *testing.T) {
	t.Helper()
	old := policiesFlags
	t.Cleanup(func() { policiesFlags = old })
	policiesFlags.category = ""
	policiesFlags.limit = 10
	policiesFlags.format = "text"
}

func TestListPolicies(t *testing.T) {
	setupEnv(t)
	resetPoliciesFlags(t)
	policiesFlags.format = "json"

	cmd, buf := newTestCmd()
	if err := listPolicies(cmd, nil); err != nil {
		t.Fatalf("listPolicies() error = %v", err)
	}

	var got policyList
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, buf.String())
	}
	if len(got.Rules) != 2 {
		t.Errorf("rules = %d, want 2", len(got.Rules))
	}
	if len(got.Categories) != 1 || got.Categories[0] != "eu_ai_act" {
		t.Errorf("categories = %v, want [eu_ai_act]", got.Categories)
	}
	if len(got.Libraries) != 1 {
		t.Errorf("libraries = %v, want the common helpers", got.Libraries)
	}
	for _, r := range got.Rules {
		if r.Package == "" || r.Path == "" {
			t.Errorf("rule %q missing package or path", r.ID)
		}
	}
}

func TestListPoliciesText(t *testing.T) {
	setupEnv(t)
	resetPoliciesFlags(t)
	policiesFlags.category = "healthcare"

	cmd, buf := newTestCmd()
	if err := listPolicies(cmd, nil); err != nil {
		t.Fatalf("listPolicies() error = %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "Categories:  eu_ai_act") {
		t.Errorf("output missing categories:\n%s", out)
	}
	if !strings.Contains(out, "Rules (0):") {
		t.Errorf("output = %q, want no rules for healthcare", out)
	}
}

func TestGitCommandsRequireGit(t *testing.T) {
	for name, run := range map[string]func(*testing.T) error{
		"sync": func(t *testing.T) error {
			cmd, _ := newTestCmd()
			return syncPolicies(cmd, nil)
		},
		"history": func(t *testing.T) error {
			cmd, _ := newTestCmd()
			return showPolicyHistory(cmd, nil)
		},
	} {
		t.Run(name, func(t *testing.T) {
			setupEnv(t)
			resetPoliciesFlags(t)

			err := run(t)
			var cfgErr *cli.ConfigError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("error = %v, want ConfigError", err)
			}
			if cfgErr.Field != "policy.git.enabled" {
				t.Errorf("Field = %q, want policy.git.enabled", cfgErr.Field)
			}
		})
	}
}

func TestShowPolicyHistoryInvalidLimit(t *testing.T) {
	setupEnv(t)
	resetPoliciesFlags(t)
	policiesFlags.limit = 0

	cmd, _ := newTestCmd()
	if err := showPolicyHistory(cmd, nil); err == nil {
		t.Error("showPolicyHistory() error = nil, want error for --limit 0")
	}
}

func TestShortSHAAndFirstLine(t *testing.T) {
	if got := shortSHA("0123456789abcdef"); got != "01234567" {
		t.Errorf("shortSHA() = %q, want 01234567", got)
	}
	if got := shortSHA("abc"); got != "abc" {
		t.Errorf("shortSHA() = %q, want abc", got)
	}
	if got := firstLine("  Update fairness thresholds\n\nLonger body"); got != "Update fairness thresholds" {
		t.Errorf("firstLine() = %q", got)
	}
}
