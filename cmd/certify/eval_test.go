package main

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"mercator-hq/certify/pkg/cli"
	"mercator-hq/certify/pkg/contract"
)

func TestEvalPolicy(t *testing.T) {
	env := setupEnv(t)
	input := filepath.Join(env.dir, "evaluation.json")
	writeFile(t, input, `{"application_name": "support-bot", "evaluation": {"toxicity_score": 0.1}}`)

	old := policyEvalFlags
	t.Cleanup(func() { policyEvalFlags = old })
	policyEvalFlags.category = "eu_ai_act"
	policyEvalFlags.input = input
	policyEvalFlags.format = "json"

	cmd, buf := newTestCmd()
	if err := evalPolicy(cmd, nil); err != nil {
		t.Fatalf("evalPolicy() error = %v", err)
	}

	var got map[string]map[string]any
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, buf.String())
	}
	if len(got) != 2 {
		t.Errorf("outcomes = %d, want 2", len(got))
	}
	if got["eu_ai_act/transparency"]["pass"] != true {
		t.Errorf("transparency outcome = %v, want pass", got["eu_ai_act/transparency"])
	}

	sent, ok := env.engine.LastInput().(map[string]any)
	if !ok || sent["application_name"] != "support-bot" {
		t.Errorf("engine input = %v, want the input document", env.engine.LastInput())
	}
}

func TestEvalPolicyReturnsQuietly(t *testing.T) {
	tests := []struct {
		name     string
		input    func(t *testing.T, dir string) string
		category string
	}{
		{
			name:     "missing input",
			input:    func(t *testing.T, dir string) string { return filepath.Join(dir, "missing.json") },
			category: "eu_ai_act",
		},
		{
			name: "invalid json",
			input: func(t *testing.T, dir string) string {
				p := filepath.Join(dir, "broken.json")
				writeFile(t, p, "{not json")
				return p
			},
			category: "eu_ai_act",
		},
		{
			name: "no policies",
			input: func(t *testing.T, dir string) string {
				p := filepath.Join(dir, "ok.json")
				writeFile(t, p, `{}`)
				return p
			},
			category: "finance",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := setupEnv(t)
			old := policyEvalFlags
			t.Cleanup(func() { policyEvalFlags = old })
			policyEvalFlags.category = tt.category
			policyEvalFlags.input = tt.input(t, env.dir)
			policyEvalFlags.format = "json"

			cmd, buf := newTestCmd()
			if err := evalPolicy(cmd, nil); err != nil {
				t.Errorf("evalPolicy() error = %v, want nil", err)
			}
			if buf.Len() != 0 {
				t.Errorf("output = %q, want none", buf.String())
			}
			if calls := env.engine.Calls(); len(calls) != 0 {
				t.Errorf("engine calls = %v, want none", calls)
			}
		})
	}
}

func writeContracts(t *testing.T, dir string) {
	t.Helper()
	for i, app := range []string{"support-bot", "support-bot", "other-app"} {
		c := contract.New(app, contract.Interaction{InputText: "question", OutputText: "answer"})
		name := filepath.Join(dir, "contract_"+string(rune('a'+i))+".json")
		if err := contract.Save(name, c); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
	}
}

func TestEvalFolder(t *testing.T) {
	env := setupEnv(t)
	folder := filepath.Join(env.dir, "contracts")
	writeContracts(t, folder)

	old := folderFlags
	t.Cleanup(func() { folderFlags = old })
	folderFlags.appName = "support-bot"
	folderFlags.folder = folder
	folderFlags.output = filepath.Join(env.dir, "out", "consolidated.json")
	folderFlags.format = "json"

	cmd, buf := newTestCmd()
	if err := evalFolder(cmd, nil); err != nil {
		t.Fatalf("evalFolder() error = %v", err)
	}

	data, err := os.ReadFile(folderFlags.output)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	var written map[string]any
	if err := json.Unmarshal(data, &written); err != nil {
		t.Fatalf("output file is not JSON: %v", err)
	}
	if written["contract_count"] != float64(2) {
		t.Errorf("contract_count = %v, want 2", written["contract_count"])
	}
	if written["application_name"] != "support-bot" {
		t.Errorf("application_name = %v, want support-bot", written["application_name"])
	}
	if _, ok := written["metrics"].(map[string]any); !ok {
		t.Errorf("metrics missing from %v", written)
	}

	var printed map[string]any
	if err := json.Unmarshal(buf.Bytes(), &printed); err != nil {
		t.Errorf("printed output is not JSON: %v", err)
	}
	if len(env.engine.Calls()) != 0 {
		t.Errorf("engine called %d times, want 0", len(env.engine.Calls()))
	}
}

func TestEvalFolderNoContracts(t *testing.T) {
	env := setupEnv(t)

	old := folderFlags
	t.Cleanup(func() { folderFlags = old })
	folderFlags.appName = "support-bot"
	folderFlags.folder = t.TempDir()
	folderFlags.output = filepath.Join(env.dir, "consolidated.json")
	folderFlags.format = "json"

	cmd, buf := newTestCmd()
	if err := evalFolder(cmd, nil); err != nil {
		t.Fatalf("evalFolder() error = %v, want nil", err)
	}
	if !strings.Contains(buf.String(), "No evaluation results were produced.") {
		t.Errorf("output = %q", buf.String())
	}
	if _, err := os.Stat(folderFlags.output); !os.IsNotExist(err) {
		t.Errorf("output file exists, want none")
	}
}

func TestEvalAll(t *testing.T) {
	env := setupEnv(t)
	folder := filepath.Join(env.dir, "contracts")
	writeContracts(t, folder)

	old := folderFlags
	t.Cleanup(func() { folderFlags = old })
	folderFlags.appName = "support-bot"
	folderFlags.folder = folder
	folderFlags.output = filepath.Join(env.dir, "consolidated.json")
	folderFlags.category = "eu_ai_act"
	folderFlags.format = "json"

	cmd, buf := newTestCmd()
	if err := evalAll(cmd, nil); err != nil {
		t.Fatalf("evalAll() error = %v", err)
	}

	var got struct {
		Consolidated map[string]any            `json:"consolidated_evaluation"`
		OPA          map[string]map[string]any `json:"opa_evaluation"`
	}
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, buf.String())
	}
	if got.Consolidated["contract_count"] != float64(2) {
		t.Errorf("contract_count = %v, want 2", got.Consolidated["contract_count"])
	}
	if len(got.OPA) != 2 {
		t.Errorf("opa_evaluation = %v, want 2 rules", got.OPA)
	}

	sent, ok := env.engine.LastInput().(map[string]any)
	if !ok || sent["contract_count"] != float64(2) {
		t.Errorf("engine input = %v, want the consolidated file", env.engine.LastInput())
	}
}

func TestEvalAllText(t *testing.T) {
	env := setupEnv(t)
	folder := filepath.Join(env.dir, "contracts")
	writeContracts(t, folder)

	old := folderFlags
	t.Cleanup(func() { folderFlags = old })
	folderFlags.appName = "support-bot"
	folderFlags.folder = folder
	folderFlags.output = filepath.Join(env.dir, "consolidated.json")
	folderFlags.category = "eu_ai_act"
	folderFlags.format = "text"

	cmd, buf := newTestCmd()
	if err := evalAll(cmd, nil); err != nil {
		t.Fatalf("evalAll() error = %v", err)
	}
	for _, want := range []string{"Consolidated Evaluation Result:", "PASS  eu_ai_act/transparency"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("output missing %q:\n%s", want, buf.String())
		}
	}
}

func TestEvalContract(t *testing.T) {
	env := setupEnv(t)

	old := contractFlags
	t.Cleanup(func() { contractFlags = old })
	contractFlags.contract = env.contract
	contractFlags.categories = []string{"eu_ai_act"}
	contractFlags.evaluators = []string{"fairness", "content_safety"}
	contractFlags.report = true
	contractFlags.reportFormats = []string{"markdown", "json"}
	contractFlags.output = filepath.Join(env.dir, "result.json")
	contractFlags.format = "text"

	cmd, buf := newTestCmd()
	if err := evalContract(cmd, nil); err != nil {
		t.Fatalf("evalContract() error = %v\n%s", err, buf.String())
	}

	for _, want := range []string{"Application:  support-bot", "Evaluators:", "PASS  eu_ai_act/transparency", "Reports:", "markdown:"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("output missing %q:\n%s", want, buf.String())
		}
	}

	data, err := os.ReadFile(contractFlags.output)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	var result map[string]any
	if err := json.Unmarshal(data, &result); err != nil {
		t.Fatalf("result file is not JSON: %v", err)
	}
	if result["application_name"] != "support-bot" {
		t.Errorf("application_name = %v", result["application_name"])
	}

	entries, err := os.ReadDir(env.reports)
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("reports = %d, want markdown and json", len(entries))
	}

	if _, err := os.Stat(env.metrics); err != nil {
		t.Errorf("metrics textfile not written: %v", err)
	}
}

func TestEvalContractFailures(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(env *testEnv)
		wantErr error
		wantOut string
	}{
		{
			name: "missing contract",
			setup: func(env *testEnv) {
				contractFlags.contract = filepath.Join(env.dir, "missing.json")
			},
			wantOut: "LOAD: Contract load failed",
		},
		{
			name: "non-compliant",
			setup: func(env *testEnv) {
				contractFlags.contract = env.contract
				contractFlags.evaluators = []string{"risk_management"}
				contractFlags.skipPolicies = true
				contractFlags.failOnNonCompliant = true
			},
			wantErr: errNonCompliant,
			wantOut: "Compliant:    no",
		},
		{
			name: "unknown policy folder",
			setup: func(env *testEnv) {
				contractFlags.contract = env.contract
				contractFlags.policyFolder = "nowhere"
				contractFlags.skipEvaluators = true
			},
			wantOut: "OPA evaluation error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := setupEnv(t)
			old := contractFlags
			t.Cleanup(func() { contractFlags = old })
			contractFlags.runFlags = runFlags{format: "text"}
			tt.setup(env)

			cmd, buf := newTestCmd()
			err := evalContract(cmd, nil)

			var cmdErr *cli.CommandError
			if !errors.As(err, &cmdErr) {
				t.Fatalf("evalContract() error = %v, want CommandError", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("evalContract() error = %v, want %v", err, tt.wantErr)
			}
			if !strings.Contains(buf.String(), tt.wantOut) {
				t.Errorf("output missing %q:\n%s", tt.wantOut, buf.String())
			}
		})
	}
}

func TestEvalConversations(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name:    "list",
			content: `[{"user_input": "hi", "response": "hello"}, {"prompt": "bye", "output_text": "goodbye"}]`,
		},
		{
			name:    "wrapped",
			content: `{"conversations": [{"user_input": "hi", "response": "hello"}, {"user_input": "bye", "response": "goodbye"}]}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := setupEnv(t)
			input := filepath.Join(env.dir, "conversations.json")
			writeFile(t, input, tt.content)

			old := conversationFlags
			t.Cleanup(func() { conversationFlags = old })
			conversationFlags.appName = "chat-app"
			conversationFlags.input = input
			conversationFlags.runFlags = runFlags{format: "json", skipEvaluators: true}

			cmd, buf := newTestCmd()
			if err := evalConversations(cmd, nil); err != nil {
				t.Fatalf("evalConversations() error = %v", err)
			}

			var got map[string]any
			if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
				t.Fatalf("output is not JSON: %v", err)
			}
			if got["application_name"] != "chat-app" {
				t.Errorf("application_name = %v, want chat-app", got["application_name"])
			}
			if got["interaction_count"] != float64(2) {
				t.Errorf("interaction_count = %v, want 2", got["interaction_count"])
			}
			if got["kind"] != "conversations" {
				t.Errorf("kind = %v, want conversations", got["kind"])
			}
		})
	}
}

func TestEvalConversationsBadInput(t *testing.T) {
	env := setupEnv(t)

	old := conversationFlags
	t.Cleanup(func() { conversationFlags = old })
	conversationFlags.appName = "chat-app"
	conversationFlags.input = filepath.Join(env.dir, "missing.json")

	cmd, _ := newTestCmd()
	err := evalConversations(cmd, nil)

	var inputErr *cli.InputError
	if !errors.As(err, &inputErr) {
		t.Errorf("evalConversations() error = %v, want InputError", err)
	}
}

func TestRunFlagsOptions(t *testing.T) {
	f := runFlags{
		categories:    []string{"eu_ai_act", "healthcare"},
		evaluators:    []string{"fairness"},
		settings:      map[string]string{"toxicity_threshold": "0.2"},
		report:        true,
		reportFormats: []string{"pdf"},
		outputDir:     "out",
	}

	opts := f.options()

	if len(opts.PolicyCategories) != 2 || opts.PolicyCategories[1] != "healthcare" {
		t.Errorf("PolicyCategories = %v", opts.PolicyCategories)
	}
	if opts.EvaluatorSettings["toxicity_threshold"] != "0.2" {
		t.Errorf("EvaluatorSettings = %v", opts.EvaluatorSettings)
	}
	if !opts.GenerateReport || opts.OutputDir != "out" || opts.ReportFormats[0] != "pdf" {
		t.Errorf("report options = %+v", opts)
	}
	if (&runFlags{}).options().EvaluatorSettings != nil {
		t.Error("EvaluatorSettings set without --set")
	}
}
