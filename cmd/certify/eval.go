package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"mercator-hq/certify/pkg/cli"
	"mercator-hq/certify/pkg/contract"
	"mercator-hq/certify/pkg/pipeline"
)

var errNonCompliant = errors.New("evaluation is not compliant")

var policyEvalFlags struct {
	category string
	input    string
	format   string
}

var folderFlags struct {
	appName  string
	folder   string
	output   string
	category string
	format   string
}

// runFlags are shared by the commands that run the full pipeline.
type runFlags struct {
	categories         []string
	policyFolder       string
	evaluators         []string
	skipEvaluators     bool
	skipPolicies       bool
	settings           map[string]string
	report             bool
	reportFormats      []string
	outputDir          string
	output             string
	format             string
	failOnNonCompliant bool
}

var contractFlags struct {
	contract string
	runFlags
}

var conversationFlags struct {
	appName string
	input   string
	runFlags
}

var evalPolicyCmd = &cobra.Command{
	Use:   "eval-policy",
	Short: "Evaluate an input JSON document against a policy category",
	Long: `Evaluate an input JSON document against the policies of one category.

The document is passed to every rule of the category as OPA input. A
missing or invalid input file, and a category without policies, are
logged and the command returns without error.

Examples:
  # Evaluate an evaluation result against the EU AI Act policies
  certify eval-policy --category eu_ai_act --input evaluation.json

  # Only the fairness subcategory, JSON output
  certify eval-policy --category eu_ai_act/fairness --input evaluation.json --output-format json`,
	RunE: evalPolicy,
}

var evalFolderCmd = &cobra.Command{
	Use:   "eval-folder",
	Short: "Consolidated evaluation of a folder of contracts",
	Long: `Evaluate every contract of one application found in a folder as a single
consolidated contract. The consolidated evaluation is written to --output
and printed.

Examples:
  certify eval-folder --app-name support-bot --folder contracts/ --output consolidated.json`,
	RunE: evalFolder,
}

var evalAllCmd = &cobra.Command{
	Use:   "eval-all",
	Short: "Consolidated evaluation followed by policy evaluation",
	Long: `Run the consolidated evaluation of eval-folder, then evaluate the written
result against the policies of a category and print both.

Examples:
  certify eval-all --app-name support-bot --folder contracts/ --output consolidated.json --category eu_ai_act`,
	RunE: evalAll,
}

var evalContractCmd = &cobra.Command{
	Use:   "eval-contract",
	Short: "Comprehensive evaluation of one contract",
	Long: `Run the full pipeline on one contract file: scoring, compliance
evaluators, policy evaluation and, with --report, report generation.

Stage failures do not stop the run; they are printed with the partial
result and make the command exit with an error.

Examples:
  # Evaluators and EU AI Act policies, markdown and PDF reports
  certify eval-contract --contract contract.json --category eu_ai_act --report --format markdown,pdf

  # Policies of one folder only
  certify eval-contract --contract contract.json --policy-folder fairness --skip-evaluators

  # Override an evaluator threshold
  certify eval-contract --contract contract.json --set toxicity_threshold=0.2`,
	RunE: evalContract,
}

var evalConversationsCmd = &cobra.Command{
	Use:   "eval-conversations",
	Short: "Comprehensive evaluation of raw conversations",
	Long: `Adapt a JSON list of {"user_input", "response"} pairs into a contract and
run the full pipeline on it. The file may hold the list itself or an
object with a "conversations" list.

Examples:
  certify eval-conversations --app-name chat-app --input conversations.json --report`,
	RunE: evalConversations,
}

func init() {
	rootCmd.AddCommand(evalPolicyCmd, evalFolderCmd, evalAllCmd, evalContractCmd, evalConversationsCmd)

	evalPolicyCmd.Flags().StringVar(&policyEvalFlags.category, "category", "", "policy category, e.g. eu_ai_act or eu_ai_act/fairness")
	evalPolicyCmd.Flags().StringVar(&policyEvalFlags.input, "input", "", "input JSON file")
	evalPolicyCmd.Flags().StringVar(&policyEvalFlags.format, "output-format", "json", "output format: text, json")
	_ = evalPolicyCmd.MarkFlagRequired("category")
	_ = evalPolicyCmd.MarkFlagRequired("input")

	for _, cmd := range []*cobra.Command{evalFolderCmd, evalAllCmd} {
		cmd.Flags().StringVar(&folderFlags.appName, "app-name", "", "application name to filter contracts")
		cmd.Flags().StringVar(&folderFlags.folder, "folder", "", "folder containing contract JSON files")
		cmd.Flags().StringVar(&folderFlags.output, "output", "", "output JSON file for the consolidated evaluation")
		cmd.Flags().StringVar(&folderFlags.format, "output-format", "json", "output format: text, json")
		_ = cmd.MarkFlagRequired("app-name")
		_ = cmd.MarkFlagRequired("folder")
		_ = cmd.MarkFlagRequired("output")
	}
	evalAllCmd.Flags().StringVar(&folderFlags.category, "category", "", "policy category to evaluate")
	_ = evalAllCmd.MarkFlagRequired("category")

	evalContractCmd.Flags().StringVar(&contractFlags.contract, "contract", "", "contract JSON file")
	_ = evalContractCmd.MarkFlagRequired("contract")
	addRunFlags(evalContractCmd, &contractFlags.runFlags)

	evalConversationsCmd.Flags().StringVar(&conversationFlags.appName, "app-name", "", "application name")
	evalConversationsCmd.Flags().StringVar(&conversationFlags.input, "input", "", "conversations JSON file")
	_ = evalConversationsCmd.MarkFlagRequired("app-name")
	_ = evalConversationsCmd.MarkFlagRequired("input")
	addRunFlags(evalConversationsCmd, &conversationFlags.runFlags)
}

func addRunFlags(cmd *cobra.Command, f *runFlags) {
	cmd.Flags().StringSliceVar(&f.categories, "category", nil, "policy categories (default: policy.default_category)")
	cmd.Flags().StringVar(&f.policyFolder, "policy-folder", "", "evaluate the policies of one folder instead of categories")
	cmd.Flags().StringSliceVar(&f.evaluators, "evaluators", nil, "compliance evaluators to run (default: evaluators.enabled)")
	cmd.Flags().BoolVar(&f.skipEvaluators, "skip-evaluators", false, "do not run compliance evaluators")
	cmd.Flags().BoolVar(&f.skipPolicies, "skip-policies", false, "do not evaluate policies")
	cmd.Flags().StringToStringVar(&f.settings, "set", nil, "evaluator setting override, key=value")
	cmd.Flags().BoolVar(&f.report, "report", false, "generate reports")
	cmd.Flags().StringSliceVar(&f.reportFormats, "format", nil, "report formats: markdown, html, pdf, json (default: report.formats)")
	cmd.Flags().StringVar(&f.outputDir, "output-dir", "", "report directory (default: report.output_dir)")
	cmd.Flags().StringVarP(&f.output, "output", "o", "", "also write the result as JSON to this file")
	cmd.Flags().StringVar(&f.format, "output-format", "text", "output format: text, json")
	cmd.Flags().BoolVar(&f.failOnNonCompliant, "fail-on-noncompliant", false, "exit with an error when the result is not compliant")
}

func (f *runFlags) options() pipeline.Options {
	opts := pipeline.Options{
		PolicyCategories: f.categories,
		PolicyFolder:     f.policyFolder,
		SkipPolicies:     f.skipPolicies,
		Evaluators:       f.evaluators,
		SkipEvaluators:   f.skipEvaluators,
		GenerateReport:   f.report,
		ReportFormats:    f.reportFormats,
		OutputDir:        f.outputDir,
	}
	if len(f.settings) > 0 {
		opts.EvaluatorSettings = make(map[string]any, len(f.settings))
		for k, v := range f.settings {
			opts.EvaluatorSettings[k] = v
		}
	}
	return opts
}

func evalPolicy(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime(cmd)
	if err != nil {
		return err
	}
	defer closeRuntime(rt)
	logger := rt.Logger()

	doc, err := readJSONObject(policyEvalFlags.input)
	if err != nil {
		logInputError(logger, policyEvalFlags.input, err)
		return nil
	}

	logger.Info("running policy evaluation", "category", policyEvalFlags.category)
	res := rt.EvaluatePolicyInput(cmd.Context(), doc, pipeline.Options{
		PolicyCategories: []string{policyEvalFlags.category},
	})
	if noPolicies(res) {
		logger.Warn("no policies found for category", "category", policyEvalFlags.category)
		return nil
	}

	if err := output(cmd, policyEvalFlags.format, policyView(res.Policies), outcomesByPolicy(res.Policies)); err != nil {
		return err
	}
	return runError(cmd, res)
}

func evalFolder(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime(cmd)
	if err != nil {
		return err
	}
	defer closeRuntime(rt)

	consolidated, ok, err := consolidate(cmd, rt)
	if err != nil || !ok {
		return err
	}
	return output(cmd, folderFlags.format, jsonView{title: "Consolidated Evaluation Result", value: consolidated}, consolidated)
}

func evalAll(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime(cmd)
	if err != nil {
		return err
	}
	defer closeRuntime(rt)
	logger := rt.Logger()

	consolidated, ok, err := consolidate(cmd, rt)
	if err != nil || !ok {
		return err
	}

	// The written file is the policy input, as with eval-policy.
	doc, err := readJSONObject(folderFlags.output)
	if err != nil {
		logger.Error("failed to load consolidated evaluation", "output", folderFlags.output, "error", err)
		return nil
	}

	logger.Info("running policy evaluation", "category", folderFlags.category)
	res := rt.EvaluatePolicyInput(cmd.Context(), doc, pipeline.Options{
		PolicyCategories: []string{folderFlags.category},
	})
	if noPolicies(res) {
		logger.Warn("no policies found for category", "category", folderFlags.category)
		return output(cmd, folderFlags.format, jsonView{title: "Consolidated Evaluation Result", value: consolidated}, consolidated)
	}

	combined := map[string]any{
		"consolidated_evaluation": consolidated,
		"opa_evaluation":          outcomesByPolicy(res.Policies),
	}
	text := textList{
		jsonView{title: "Consolidated Evaluation Result", value: consolidated},
		policyView(res.Policies),
	}
	if err := output(cmd, folderFlags.format, text, combined); err != nil {
		return err
	}
	return runError(cmd, res)
}

// consolidate runs the consolidated folder evaluation and writes it to
// folderFlags.output. ok is false when no contract was evaluated.
func consolidate(cmd *cobra.Command, rt *pipeline.Runtime) (map[string]any, bool, error) {
	logger := rt.Logger()

	res := rt.EvaluateFolder(cmd.Context(), folderFlags.folder, folderFlags.appName, pipeline.Options{
		SkipEvaluators: true,
		SkipPolicies:   true,
	})
	if res.ContractCount == 0 {
		logger.Error("no evaluation results were produced",
			"folder", folderFlags.folder,
			"app_name", folderFlags.appName,
			"error", res.Error,
		)
		fmt.Fprintln(cmd.OutOrStdout(), "No evaluation results were produced.")
		return nil, false, nil
	}

	consolidated := res.Evaluation.Map()
	consolidated["contract_count"] = res.ContractCount
	if len(res.Skipped) > 0 {
		consolidated["skipped_files"] = res.Skipped
	}
	if res.Error != "" {
		consolidated["error"] = res.Error
	}

	if err := cli.WriteJSONFile(folderFlags.output, consolidated); err != nil {
		return nil, false, cli.NewCommandError(cmd.Name(), err)
	}
	logger.Info("consolidated evaluation written",
		"output", folderFlags.output,
		"contracts", res.ContractCount,
		"interactions", res.InteractionCount,
	)
	return consolidated, true, nil
}

func evalContract(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime(cmd)
	if err != nil {
		return err
	}
	defer closeRuntime(rt)

	res := rt.EvaluateContractFile(cmd.Context(), contractFlags.contract, contractFlags.options())
	return finishRun(cmd, res, &contractFlags.runFlags)
}

func evalConversations(cmd *cobra.Command, args []string) error {
	conversations, err := readConversations(conversationFlags.input)
	if err != nil {
		return cli.NewCommandError(cmd.Name(), err)
	}

	rt, err := newRuntime(cmd)
	if err != nil {
		return err
	}
	defer closeRuntime(rt)

	res := rt.EvaluateConversations(cmd.Context(), conversationFlags.appName, conversations, conversationFlags.options())
	return finishRun(cmd, res, &conversationFlags.runFlags)
}

// finishRun writes and prints res and turns its failures into the
// command error.
func finishRun(cmd *cobra.Command, res *pipeline.Result, f *runFlags) error {
	if f.output != "" {
		if err := cli.WriteJSONFile(f.output, res); err != nil {
			return cli.NewCommandError(cmd.Name(), err)
		}
	}
	if err := output(cmd, f.format, resultView{res}, res); err != nil {
		return err
	}
	if err := runError(cmd, res); err != nil {
		return err
	}
	if f.failOnNonCompliant && !res.Compliant {
		return cli.NewCommandError(cmd.Name(), errNonCompliant)
	}
	return nil
}

func runError(cmd *cobra.Command, res *pipeline.Result) error {
	if res.Error == "" {
		return nil
	}
	return cli.NewCommandError(cmd.Name(), errors.New(res.Error))
}

// noPolicies reports whether every dispatched target resolved no rules.
func noPolicies(res *pipeline.Result) bool {
	if res.Error != "" || len(res.Policies) == 0 {
		return false
	}
	for _, s := range res.Policies {
		if !s.NoPolicies {
			return false
		}
	}
	return true
}

func readJSONObject(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, cli.NewInputError(path, err)
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, cli.NewInputError(path, fmt.Errorf("invalid JSON format: %w", err))
	}
	if doc == nil {
		return nil, cli.NewInputError(path, errors.New("input is not a JSON object"))
	}
	return doc, nil
}

func logInputError(logger *slog.Logger, path string, err error) {
	if errors.Is(err, fs.ErrNotExist) {
		logger.Error("input file not found", "input", path)
		return
	}
	logger.Error("invalid input file", "input", path, "error", err)
}

// readConversations accepts a JSON list of conversations or an object
// holding one under "conversations".
func readConversations(path string) ([]contract.Conversation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, cli.NewInputError(path, err)
	}

	var list []contract.Conversation
	if err := json.Unmarshal(data, &list); err == nil {
		return list, nil
	}

	var wrapped struct {
		Conversations []contract.Conversation `json:"conversations"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return nil, cli.NewInputError(path, fmt.Errorf("invalid JSON format: %w", err))
	}
	return wrapped.Conversations, nil
}
