package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"mercator-hq/certify/pkg/cli"
	"mercator-hq/certify/pkg/config"
	"mercator-hq/certify/pkg/pipeline"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

// runtimeOptions are appended to every runtime built by a command.
// Tests use them to inject fakes.
var runtimeOptions []pipeline.Option

var rootCmd = &cobra.Command{
	Use:   "certify",
	Short: "Certify - compliance evaluation for AI applications",
	Long: `Certify evaluates logged interactions of AI applications ("contracts")
against fairness, safety and regulatory policies.

A run loads a contract, scores it for toxicity and bias, runs the
compliance evaluators, evaluates the result against OPA/Rego policies
and renders audit reports. Every run is recorded in the evidence store.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() {
	ctx, stop := cli.SetupSignalHandler()
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	// Global persistent flags (available to all subcommands)
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "certify.yaml", "config file path (missing file uses defaults)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

// loadConfig loads the configuration file with environment overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return nil, cli.NewConfigError("", fmt.Sprintf("failed to load config: %v", err))
	}
	if verbose {
		cfg.Telemetry.Logging.Level = "debug"
	}
	return cfg, nil
}

// newRuntime builds the pipeline runtime for cmd.
func newRuntime(cmd *cobra.Command) (*pipeline.Runtime, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	rt, err := pipeline.NewRuntime(cmd.Context(), cfg, runtimeOptions...)
	if err != nil {
		return nil, cli.NewCommandError(cmd.Name(), err)
	}
	return rt, nil
}

// closeRuntime writes the metrics textfile and releases the runtime.
func closeRuntime(rt *pipeline.Runtime) {
	path := rt.Config().Telemetry.Metrics.Textfile
	if err := rt.Metrics().WriteTextfile(path); err != nil {
		rt.Logger().Warn("failed to write metrics", "path", path, "error", err)
	}
	if err := rt.Close(); err != nil {
		rt.Logger().Warn("failed to close evidence storage", "error", err)
	}
}
