package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/quantfort/riskgov/internal/config"
)

const (
	appName = "riskgov"
	version = "v1.2.0"
)

var configPath string

func main() {
	zerolog.TimeFieldFormat = time.RFC3339

	rootCmd := &cobra.Command{
		Use:     "riskgov",
		Short:   "Risk governance and decision engine",
		Version: version,
		Long: `riskgov evaluates candidate trades against account risk state:
regime classification, flow state scoring, guard toggles with cooldowns,
and outcome-driven weight evolution.

Run 'riskgov serve' for the HTTP service; the other subcommands are
one-shot tools over the same engine.`,
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config (defaults apply when absent)")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP service",
		Long:  "Starts the JSON API with /health and /metrics, wired to Postgres and Redis when configured",
		RunE:  runServe,
	}

	evaluateCmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Evaluate one candidate intent",
		Long:  "Reads an evaluation request (snapshot counters + intent) as JSON from a file or stdin and prints the decision",
		RunE:  runEvaluate,
	}
	evaluateCmd.Flags().String("input", "-", "Request JSON file, or - for stdin")
	evaluateCmd.Flags().String("workspace", "default", "Workspace id")

	regimeCmd := &cobra.Command{
		Use:   "regime",
		Short: "Classify a market regime reading",
		Long:  "Reads an indicator reading as JSON from a file or stdin and prints the three-taxonomy classification",
		RunE:  runRegime,
	}
	regimeCmd.Flags().String("input", "-", "Indicator JSON file, or - for stdin")

	flowCmd := &cobra.Command{
		Use:   "flow",
		Short: "Compute a symbol's flow state",
		Long:  "Reads a flow input as JSON from a file or stdin and prints the classified state with probabilities",
		RunE:  runFlow,
	}
	flowCmd.Flags().String("input", "-", "Flow input JSON file, or - for stdin")
	flowCmd.Flags().String("workspace", "default", "Workspace id")

	guardCmd := &cobra.Command{
		Use:   "guard",
		Short: "Inspect or toggle the workspace guard",
		Long:  "Reads or transitions the guard toggle: status, disable (10 minute cooldown), cancel, enable",
		RunE:  runGuard,
	}
	guardCmd.Flags().String("workspace", "default", "Workspace id")
	guardCmd.Flags().String("action", "status", "One of status|disable|cancel|enable")

	evolveCmd := &cobra.Command{
		Use:   "evolve",
		Short: "Run one evolution cycle",
		Long:  "Recomputes scoring weights from the labeled outcome window and prints the adjustment record",
		RunE:  runEvolve,
	}
	evolveCmd.Flags().String("workspace", "default", "Workspace id")
	evolveCmd.Flags().String("group", "default", "Symbol group")
	evolveCmd.Flags().String("cadence", "weekly", "One of daily|weekly|monthly")
	evolveCmd.Flags().String("samples", "", "Outcome samples JSON file (required without a database)")

	fingerprintCmd := &cobra.Command{
		Use:   "fingerprint",
		Short: "Compute a decision packet fingerprint",
		Long:  "Reads fingerprint input as JSON from a file or stdin and prints the normalized content hash",
		RunE:  runFingerprint,
	}
	fingerprintCmd.Flags().String("input", "-", "Fingerprint input JSON file, or - for stdin")

	rootCmd.AddCommand(serveCmd, evaluateCmd, regimeCmd, flowCmd, guardCmd, evolveCmd, fingerprintCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads the config file and applies the log settings before
// anything else runs.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Log.Level))
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Log.Level, err)
	}
	zerolog.SetGlobalLevel(level)
	if cfg.Log.Pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
	return cfg, nil
}
