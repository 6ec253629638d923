package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/quantfort/riskgov/internal/application"
	"github.com/quantfort/riskgov/internal/domain/evolve"
	"github.com/quantfort/riskgov/internal/domain/flowstate"
	"github.com/quantfort/riskgov/internal/domain/governor"
	"github.com/quantfort/riskgov/internal/domain/packet"
	"github.com/quantfort/riskgov/internal/domain/regime"
)

// oneShotEngine builds an in-process engine for the non-serve subcommands.
// No Redis, no Postgres: these are offline tools over the same logic.
func oneShotEngine() (*application.Engine, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	clock, err := evolve.NewSessionClock()
	if err != nil {
		return nil, err
	}
	return application.NewEngine(cfg, application.Deps{Clock: clock}), nil
}

func readInput(path string, v interface{}) error {
	var data []byte
	var err error
	if path == "-" || path == "" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse input JSON: %w", err)
	}
	return nil
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

type evaluateInput struct {
	Regime            regime.GovernorRegime    `json:"regime"`
	DataStatus        governor.DataStatus      `json:"data_status"`
	DataAgeSeconds    *float64                 `json:"data_age_seconds"`
	EventSeverity     governor.EventSeverity   `json:"event_severity"`
	RealizedDailyR    float64                  `json:"realized_daily_r"`
	OpenRiskR         float64                  `json:"open_risk_r"`
	ConsecutiveLosses int                      `json:"consecutive_losses"`
	Intent            governor.CandidateIntent `json:"intent"`
}

func runEvaluate(cmd *cobra.Command, _ []string) error {
	eng, err := oneShotEngine()
	if err != nil {
		return err
	}
	input, _ := cmd.Flags().GetString("input")
	workspace, _ := cmd.Flags().GetString("workspace")

	var req evaluateInput
	if err := readInput(input, &req); err != nil {
		return err
	}

	snap := eng.BuildSnapshot(context.Background(), workspace, governor.SnapshotParams{
		Regime:            req.Regime,
		DataStatus:        req.DataStatus,
		DataAgeSeconds:    req.DataAgeSeconds,
		EventSeverity:     req.EventSeverity,
		RealizedDailyR:    req.RealizedDailyR,
		OpenRiskR:         req.OpenRiskR,
		ConsecutiveLosses: req.ConsecutiveLosses,
	})
	dec, err := eng.EvaluateCandidate(snap, req.Intent)
	if err != nil {
		return err
	}
	return printJSON(map[string]interface{}{"snapshot": snap, "decision": dec})
}

func runRegime(cmd *cobra.Command, _ []string) error {
	eng, err := oneShotEngine()
	if err != nil {
		return err
	}
	input, _ := cmd.Flags().GetString("input")

	var in regime.IndicatorReading
	if err := readInput(input, &in); err != nil {
		return err
	}
	return printJSON(eng.ClassifyRegime(in))
}

func runFlow(cmd *cobra.Command, _ []string) error {
	eng, err := oneShotEngine()
	if err != nil {
		return err
	}
	input, _ := cmd.Flags().GetString("input")
	workspace, _ := cmd.Flags().GetString("workspace")

	var in flowstate.Input
	if err := readInput(input, &in); err != nil {
		return err
	}
	if in.Symbol == "" {
		return fmt.Errorf("symbol is required")
	}
	return printJSON(eng.ComputeFlowState(workspace, in))
}

func runGuard(cmd *cobra.Command, _ []string) error {
	eng, err := oneShotEngine()
	if err != nil {
		return err
	}
	workspace, _ := cmd.Flags().GetString("workspace")
	action, _ := cmd.Flags().GetString("action")
	ctx := context.Background()

	var st interface{}
	switch action {
	case "status":
		st, err = eng.GuardState(ctx, workspace)
	case "disable":
		st, err = eng.RequestGuardDisable(ctx, workspace)
	case "cancel":
		st, err = eng.CancelGuardDisable(ctx, workspace)
	case "enable":
		st, err = eng.EnableGuard(ctx, workspace)
	default:
		return fmt.Errorf("unknown guard action %q", action)
	}
	if err != nil {
		return err
	}
	return printJSON(st)
}

func runEvolve(cmd *cobra.Command, _ []string) error {
	eng, err := oneShotEngine()
	if err != nil {
		return err
	}
	workspace, _ := cmd.Flags().GetString("workspace")
	group, _ := cmd.Flags().GetString("group")
	cadence, _ := cmd.Flags().GetString("cadence")
	samplesPath, _ := cmd.Flags().GetString("samples")

	var samples []evolve.OutcomeSample
	if samplesPath != "" {
		if err := readInput(samplesPath, &samples); err != nil {
			return err
		}
	}

	adj, err := eng.RunEvolutionCycle(context.Background(), evolve.Params{
		Workspace:   workspace,
		SymbolGroup: group,
		Cadence:     evolve.Cadence(cadence),
		Samples:     samples,
	})
	if err != nil {
		return err
	}
	return printJSON(adj)
}

func runFingerprint(cmd *cobra.Command, _ []string) error {
	eng, err := oneShotEngine()
	if err != nil {
		return err
	}
	input, _ := cmd.Flags().GetString("input")

	var in packet.FingerprintInput
	if err := readInput(input, &in); err != nil {
		return err
	}
	return printJSON(map[string]string{"fingerprint": eng.Fingerprint(in)})
}
