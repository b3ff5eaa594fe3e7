package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/suppscan/score-cli/internal/diag"
)

var diagDriftCmd = &cobra.Command{
	Use:   "drift",
	Short: "Gate a taxonomy change on yield drift",
	Long: `Compares a before and after yield report against the gate
thresholds. Exits non-zero when any threshold is violated, so the command
can gate taxonomy changes in CI.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		beforePath, _ := cmd.Flags().GetString("before")
		afterPath, _ := cmd.Flags().GetString("after")
		gatePath, _ := cmd.Flags().GetString("gate")
		if gatePath == "" {
			gatePath = cfg.Diag.GatePath
		}
		if gatePath == "" {
			return eris.New("drift: --gate or diag.gate_path is required")
		}

		before, err := diag.ReadReport(beforePath)
		if err != nil {
			return err
		}
		after, err := diag.ReadReport(afterPath)
		if err != nil {
			return err
		}
		gate, err := diag.LoadGate(gatePath)
		if err != nil {
			return err
		}

		result := diag.CompareDrift(before, after, gate)

		out, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return eris.Wrap(err, "drift: marshal result")
		}
		fmt.Println(string(out))

		if !result.Pass {
			// Non-zero exit without cobra usage noise.
			for _, v := range result.Violations {
				fmt.Fprintln(os.Stderr, "violation:", v)
			}
			return eris.New("drift gate failed")
		}
		return nil
	},
}

func init() {
	diagDriftCmd.Flags().String("before", "", "yield report before the taxonomy change")
	diagDriftCmd.Flags().String("after", "", "yield report after the taxonomy change")
	diagDriftCmd.Flags().String("gate", "", "gate thresholds YAML (default from config)")
	_ = diagDriftCmd.MarkFlagRequired("before")
	_ = diagDriftCmd.MarkFlagRequired("after")
	diagCmd.AddCommand(diagDriftCmd)
}
