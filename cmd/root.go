package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/suppscan/score-cli/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "score-cli",
	Short: "Supplement label resolution and scoring pipeline",
	Long:  "Resolves ingredient form text from supplement label data, computes deterministic v4 score bundles, and runs resumable backfills over the product catalogue.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
