package main

import (
	"github.com/spf13/cobra"
)

var diagCmd = &cobra.Command{
	Use:   "diag",
	Short: "Resolution and scoring diagnostics",
}

func init() {
	rootCmd.AddCommand(diagCmd)
}
