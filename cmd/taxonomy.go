package main

import (
	"github.com/spf13/cobra"
)

var taxonomyCmd = &cobra.Command{
	Use:   "taxonomy",
	Short: "Manage the ingredient form taxonomy",
}

func init() {
	rootCmd.AddCommand(taxonomyCmd)
}
