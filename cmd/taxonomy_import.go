package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/suppscan/score-cli/internal/taxonomy"
)

var taxonomyImportCmd = &cobra.Command{
	Use:   "import <workbook.xlsx>",
	Short: "Import forms and aliases from a curation workbook",
	Long: `Parses the taxonomy curation workbook (sheets "forms" and
"aliases") and upserts its rows into the store. Alias normalization happens
at import time so lookups never re-normalize stored rows.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		wb, err := taxonomy.LoadWorkbook(args[0])
		if err != nil {
			return err
		}

		dryRun, _ := cmd.Flags().GetBool("dry-run")
		if dryRun {
			fmt.Printf("workbook parsed: %d forms, %d aliases (dry run, nothing written)\n",
				len(wb.Forms), len(wb.Aliases))
			return nil
		}

		if err := cfg.Validate("store"); err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		formsN, err := st.UpsertForms(ctx, wb.Forms)
		if err != nil {
			return eris.Wrap(err, "taxonomy import: upsert forms")
		}
		aliasN, err := st.UpsertAliases(ctx, wb.Aliases)
		if err != nil {
			return eris.Wrap(err, "taxonomy import: upsert aliases")
		}

		zap.L().Info("taxonomy imported",
			zap.String("workbook", args[0]),
			zap.Int64("forms", formsN),
			zap.Int64("aliases", aliasN),
		)
		fmt.Printf("Imported %d forms and %d aliases\n", formsN, aliasN)
		return nil
	},
}

func init() {
	taxonomyImportCmd.Flags().Bool("dry-run", false, "parse and validate without writing")
	taxonomyCmd.AddCommand(taxonomyImportCmd)
}
