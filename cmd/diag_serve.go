package main

import (
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/suppscan/score-cli/internal/diag"
	"github.com/suppscan/score-cli/internal/source"
)

var diagServePort int

var diagServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve read-only diagnostics over HTTP",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		port := diagServePort
		if port == 0 {
			port = cfg.Diag.ServePort
		}

		server := diag.NewServer(st, source.NewRegistry(), cfg.Scoring.DatasetVersion, cfg.Diag.SampleSize, cfg.Backfill.CheckpointPath)
		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: server.Router(),
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down diagnostics server")
			srv.Shutdown(ctx)
		}()

		zap.L().Info("starting diagnostics server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "diag serve: listen")
		}

		return nil
	},
}

func init() {
	diagServeCmd.Flags().IntVar(&diagServePort, "port", 0, "server port (default from config)")
	diagCmd.AddCommand(diagServeCmd)
}
