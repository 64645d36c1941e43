package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/ans-sync/internal/metrics"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Download, then load",
	Long:  "Runs the download phase and, if it found and extracted at least one statement archive, the load phase.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("run"); err != nil {
			return err
		}
		ctx := cmd.Context()

		// Fail on an unreachable database before spending time on downloads.
		st, err := openStores(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer st.Close()

		rec := metrics.New(runID)
		defer writeMetrics(cfg, rec, logger)

		if !runDownload(ctx, cfg, rec, logger) {
			logger.Error("download phase failed, skipping load")
			return errPhaseFailed
		}
		if !runLoad(ctx, cfg, st, rec, logger) {
			return errPhaseFailed
		}
		logger.Info("run complete", zap.Strings("years", cfg.Source.Years))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}
