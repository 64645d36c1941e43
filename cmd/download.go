package main

import (
	"github.com/spf13/cobra"

	"github.com/sells-group/ans-sync/internal/metrics"
)

var downloadCmd = &cobra.Command{
	Use:   "download",
	Short: "Download the operator registry and extract the accounting statement archives",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("download"); err != nil {
			return err
		}

		rec := metrics.New(runID)
		defer writeMetrics(cfg, rec, logger)

		if !runDownload(cmd.Context(), cfg, rec, logger) {
			return errPhaseFailed
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(downloadCmd)
}
