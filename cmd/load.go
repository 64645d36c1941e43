package main

import (
	"github.com/spf13/cobra"

	"github.com/sells-group/ans-sync/internal/metrics"
)

var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Truncate and reload the registry and statements from the local data directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("load"); err != nil {
			return err
		}

		st, err := openStores(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer st.Close()

		rec := metrics.New(runID)
		defer writeMetrics(cfg, rec, logger)

		if !runLoad(cmd.Context(), cfg, st, rec, logger) {
			return errPhaseFailed
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(loadCmd)
}
