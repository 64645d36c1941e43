package main

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/ans-sync/internal/config"
)

var (
	cfg    *config.Config
	logger = zap.NewNop()
	runID  string
)

var rootCmd = &cobra.Command{
	Use:          "ans-sync",
	Short:        "ANS open-data ingestion and load pipeline",
	Long:         "Downloads the ANS operator registry and quarterly accounting statements, then bulk-loads them into Postgres or SQLite.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		l, err := config.InitLogger(cfg.Log)
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		zap.ReplaceGlobals(l)

		runID = uuid.NewString()
		logger = l.With(zap.String("run_id", runID))
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
