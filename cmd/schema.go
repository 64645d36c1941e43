package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/ans-sync/internal/store"
)

var schemaDriver string

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the table DDL for the configured driver",
	Long:  "Prints the DDL the loaders expect. Nothing is executed; apply it with your migration tooling.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ddl, err := schemaFor(schemaDriver, cfg.Store.Driver, cfg.Store.Schema)
		if err != nil {
			return err
		}
		_, err = fmt.Fprint(cmd.OutOrStdout(), ddl)
		return err
	},
}

func schemaFor(flag, configured, pgSchema string) (string, error) {
	driver := flag
	if driver == "" {
		driver = configured
	}
	switch driver {
	case "postgres":
		return store.PostgresSchema(pgSchema), nil
	case "sqlite":
		return store.SQLiteSchema, nil
	default:
		return "", eris.Errorf("unknown driver %q", driver)
	}
}

func init() {
	schemaCmd.Flags().StringVar(&schemaDriver, "driver", "", "postgres or sqlite (default from config)")
	rootCmd.AddCommand(schemaCmd)
}
