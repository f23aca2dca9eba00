package main

import (
	"fmt"

	"github.com/obdai/obdai/internal/config"
	"github.com/obdai/obdai/internal/database"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:       "migrate [up|down|version]",
	Short:     "Apply, roll back or inspect database migrations",
	Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"up", "down", "version"},
	RunE:      runMigrate,
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(config.RequireDatabase); err != nil {
		return err
	}

	action := "up"
	if len(args) == 1 {
		action = args[0]
	}

	out := cmd.OutOrStdout()
	switch action {
	case "down":
		if err := database.MigrateDown(cfg.DatabaseURL); err != nil {
			return err
		}
		fmt.Fprintln(out, "All migrations rolled back")
		return nil
	case "version":
		version, dirty, err := database.MigrationVersion(cfg.DatabaseURL)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "version %d", version)
		if dirty {
			fmt.Fprint(out, " (dirty)")
		}
		fmt.Fprintln(out)
		return nil
	default:
		if err := database.Migrate(cfg.DatabaseURL); err != nil {
			return err
		}
		fmt.Fprintln(out, "Migrations complete")
		return nil
	}
}
