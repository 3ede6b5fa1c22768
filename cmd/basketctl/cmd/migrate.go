package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"basket-service/internal/config"
)

func init() {
	rootCmd.AddCommand(migrateCmd)
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Creates the basket tables in the database named by DB_DRIVER and DATABASE_URL.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load()
		if cfg.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL environment variable is required")
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
		defer cancel()

		db, err := config.OpenDB(ctx, cfg)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := config.RunMigrations(ctx, db); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "migrations applied (%s)\n", cfg.DBDriver)
		return nil
	},
}
