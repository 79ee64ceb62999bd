package main

import (
	"fmt"

	"github.com/jonathan/resume-optimizer/internal/db"
	"github.com/spf13/cobra"
)

func newMigrateCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := root.loadSettings(cmd)
			if err != nil {
				return err
			}
			if err := requireDatabaseURL(cfg); err != nil {
				return err
			}
			if err := db.Migrate(cmd.Context(), cfg.DatabaseURL); err != nil {
				return fmt.Errorf("failed to apply migrations: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Migrations applied")
			return nil
		},
	}
}
