package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/terra-clan/apply-wizard/internal/drafts"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the draft table migrations",
	Long:  `Apply pending SQL migrations to the PostgreSQL draft database. Applied migrations are recorded and skipped on later runs.`,
	RunE:  runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	slog.Info("running database migrations", "dir", cfg.Database.MigrationsDir)
	if err := drafts.Migrate(ctx, cfg.Database.DSN, cfg.Database.MigrationsDir); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}
