package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/saaqdata/regularizer/cmd/regularizer/ui"
	"github.com/saaqdata/regularizer/internal/storage"
)

var migrateDryRun bool

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	RunE:  runMigrate,
}

func init() {
	migrateCmd.Flags().BoolVar(&migrateDryRun, "dry-run", false, "list pending migrations without applying them")
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	a, err := setup()
	if err != nil {
		return err
	}
	defer a.close()

	m := storage.NewMigrator(a.db, a.cfg.Database.MigrationsDir, a.cfg.Database.Driver)

	pending, err := m.Pending(ctx)
	if err != nil {
		return fmt.Errorf("list pending migrations: %w", err)
	}
	if len(pending) == 0 {
		ui.Success("Database is up to date.")
		return nil
	}

	for _, name := range pending {
		ui.Message("pending: %s", name)
	}
	if migrateDryRun {
		return nil
	}

	if err := m.Apply(ctx); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	ui.Success("Applied %d migration(s).", len(pending))
	return nil
}
