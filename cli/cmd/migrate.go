package cmd

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/stacksos/aicore/cli/internal/output"
	"github.com/stacksos/aicore/services/generate"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the telemetry database schema",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply pending migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		base, err := loadBase()
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		defer cancel()

		db, err := connectDB(ctx, base)
		if err != nil {
			return err
		}
		defer db.Close()

		if err := generate.Migrate(ctx, db); err != nil {
			return err
		}
		output.Success("migrations applied")
		return nil
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back the last applied migration",
	RunE: func(cmd *cobra.Command, args []string) error {
		base, err := loadBase()
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		defer cancel()

		db, err := connectDB(ctx, base)
		if err != nil {
			return err
		}
		defer db.Close()

		migrator, err := generate.NewMigrator(db)
		if err != nil {
			return err
		}
		if err := migrator.Down(ctx); err != nil {
			return err
		}
		output.Success("rolled back one migration")
		return nil
	},
}

var migrateVersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show the current schema version",
	RunE: func(cmd *cobra.Command, args []string) error {
		base, err := loadBase()
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		db, err := connectDB(ctx, base)
		if err != nil {
			return err
		}
		defer db.Close()

		migrator, err := generate.NewMigrator(db)
		if err != nil {
			return err
		}
		version, err := migrator.Version(ctx)
		if err != nil {
			return err
		}
		output.Info("schema version %d", version)
		return nil
	},
}

func init() {
	migrateCmd.AddCommand(migrateUpCmd)
	migrateCmd.AddCommand(migrateDownCmd)
	migrateCmd.AddCommand(migrateVersionCmd)
}
