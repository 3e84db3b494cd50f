// Package migrate implements the schema migration commands.
package migrate

import (
	"github.com/spf13/cobra"

	"github.com/jonesrussell/north-cloud/shelter-sync/cmd/common"
	"github.com/jonesrussell/north-cloud/shelter-sync/internal/bootstrap"
	"github.com/jonesrussell/north-cloud/shelter-sync/internal/database"
)

// Command returns the migrate command group.
func Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back database migrations",
	}
	cmd.AddCommand(upCommand(), downCommand())
	return cmd
}

func upCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return withDB(func(deps *bootstrap.CommandDeps, db *bootstrap.DatabaseComponents) error {
				return database.MigrateUp(db.DB, deps.Logger)
			})
		},
	}
}

func downCommand() *cobra.Command {
	var steps int

	cmd := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return withDB(func(deps *bootstrap.CommandDeps, db *bootstrap.DatabaseComponents) error {
				return database.MigrateDown(db.DB, steps, deps.Logger)
			})
		},
	}

	cmd.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back")
	return cmd
}

// withDB connects without the automatic migration so the command controls
// the schema version.
func withDB(fn func(deps *bootstrap.CommandDeps, db *bootstrap.DatabaseComponents) error) error {
	deps, err := common.Deps()
	if err != nil {
		return err
	}
	deps.Config.Service.AutoMigrate = false

	db, err := bootstrap.SetupDatabase(deps)
	if err != nil {
		return err
	}
	defer db.Close()

	return fn(deps, db)
}
