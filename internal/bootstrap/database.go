package bootstrap

import (
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/north-cloud/shelter-sync/internal/database"
	"github.com/jonesrussell/north-cloud/shelter-sync/internal/logger"
)

// DatabaseComponents holds the connection and the repository store.
type DatabaseComponents struct {
	DB    *sqlx.DB
	Store *database.Store
}

// SetupDatabase connects to PostgreSQL, applies migrations when
// auto_migrate is on, and creates the repositories.
func SetupDatabase(deps *CommandDeps) (*DatabaseComponents, error) {
	db, err := database.NewPostgresConnection(deps.Config.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	deps.Logger.Info("Connected to database",
		logger.String("host", deps.Config.Database.Host),
		logger.String("database", deps.Config.Database.Database),
	)

	if deps.Config.Service.AutoMigrate {
		if migrateErr := database.MigrateUp(db, deps.Logger); migrateErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to migrate database: %w", migrateErr)
		}
	}

	return &DatabaseComponents{DB: db, Store: database.NewStore(db)}, nil
}

// Close closes the connection.
func (c *DatabaseComponents) Close() error {
	if c == nil || c.DB == nil {
		return nil
	}
	return c.DB.Close()
}
