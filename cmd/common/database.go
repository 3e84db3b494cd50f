package common

import (
	"github.com/jonesrussell/north-cloud/shelter-sync/internal/bootstrap"
	"github.com/jonesrussell/north-cloud/shelter-sync/internal/database"
	"github.com/jonesrussell/north-cloud/shelter-sync/internal/logger"
)

// WithStore runs fn against the repository store and closes the connection
// afterwards. Commands that only read the database use it instead of a full
// runtime.
func WithStore(fn func(deps *bootstrap.CommandDeps, store *database.Store) error) error {
	deps, err := Deps()
	if err != nil {
		return err
	}
	defer func() { _ = deps.Logger.Sync() }()

	db, err := bootstrap.SetupDatabase(deps)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			deps.Logger.Error("Failed to close database", logger.Error(closeErr))
		}
	}()

	return fn(deps, db.Store)
}
