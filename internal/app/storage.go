package app

import (
	"credential-manager/internal/common/logging"
	"credential-manager/internal/storage"
	_ "credential-manager/internal/storage/memory"
	_ "credential-manager/internal/storage/postgres"
	_ "credential-manager/internal/storage/sqlite"
)

func (app *App) initializeStorage() error {
	switch app.Config.DatabaseType {
	case "postgres", "postgresql":
		app.Logger.Info("Database: PostgreSQL",
			logging.String("host", app.Config.PostgresHost),
			logging.String("port", app.Config.PostgresPort),
			logging.String("database", app.Config.PostgresDB),
		)
	case "memory":
		app.Logger.Warn("Database: in-memory, tokens are lost on exit")
	default:
		app.Logger.Info("Database: SQLite", logging.String("path", app.Config.DatabasePath))
	}

	store, err := storage.NewStorage(app.Config)
	if err != nil {
		return err
	}

	app.Storage = store
	return nil
}
