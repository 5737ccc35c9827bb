package storage

import (
	"fmt"

	"credential-manager/internal/common/errors"
	"credential-manager/internal/config"
)

// NewStorage creates the storage adapter selected by cfg.DatabaseType through
// the default registry. The adapter package must have been imported.
func NewStorage(cfg *config.Config) (Storage, error) {
	var storageConfig GenericConfig
	storageType := cfg.DatabaseType

	switch storageType {
	case "sqlite":
		storageConfig = GenericConfig{
			"type": "sqlite",
			"path": cfg.DatabasePath,
		}

	case "postgres", "postgresql":
		storageType = "postgres"
		storageConfig = GenericConfig{
			"type":     "postgres",
			"host":     cfg.PostgresHost,
			"port":     cfg.PostgresPort,
			"database": cfg.PostgresDB,
			"username": cfg.PostgresUser,
			"password": cfg.PostgresPassword,
			"sslmode":  cfg.PostgresSSLMode,
		}

	case "memory":
		storageConfig = GenericConfig{"type": "memory"}

	default:
		return nil, errors.ConfigError(fmt.Sprintf("unsupported database type: %s", cfg.DatabaseType))
	}

	store, err := Create(storageType, storageConfig)
	if err != nil {
		return nil, errors.PersistenceError(fmt.Sprintf("failed to open %s storage", storageType), err)
	}
	return store, nil
}
