package postgres

import (
	"fmt"
	"strconv"

	"credential-manager/internal/storage"
)

type Factory struct{}

func (f *Factory) Create(config storage.StorageConfig) (storage.Storage, error) {
	switch c := config.(type) {
	case *Config:
		return NewAdapter(c)
	case storage.GenericConfig:
		pgConfig, err := configFromGeneric(c)
		if err != nil {
			return nil, err
		}
		return NewAdapter(pgConfig)
	default:
		return nil, fmt.Errorf("invalid config type for PostgreSQL storage")
	}
}

func configFromGeneric(c storage.GenericConfig) (*Config, error) {
	if dsn := c.GetConnectionString(); dsn != "" {
		return NewConfigFromURL(dsn)
	}

	pgConfig := &Config{
		Host:     c.String("host"),
		Database: c.String("database"),
		Username: c.String("username"),
		Password: c.String("password"),
		SSLMode:  c.String("sslmode"),
	}
	if port := c.String("port"); port != "" {
		n, err := strconv.Atoi(port)
		if err != nil {
			return nil, fmt.Errorf("invalid PostgreSQL port %q", port)
		}
		pgConfig.Port = n
	}
	return pgConfig, nil
}

func (f *Factory) GetType() string {
	return "postgres"
}

func init() {
	storage.Register("postgres", &Factory{})
}
