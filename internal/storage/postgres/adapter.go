// Package postgres is the PostgreSQL storage adapter, backed by a pgx connection pool.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"credential-manager/internal/storage"
)

type Adapter struct {
	pool   *pgxpool.Pool
	config *Config
}

func NewAdapter(config *Config) (*Adapter, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid PostgreSQL config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	poolConfig, err := pgxpool.ParseConfig(config.GetConnectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}
	if config.MaxConns > 0 {
		poolConfig.MaxConns = config.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	adapter := &Adapter{
		pool:   pool,
		config: config,
	}

	if err := adapter.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return adapter, nil
}

func (a *Adapter) Close() error {
	if a.pool != nil {
		a.pool.Close()
	}
	return nil
}

func (a *Adapter) Health(ctx context.Context) error {
	return a.pool.Ping(ctx)
}

func (a *Adapter) migrate(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS service_credentials (
			id BIGSERIAL PRIMARY KEY,
			service_name TEXT NOT NULL,
			client_id TEXT NOT NULL,
			client_secret TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS oauth_tokens (
			id BIGSERIAL PRIMARY KEY,
			credentials_id BIGINT NOT NULL UNIQUE REFERENCES service_credentials (id) ON DELETE CASCADE,
			access_token TEXT NOT NULL,
			refresh_token TEXT NOT NULL DEFAULT '',
			expires_at TEXT NOT NULL,
			scope TEXT
		)`,
	}

	for _, query := range queries {
		if _, err := a.pool.Exec(ctx, query); err != nil {
			return fmt.Errorf("failed to execute migration query: %w", err)
		}
	}

	return nil
}

func (a *Adapter) ListCredentials(ctx context.Context) ([]*storage.Credential, error) {
	rows, err := a.pool.Query(ctx,
		`SELECT id, service_name, client_id, client_secret FROM service_credentials ORDER BY id`)
	if err != nil {
		return nil, err
	}

	creds, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*storage.Credential, error) {
		var c storage.Credential
		err := row.Scan(&c.ID, &c.ServiceName, &c.ClientID, &c.ClientSecret)
		return &c, err
	})
	if err != nil {
		return nil, err
	}
	return creds, nil
}

func (a *Adapter) AddCredential(ctx context.Context, serviceName, clientID, clientSecret string) (*storage.Credential, error) {
	c := storage.Credential{
		ServiceName:  serviceName,
		ClientID:     clientID,
		ClientSecret: clientSecret,
	}

	err := a.pool.QueryRow(ctx,
		`INSERT INTO service_credentials (service_name, client_id, client_secret) VALUES ($1, $2, $3) RETURNING id`,
		serviceName, clientID, clientSecret).Scan(&c.ID)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (a *Adapter) GetCredential(ctx context.Context, id int64) (*storage.Credential, error) {
	var c storage.Credential
	err := a.pool.QueryRow(ctx,
		`SELECT id, service_name, client_id, client_secret FROM service_credentials WHERE id = $1`, id).
		Scan(&c.ID, &c.ServiceName, &c.ClientID, &c.ClientSecret)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (a *Adapter) UpsertToken(ctx context.Context, params storage.UpsertTokenParams) (*storage.Token, error) {
	row := a.pool.QueryRow(ctx, `
		INSERT INTO oauth_tokens (credentials_id, access_token, refresh_token, expires_at, scope)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (credentials_id) DO UPDATE SET
			access_token = EXCLUDED.access_token,
			refresh_token = EXCLUDED.refresh_token,
			expires_at = EXCLUDED.expires_at,
			scope = EXCLUDED.scope
		RETURNING id, credentials_id, access_token, refresh_token, expires_at, scope`,
		params.CredentialID, params.AccessToken, params.RefreshToken, params.ExpiresAt, params.Scope)

	return scanToken(row)
}

func (a *Adapter) GetTokenByCredentialID(ctx context.Context, credentialID int64) (*storage.Token, error) {
	row := a.pool.QueryRow(ctx, `
		SELECT id, credentials_id, access_token, refresh_token, expires_at, scope
		FROM oauth_tokens WHERE credentials_id = $1`, credentialID)

	token, err := scanToken(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return token, err
}

func scanToken(row pgx.Row) (*storage.Token, error) {
	var t storage.Token
	if err := row.Scan(&t.ID, &t.CredentialID, &t.AccessToken, &t.RefreshToken, &t.ExpiresAt, &t.Scope); err != nil {
		return nil, err
	}
	return &t, nil
}
