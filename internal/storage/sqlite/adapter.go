// Package sqlite is the production storage adapter, backed by mattn/go-sqlite3.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"credential-manager/internal/storage"
)

type Adapter struct {
	db     *sql.DB
	config *Config
}

func NewAdapter(config *Config) (*Adapter, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid SQLite config: %w", err)
	}

	db, err := sql.Open("sqlite3", config.GetConnectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection serialises writers and keeps ":memory:" databases shared.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	adapter := &Adapter{
		db:     db,
		config: config,
	}

	if err := adapter.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return adapter, nil
}

func (a *Adapter) Close() error {
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}

func (a *Adapter) Health(ctx context.Context) error {
	return a.db.PingContext(ctx)
}

func (a *Adapter) migrate() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS service_credentials (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			service_name TEXT NOT NULL,
			client_id TEXT NOT NULL,
			client_secret TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS oauth_tokens (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			credentials_id INTEGER NOT NULL UNIQUE,
			access_token TEXT NOT NULL,
			refresh_token TEXT NOT NULL DEFAULT '',
			expires_at TEXT NOT NULL,
			scope TEXT,
			FOREIGN KEY (credentials_id) REFERENCES service_credentials (id) ON DELETE CASCADE
		)`,
	}

	for _, query := range queries {
		if _, err := a.db.Exec(query); err != nil {
			return fmt.Errorf("failed to execute migration query: %w", err)
		}
	}

	return nil
}

func (a *Adapter) ListCredentials(ctx context.Context) ([]*storage.Credential, error) {
	rows, err := a.db.QueryContext(ctx,
		`SELECT id, service_name, client_id, client_secret FROM service_credentials ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var creds []*storage.Credential
	for rows.Next() {
		var c storage.Credential
		if err := rows.Scan(&c.ID, &c.ServiceName, &c.ClientID, &c.ClientSecret); err != nil {
			return nil, err
		}
		creds = append(creds, &c)
	}
	return creds, rows.Err()
}

func (a *Adapter) AddCredential(ctx context.Context, serviceName, clientID, clientSecret string) (*storage.Credential, error) {
	result, err := a.db.ExecContext(ctx,
		`INSERT INTO service_credentials (service_name, client_id, client_secret) VALUES (?, ?, ?)`,
		serviceName, clientID, clientSecret)
	if err != nil {
		return nil, err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, err
	}

	return &storage.Credential{
		ID:           id,
		ServiceName:  serviceName,
		ClientID:     clientID,
		ClientSecret: clientSecret,
	}, nil
}

func (a *Adapter) GetCredential(ctx context.Context, id int64) (*storage.Credential, error) {
	var c storage.Credential
	err := a.db.QueryRowContext(ctx,
		`SELECT id, service_name, client_id, client_secret FROM service_credentials WHERE id = ?`, id).
		Scan(&c.ID, &c.ServiceName, &c.ClientID, &c.ClientSecret)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (a *Adapter) UpsertToken(ctx context.Context, params storage.UpsertTokenParams) (*storage.Token, error) {
	row := a.db.QueryRowContext(ctx, `
		INSERT INTO oauth_tokens (credentials_id, access_token, refresh_token, expires_at, scope)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (credentials_id) DO UPDATE SET
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			expires_at = excluded.expires_at,
			scope = excluded.scope
		RETURNING id, credentials_id, access_token, refresh_token, expires_at, scope`,
		params.CredentialID, params.AccessToken, params.RefreshToken, params.ExpiresAt, nullString(params.Scope))

	return scanToken(row)
}

func (a *Adapter) GetTokenByCredentialID(ctx context.Context, credentialID int64) (*storage.Token, error) {
	row := a.db.QueryRowContext(ctx, `
		SELECT id, credentials_id, access_token, refresh_token, expires_at, scope
		FROM oauth_tokens WHERE credentials_id = ?`, credentialID)

	token, err := scanToken(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return token, err
}

func scanToken(row *sql.Row) (*storage.Token, error) {
	var t storage.Token
	var scope sql.NullString
	if err := row.Scan(&t.ID, &t.CredentialID, &t.AccessToken, &t.RefreshToken, &t.ExpiresAt, &scope); err != nil {
		return nil, err
	}
	if scope.Valid {
		t.Scope = &scope.String
	}
	return &t, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
