package storage

import (
	"context"
)

// CredentialStore persists OAuth2 client registrations. Credentials are
// immutable once added.
type CredentialStore interface {
	ListCredentials(ctx context.Context) ([]*Credential, error)
	AddCredential(ctx context.Context, serviceName, clientID, clientSecret string) (*Credential, error)
	// GetCredential returns nil, nil when no credential has the given id.
	GetCredential(ctx context.Context, id int64) (*Credential, error)
}

// TokenStore persists at most one token per credential.
type TokenStore interface {
	// UpsertToken inserts the token or overwrites the existing row for the same
	// credential, keeping that row's id.
	UpsertToken(ctx context.Context, params UpsertTokenParams) (*Token, error)
	// GetTokenByCredentialID returns nil, nil when the credential has no token.
	GetTokenByCredentialID(ctx context.Context, credentialID int64) (*Token, error)
}

type Storage interface {
	CredentialStore
	TokenStore

	Health(ctx context.Context) error
	Close() error
}

type StorageConfig interface {
	Validate() error
	GetType() string
	GetConnectionString() string
}

type StorageFactory interface {
	Create(config StorageConfig) (Storage, error)
	GetType() string
}

// GenericConfig is a simple map-based implementation of StorageConfig
type GenericConfig map[string]interface{}

func (gc GenericConfig) Validate() error {
	return nil
}

func (gc GenericConfig) GetType() string {
	if t, ok := gc["type"].(string); ok {
		return t
	}
	return "unknown"
}

func (gc GenericConfig) GetConnectionString() string {
	if cs, ok := gc["connection_string"].(string); ok {
		return cs
	}
	return ""
}

// String returns the string value stored under key, or "".
func (gc GenericConfig) String(key string) string {
	if v, ok := gc[key].(string); ok {
		return v
	}
	return ""
}
