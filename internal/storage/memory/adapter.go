// Package memory is an in-process storage adapter used by tests and
// ephemeral runs. Nothing survives a restart.
package memory

import (
	"context"
	"sort"
	"sync"

	"credential-manager/internal/storage"
)

type Adapter struct {
	mu          sync.RWMutex
	credentials map[int64]*storage.Credential
	tokens      map[int64]*storage.Token // keyed by credential id
	nextCredID  int64
	nextTokenID int64
}

func NewAdapter() *Adapter {
	return &Adapter{
		credentials: make(map[int64]*storage.Credential),
		tokens:      make(map[int64]*storage.Token),
	}
}

func (a *Adapter) ListCredentials(ctx context.Context) ([]*storage.Credential, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	creds := make([]*storage.Credential, 0, len(a.credentials))
	for _, c := range a.credentials {
		copied := *c
		creds = append(creds, &copied)
	}
	sort.Slice(creds, func(i, j int) bool { return creds[i].ID < creds[j].ID })
	return creds, nil
}

func (a *Adapter) AddCredential(ctx context.Context, serviceName, clientID, clientSecret string) (*storage.Credential, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.nextCredID++
	cred := &storage.Credential{
		ID:           a.nextCredID,
		ServiceName:  serviceName,
		ClientID:     clientID,
		ClientSecret: clientSecret,
	}
	a.credentials[cred.ID] = cred

	copied := *cred
	return &copied, nil
}

func (a *Adapter) GetCredential(ctx context.Context, id int64) (*storage.Credential, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	cred, ok := a.credentials[id]
	if !ok {
		return nil, nil
	}
	copied := *cred
	return &copied, nil
}

func (a *Adapter) UpsertToken(ctx context.Context, params storage.UpsertTokenParams) (*storage.Token, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	token, ok := a.tokens[params.CredentialID]
	if !ok {
		a.nextTokenID++
		token = &storage.Token{ID: a.nextTokenID, CredentialID: params.CredentialID}
		a.tokens[params.CredentialID] = token
	}

	token.AccessToken = params.AccessToken
	token.RefreshToken = params.RefreshToken
	token.ExpiresAt = params.ExpiresAt
	token.Scope = copyScope(params.Scope)

	return copyToken(token), nil
}

func (a *Adapter) GetTokenByCredentialID(ctx context.Context, credentialID int64) (*storage.Token, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	token, ok := a.tokens[credentialID]
	if !ok {
		return nil, nil
	}
	return copyToken(token), nil
}

// TokenCount returns the number of stored token rows.
func (a *Adapter) TokenCount() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.tokens)
}

func (a *Adapter) Health(ctx context.Context) error {
	return nil
}

func (a *Adapter) Close() error {
	return nil
}

func copyToken(t *storage.Token) *storage.Token {
	copied := *t
	copied.Scope = copyScope(t.Scope)
	return &copied
}

func copyScope(scope *string) *string {
	if scope == nil {
		return nil
	}
	s := *scope
	return &s
}

type Factory struct{}

func (f *Factory) Create(config storage.StorageConfig) (storage.Storage, error) {
	return NewAdapter(), nil
}

func (f *Factory) GetType() string {
	return "memory"
}

func init() {
	storage.Register("memory", &Factory{})
}
