package testutil

import (
	"context"
	"sync"

	"credential-manager/internal/storage"
	"credential-manager/internal/storage/memory"
)

// MockStorage implements storage.Storage on top of the memory adapter and
// records how often each method ran.
type MockStorage struct {
	inner *memory.Adapter

	mu    sync.Mutex
	calls map[string]int

	// Control error injection
	ErrorOnMethod map[string]error
}

// NewMockStorage creates a new mock storage instance
func NewMockStorage() *MockStorage {
	return &MockStorage{
		inner:         memory.NewAdapter(),
		calls:         make(map[string]int),
		ErrorOnMethod: make(map[string]error),
	}
}

func (m *MockStorage) record(method string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[method]++
	return m.ErrorOnMethod[method]
}

// SetError makes every later call of method fail with err. A nil err clears it.
func (m *MockStorage) SetError(method string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.ErrorOnMethod, method)
		return
	}
	m.ErrorOnMethod[method] = err
}

// Calls returns how many times method was invoked.
func (m *MockStorage) Calls(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[method]
}

// ResetCalls zeroes every counter.
func (m *MockStorage) ResetCalls() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = make(map[string]int)
}

// TokenCount returns the number of stored token rows.
func (m *MockStorage) TokenCount() int {
	return m.inner.TokenCount()
}

func (m *MockStorage) ListCredentials(ctx context.Context) ([]*storage.Credential, error) {
	if err := m.record("ListCredentials"); err != nil {
		return nil, err
	}
	return m.inner.ListCredentials(ctx)
}

func (m *MockStorage) AddCredential(ctx context.Context, serviceName, clientID, clientSecret string) (*storage.Credential, error) {
	if err := m.record("AddCredential"); err != nil {
		return nil, err
	}
	return m.inner.AddCredential(ctx, serviceName, clientID, clientSecret)
}

func (m *MockStorage) GetCredential(ctx context.Context, id int64) (*storage.Credential, error) {
	if err := m.record("GetCredential"); err != nil {
		return nil, err
	}
	return m.inner.GetCredential(ctx, id)
}

func (m *MockStorage) UpsertToken(ctx context.Context, params storage.UpsertTokenParams) (*storage.Token, error) {
	if err := m.record("UpsertToken"); err != nil {
		return nil, err
	}
	return m.inner.UpsertToken(ctx, params)
}

func (m *MockStorage) GetTokenByCredentialID(ctx context.Context, credentialID int64) (*storage.Token, error) {
	if err := m.record("GetTokenByCredentialID"); err != nil {
		return nil, err
	}
	return m.inner.GetTokenByCredentialID(ctx, credentialID)
}

func (m *MockStorage) Health(ctx context.Context) error {
	return m.record("Health")
}

func (m *MockStorage) Close() error {
	return m.record("Close")
}
