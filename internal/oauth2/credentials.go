package oauth2

import (
	"context"
	"strings"

	"credential-manager/internal/common/errors"
	"credential-manager/internal/storage"
)

// AddCredentialRequest is the payload for registering a client.
type AddCredentialRequest struct {
	ServiceName  string `json:"service_name"`
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
}

// Validate requires every field to be non-blank.
func (r AddCredentialRequest) Validate() error {
	if strings.TrimSpace(r.ServiceName) == "" {
		return errors.ValidationError("service_name is required")
	}
	if strings.TrimSpace(r.ClientID) == "" {
		return errors.ValidationError("client_id is required")
	}
	if strings.TrimSpace(r.ClientSecret) == "" {
		return errors.ValidationError("client_secret is required")
	}
	return nil
}

// CredentialService is the create/list surface over the credential store.
type CredentialService struct {
	store storage.CredentialStore
}

func NewCredentialService(store storage.CredentialStore) *CredentialService {
	return &CredentialService{store: store}
}

func (s *CredentialService) List(ctx context.Context) ([]*storage.Credential, error) {
	creds, err := s.store.ListCredentials(ctx)
	if err != nil {
		return nil, errors.PersistenceError("failed to list credentials", err)
	}
	return creds, nil
}

func (s *CredentialService) Add(ctx context.Context, req AddCredentialRequest) (*storage.Credential, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	cred, err := s.store.AddCredential(ctx,
		strings.TrimSpace(req.ServiceName),
		strings.TrimSpace(req.ClientID),
		strings.TrimSpace(req.ClientSecret))
	if err != nil {
		return nil, errors.PersistenceError("failed to add credential", err)
	}
	return cred, nil
}

// Names returns the service name of every stored credential.
func (s *CredentialService) Names(ctx context.Context) ([]string, error) {
	creds, err := s.List(ctx)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(creds))
	for _, cred := range creds {
		names = append(names, cred.ServiceName)
	}
	return names, nil
}
