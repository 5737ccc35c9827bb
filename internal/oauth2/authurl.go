package oauth2

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"credential-manager/internal/common/errors"
	"credential-manager/internal/storage"
)

// stateBytes is the entropy of a CSRF state value.
const stateBytes = 32

// URLGenerator builds consent URLs for stored credentials.
type URLGenerator struct {
	credentials storage.CredentialStore
	provider    *Provider
}

func NewURLGenerator(credentials storage.CredentialStore, provider *Provider) *URLGenerator {
	return &URLGenerator{
		credentials: credentials,
		provider:    provider,
	}
}

// GenerateAuthURL returns the consent URL for the credential together with the
// state value the callback must echo. Nothing is persisted.
func (g *URLGenerator) GenerateAuthURL(ctx context.Context, credentialID int64) (authURL, expectedState string, err error) {
	cred, err := loadCredential(ctx, g.credentials, credentialID)
	if err != nil {
		return "", "", err
	}

	state, err := NewState()
	if err != nil {
		return "", "", err
	}

	return g.provider.AuthCodeURL(cred, state), state, nil
}

// NewState returns a fresh base64url-encoded random state value.
func NewState() (string, error) {
	b := make([]byte, stateBytes)
	if _, err := rand.Read(b); err != nil {
		return "", errors.InternalError("failed to generate state", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// loadCredential maps an absent credential to a not_found error.
func loadCredential(ctx context.Context, credentials storage.CredentialStore, credentialID int64) (*storage.Credential, error) {
	cred, err := credentials.GetCredential(ctx, credentialID)
	if err != nil {
		return nil, errors.PersistenceError("failed to load credential", err).WithContext("credential_id", credentialID)
	}
	if cred == nil {
		return nil, errors.NotFoundError(fmt.Sprintf("credential %d", credentialID))
	}
	return cred, nil
}
