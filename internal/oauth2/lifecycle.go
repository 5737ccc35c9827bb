package oauth2

import (
	"context"
	"fmt"
	"math"
	"time"

	"credential-manager/internal/common/errors"
	"credential-manager/internal/common/logging"
	"credential-manager/internal/storage"
)

// maxSkewSeconds is the largest skew representable as a time.Duration.
const maxSkewSeconds = math.MaxInt64 / int64(time.Second)

// AccessToken is the pair handed to callers of the lifecycle manager.
type AccessToken struct {
	AccessToken string `json:"access_token"`
	ExpiresAt   string `json:"expires_at"`
}

// LifecycleManager hands out non-expired access tokens, refreshing them with
// the stored refresh token only when needed.
type LifecycleManager struct {
	store    storage.Storage
	provider *Provider
	logger   logging.Logger
	now      func() time.Time
}

func NewLifecycleManager(store storage.Storage, provider *Provider, logger logging.Logger) *LifecycleManager {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &LifecycleManager{
		store:    store,
		provider: provider,
		logger:   logger.WithFields(logging.String("component", "token_lifecycle")),
		now:      time.Now,
	}
}

// EnsureValidAccessToken returns the stored access token when it stays valid
// for more than skewSeconds, without touching the network or the store.
// Otherwise the token is refreshed. Negative skews count as zero.
func (m *LifecycleManager) EnsureValidAccessToken(ctx context.Context, credentialID int64, skewSeconds int64) (*AccessToken, error) {
	token, err := m.loadToken(ctx, credentialID)
	if err != nil {
		return nil, err
	}

	if !m.needsRefresh(token, skewSeconds) {
		return &AccessToken{AccessToken: token.AccessToken, ExpiresAt: token.ExpiresAt}, nil
	}

	if !token.HasRefreshToken() {
		return nil, errors.MissingRefreshTokenError(credentialID)
	}

	cred, err := loadCredential(ctx, m.store, credentialID)
	if err != nil {
		return nil, err
	}
	return m.refresh(ctx, cred, token)
}

// RefreshAccessToken renews the token unconditionally.
func (m *LifecycleManager) RefreshAccessToken(ctx context.Context, credentialID int64) (*AccessToken, error) {
	cred, err := loadCredential(ctx, m.store, credentialID)
	if err != nil {
		return nil, err
	}

	token, err := m.loadToken(ctx, credentialID)
	if err != nil {
		return nil, err
	}

	if !token.HasRefreshToken() {
		return nil, errors.MissingRefreshTokenError(credentialID)
	}
	return m.refresh(ctx, cred, token)
}

// NeedsRefresh reports whether the token expires within lookahead.
func (m *LifecycleManager) NeedsRefresh(token *storage.Token, lookahead time.Duration) bool {
	return m.needsRefresh(token, int64(lookahead/time.Second))
}

func (m *LifecycleManager) needsRefresh(token *storage.Token, skewSeconds int64) bool {
	if skewSeconds < 0 {
		skewSeconds = 0
	}

	expiry, err := storage.ParseExpiresAt(token.ExpiresAt)
	if err != nil {
		m.logger.Warn("Stored expiry is unparseable, treating token as expired",
			logging.Int64("credential_id", token.CredentialID),
			logging.String("expires_at", token.ExpiresAt))
		return true
	}

	now := m.now().UTC()
	if skewSeconds > maxSkewSeconds {
		// time.Duration cannot hold the skew; compare whole seconds instead.
		return expiry.Unix()-now.Unix() <= skewSeconds
	}
	deadline := now.Add(time.Duration(skewSeconds) * time.Second)
	return !expiry.After(deadline)
}

func (m *LifecycleManager) refresh(ctx context.Context, cred *storage.Credential, current *storage.Token) (*AccessToken, error) {
	issued, err := m.provider.Refresh(ctx, cred, current.RefreshToken)
	if err != nil {
		m.logger.Error("Token refresh failed", err, logging.Int64("credential_id", cred.ID))
		return nil, err
	}

	refreshToken := issued.RefreshToken
	if refreshToken == "" {
		refreshToken = current.RefreshToken
	}
	scope := issued.Scope
	if scope == nil {
		scope = current.Scope
	}

	token, err := m.store.UpsertToken(ctx, storage.UpsertTokenParams{
		CredentialID: cred.ID,
		AccessToken:  issued.AccessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    expiresAt(m.now(), issued.ExpiresIn),
		Scope:        scope,
	})
	if err != nil {
		return nil, errors.PersistenceError("failed to save refreshed token", err).WithContext("credential_id", cred.ID)
	}

	m.logger.Info("Token refreshed",
		logging.Int64("credential_id", cred.ID),
		logging.String("expires_at", token.ExpiresAt),
		logging.Bool("refresh_token_rotated", refreshToken != current.RefreshToken))
	return &AccessToken{AccessToken: token.AccessToken, ExpiresAt: token.ExpiresAt}, nil
}

func (m *LifecycleManager) loadToken(ctx context.Context, credentialID int64) (*storage.Token, error) {
	token, err := m.store.GetTokenByCredentialID(ctx, credentialID)
	if err != nil {
		return nil, errors.PersistenceError("failed to load token", err).WithContext("credential_id", credentialID)
	}
	if token == nil {
		return nil, errors.NotFoundError(fmt.Sprintf("token for credential %d", credentialID))
	}
	return token, nil
}
