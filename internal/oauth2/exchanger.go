package oauth2

import (
	"context"
	"time"

	"credential-manager/internal/common/errors"
	"credential-manager/internal/common/logging"
	"credential-manager/internal/storage"
)

// Exchanger trades authorization codes for tokens and persists them.
type Exchanger struct {
	store    storage.Storage
	provider *Provider
	logger   logging.Logger
	now      func() time.Time
}

func NewExchanger(store storage.Storage, provider *Provider, logger logging.Logger) *Exchanger {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &Exchanger{
		store:    store,
		provider: provider,
		logger:   logger.WithFields(logging.String("component", "token_exchanger")),
		now:      time.Now,
	}
}

// ExchangeCodeAndSaveToken exchanges code for the credential's tokens and
// upserts them. When the provider sends no refresh token the stored one is
// kept; with nothing stored the NoRefreshToken sentinel is written.
func (e *Exchanger) ExchangeCodeAndSaveToken(ctx context.Context, code string, credentialID int64) (*storage.Token, error) {
	if code == "" {
		return nil, errors.ValidationError("authorization code is required")
	}

	cred, err := loadCredential(ctx, e.store, credentialID)
	if err != nil {
		return nil, err
	}

	issued, err := e.provider.Exchange(ctx, cred, code)
	if err != nil {
		return nil, err
	}

	refreshToken := issued.RefreshToken
	scope := issued.Scope
	if refreshToken == "" || scope == nil {
		existing, err := e.store.GetTokenByCredentialID(ctx, credentialID)
		if err != nil {
			return nil, errors.PersistenceError("failed to load existing token", err).WithContext("credential_id", credentialID)
		}
		if refreshToken == "" {
			if existing.HasRefreshToken() {
				refreshToken = existing.RefreshToken
				e.logger.Debug("Provider sent no refresh token, keeping the stored one", logging.Int64("credential_id", credentialID))
			} else {
				refreshToken = storage.NoRefreshToken
				e.logger.Warn("Provider sent no refresh token, token cannot be refreshed", logging.Int64("credential_id", credentialID))
			}
		}
		if scope == nil && existing != nil {
			scope = existing.Scope
		}
	}

	token, err := e.store.UpsertToken(ctx, storage.UpsertTokenParams{
		CredentialID: credentialID,
		AccessToken:  issued.AccessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    expiresAt(e.now(), issued.ExpiresIn),
		Scope:        scope,
	})
	if err != nil {
		return nil, errors.PersistenceError("failed to save token", err).WithContext("credential_id", credentialID)
	}

	e.logger.Info("Token saved",
		logging.Int64("credential_id", credentialID),
		logging.String("expires_at", token.ExpiresAt),
		logging.Bool("has_refresh_token", token.HasRefreshToken()))
	return token, nil
}

// expiresAt adds lifetime to now. A zero lifetime yields the far-future sentinel.
func expiresAt(now time.Time, lifetime time.Duration) string {
	if lifetime <= 0 {
		return storage.FarFutureExpiry
	}
	return storage.FormatExpiresAt(now.Add(lifetime))
}
