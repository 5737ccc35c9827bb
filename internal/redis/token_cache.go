package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"credential-manager/internal/common/logging"
	"credential-manager/internal/storage"
)

const (
	tokenKeyPrefix = "oauth2:token:"
	// defaultCacheTTL bounds how long a cached token may outlive its expiry.
	defaultCacheTTL = 30 * 24 * time.Hour
)

// TokenCache is a write-through cache of token rows in front of a
// storage.Storage. The database stays the source of truth: writes go to it
// first and cache failures are logged, never returned.
type TokenCache struct {
	storage.Storage

	client *Client
	logger logging.Logger
	now    func() time.Time
}

func NewTokenCache(inner storage.Storage, client *Client, logger logging.Logger) *TokenCache {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &TokenCache{
		Storage: inner,
		client:  client,
		logger:  logger.WithFields(logging.String("component", "token_cache")),
		now:     time.Now,
	}
}

func (c *TokenCache) UpsertToken(ctx context.Context, params storage.UpsertTokenParams) (*storage.Token, error) {
	token, err := c.Storage.UpsertToken(ctx, params)
	if err != nil {
		return nil, err
	}

	c.put(ctx, token)
	return token, nil
}

func (c *TokenCache) GetTokenByCredentialID(ctx context.Context, credentialID int64) (*storage.Token, error) {
	key := tokenKey(credentialID)

	data, found, err := c.client.Get(ctx, key)
	if err != nil {
		c.logger.Warn("Token cache read failed, falling back to database",
			logging.Int64("credential_id", credentialID),
			logging.Err(err),
		)
	} else if found {
		var token storage.Token
		if err := json.Unmarshal([]byte(data), &token); err == nil {
			return &token, nil
		}
		c.logger.Warn("Discarding undecodable cached token", logging.Int64("credential_id", credentialID))
		_ = c.client.Delete(ctx, key)
	}

	token, err := c.Storage.GetTokenByCredentialID(ctx, credentialID)
	if err != nil || token == nil {
		return token, err
	}

	c.put(ctx, token)
	return token, nil
}

// Health reports the database health first, then Redis.
func (c *TokenCache) Health(ctx context.Context) error {
	if err := c.Storage.Health(ctx); err != nil {
		return err
	}
	if err := c.client.Health(ctx); err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	return nil
}

func (c *TokenCache) put(ctx context.Context, token *storage.Token) {
	data, err := json.Marshal(token)
	if err != nil {
		c.logger.Error("Failed to serialize token for cache", err, logging.Int64("credential_id", token.CredentialID))
		return
	}

	if err := c.client.Set(ctx, tokenKey(token.CredentialID), data, c.ttlFor(token)); err != nil {
		c.logger.Warn("Token cache write failed",
			logging.Int64("credential_id", token.CredentialID),
			logging.Err(err),
		)
	}
}

// ttlFor keeps a token one day past its expiry, capped at defaultCacheTTL.
func (c *TokenCache) ttlFor(token *storage.Token) time.Duration {
	expiresAt, err := storage.ParseExpiresAt(token.ExpiresAt)
	if err != nil {
		return defaultCacheTTL
	}

	remaining := expiresAt.Sub(c.now())
	if remaining <= -24*time.Hour || remaining >= defaultCacheTTL-24*time.Hour {
		return defaultCacheTTL
	}
	return remaining + 24*time.Hour
}

func tokenKey(credentialID int64) string {
	return tokenKeyPrefix + strconv.FormatInt(credentialID, 10)
}
