package oauth2

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"time"

	goauth2 "golang.org/x/oauth2"

	"credential-manager/internal/circuitbreaker"
	"credential-manager/internal/common/errors"
	"credential-manager/internal/common/logging"
	"credential-manager/internal/storage"
)

// ProviderConfig describes the single authorization-code provider the
// manager talks to. Client id and secret come from the stored credential.
type ProviderConfig struct {
	AuthURL     string
	TokenURL    string
	Scopes      []string
	RedirectURL string
}

// Validate checks that the endpoints and redirect URL are set.
func (c ProviderConfig) Validate() error {
	if c.AuthURL == "" {
		return errors.ConfigError("provider auth URL is required")
	}
	if c.TokenURL == "" {
		return errors.ConfigError("provider token URL is required")
	}
	if c.RedirectURL == "" {
		return errors.ConfigError("redirect URL is required")
	}
	return nil
}

// ProviderToken is the provider's answer to a code exchange or refresh grant.
type ProviderToken struct {
	AccessToken  string
	RefreshToken string
	// ExpiresIn is the reported lifetime. Zero means the provider sent none.
	ExpiresIn time.Duration
	Scope     *string
}

// Provider performs the round trips against the provider's endpoints. Every
// token request runs inside the circuit breaker.
type Provider struct {
	config     ProviderConfig
	httpClient *http.Client
	breaker    *circuitbreaker.GoBreakerAdapter
	logger     logging.Logger
}

func NewProvider(config ProviderConfig, httpClient *http.Client, breaker *circuitbreaker.GoBreakerAdapter, logger logging.Logger) *Provider {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if breaker == nil {
		breaker = circuitbreaker.NewGoBreaker("oauth2-provider", circuitbreaker.ProviderConfig, logger)
	}
	return &Provider{
		config:     config,
		httpClient: httpClient,
		breaker:    breaker,
		logger:     logger,
	}
}

// RedirectURL returns the loopback redirect URL sent with every request.
func (p *Provider) RedirectURL() string {
	return p.config.RedirectURL
}

func (p *Provider) oauthConfig(cred *storage.Credential) *goauth2.Config {
	return &goauth2.Config{
		ClientID:     cred.ClientID,
		ClientSecret: cred.ClientSecret,
		Endpoint: goauth2.Endpoint{
			AuthURL:   p.config.AuthURL,
			TokenURL:  p.config.TokenURL,
			AuthStyle: goauth2.AuthStyleInParams,
		},
		RedirectURL: p.config.RedirectURL,
		Scopes:      p.config.Scopes,
	}
}

// AuthCodeURL builds the consent URL. Offline access is requested so the
// provider issues a refresh token.
func (p *Provider) AuthCodeURL(cred *storage.Credential, state string) string {
	return p.oauthConfig(cred).AuthCodeURL(state, goauth2.AccessTypeOffline)
}

// Exchange trades an authorization code for tokens.
func (p *Provider) Exchange(ctx context.Context, cred *storage.Credential, code string) (*ProviderToken, error) {
	var tok *goauth2.Token
	err := p.breaker.Execute(ctx, func() error {
		var err error
		tok, err = p.oauthConfig(cred).Exchange(p.clientContext(ctx), code)
		return mapProviderError("authorization code exchange failed", err)
	})
	if err != nil {
		return nil, err
	}
	return toProviderToken(tok), nil
}

// Refresh runs the refresh-token grant.
func (p *Provider) Refresh(ctx context.Context, cred *storage.Credential, refreshToken string) (*ProviderToken, error) {
	var tok *goauth2.Token
	err := p.breaker.Execute(ctx, func() error {
		var err error
		source := p.oauthConfig(cred).TokenSource(p.clientContext(ctx), &goauth2.Token{RefreshToken: refreshToken})
		tok, err = source.Token()
		return mapProviderError("refresh token grant failed", err)
	})
	if err != nil {
		return nil, err
	}
	return toProviderToken(tok), nil
}

func (p *Provider) clientContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, goauth2.HTTPClient, p.httpClient)
}

// mapProviderError turns x/oauth2 failures into provider errors. Answers that
// carry an OAuth error code or a 4xx status keep it as the error code.
func mapProviderError(message string, err error) error {
	if err == nil {
		return nil
	}

	var retrieveErr *goauth2.RetrieveError
	if stderrors.As(err, &retrieveErr) {
		appErr := errors.ProviderError(message, err)
		switch {
		case retrieveErr.ErrorCode != "":
			appErr.WithCode(retrieveErr.ErrorCode)
		case retrieveErr.Response != nil && retrieveErr.Response.StatusCode < http.StatusInternalServerError:
			appErr.WithCode(fmt.Sprintf("http_%d", retrieveErr.Response.StatusCode))
		}
		if retrieveErr.Response != nil {
			appErr.WithContext("status", retrieveErr.Response.StatusCode)
		}
		return appErr
	}

	if stderrors.Is(err, context.DeadlineExceeded) || stderrors.Is(err, context.Canceled) {
		return errors.ProviderError(message, err).WithContext("reason", "timeout")
	}

	return errors.ProviderError(message, err)
}

func toProviderToken(tok *goauth2.Token) *ProviderToken {
	pt := &ProviderToken{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
	}

	switch {
	case tok.ExpiresIn > 0:
		pt.ExpiresIn = time.Duration(tok.ExpiresIn) * time.Second
	case !tok.Expiry.IsZero():
		pt.ExpiresIn = time.Until(tok.Expiry).Round(time.Second)
	}

	if scope, ok := tok.Extra("scope").(string); ok && scope != "" {
		pt.Scope = &scope
	}
	return pt
}
