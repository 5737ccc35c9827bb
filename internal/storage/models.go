// Package storage defines the credential and token persistence contracts and
// the registry through which the sqlite, postgres and memory adapters are
// selected at startup.
package storage

import (
	"fmt"
	"time"
)

// ExpiresAtLayout is the stored representation of Token.ExpiresAt, always UTC.
const ExpiresAtLayout = "2006-01-02 15:04:05"

// FarFutureExpiry is stored when the provider reports no token lifetime.
const FarFutureExpiry = "9999-12-31 23:59:59"

// NoRefreshToken is stored when the provider issued no refresh token. A token
// holding it can never be refreshed.
const NoRefreshToken = ""

type Credential struct {
	ID           int64  `json:"id"`
	ServiceName  string `json:"service_name"`
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret,omitempty"`
}

type Token struct {
	ID           int64  `json:"id"`
	CredentialID int64  `json:"credentials_id"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	// ExpiresAt is an absolute UTC instant formatted as "2006-01-02 15:04:05".
	ExpiresAt string  `json:"expires_at"`
	Scope     *string `json:"scope,omitempty"`
}

// HasRefreshToken reports whether the token can be renewed with a refresh grant.
func (t *Token) HasRefreshToken() bool {
	return t != nil && t.RefreshToken != NoRefreshToken
}

type UpsertTokenParams struct {
	CredentialID int64
	AccessToken  string
	RefreshToken string
	ExpiresAt    string
	Scope        *string
}

// FormatExpiresAt renders t in the stored expiry format.
func FormatExpiresAt(t time.Time) string {
	return t.UTC().Format(ExpiresAtLayout)
}

// ParseExpiresAt parses a stored expiry. RFC 3339 values written by older
// clients are accepted as well.
func ParseExpiresAt(value string) (time.Time, error) {
	if t, err := time.ParseInLocation(ExpiresAtLayout, value, time.UTC); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("unparseable expires_at %q", value)
}
