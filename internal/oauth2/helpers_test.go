package oauth2

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"credential-manager/internal/storage"
	"credential-manager/internal/testutil"
)

const testRedirectURL = "http://localhost:1421/oauth/callback"

// fakeProvider is a token endpoint that records every grant it receives.
type fakeProvider struct {
	server *httptest.Server

	mu       sync.Mutex
	requests []url.Values
	status   int
	body     map[string]any
}

func newFakeProvider(t *testing.T) *fakeProvider {
	t.Helper()

	f := &fakeProvider{
		status: http.StatusOK,
		body: map[string]any{
			"access_token":  "new-access",
			"refresh_token": "new-refresh",
			"token_type":    "Bearer",
			"expires_in":    3600,
			"scope":         "scope.a",
		},
	}

	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/token" {
			http.NotFound(w, r)
			return
		}
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		f.mu.Lock()
		f.requests = append(f.requests, r.PostForm)
		status, body := f.status, f.body
		f.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeProvider) respond(status int, body map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status = status
	f.body = body
}

func (f *fakeProvider) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func (f *fakeProvider) lastRequest() url.Values {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.requests) == 0 {
		return nil
	}
	return f.requests[len(f.requests)-1]
}

func (f *fakeProvider) provider() *Provider {
	return NewProvider(ProviderConfig{
		AuthURL:     f.server.URL + "/auth",
		TokenURL:    f.server.URL + "/token",
		Scopes:      []string{"scope.a", "scope.b"},
		RedirectURL: testRedirectURL,
	}, f.server.Client(), nil, nil)
}

func seedCredential(t *testing.T, store storage.Storage) *storage.Credential {
	t.Helper()

	cred, err := store.AddCredential(context.Background(), "youtube", "client-id", "client-secret")
	require.NoError(t, err)
	return cred
}

func seedToken(t *testing.T, store storage.Storage, credentialID int64, refreshToken, expiresAt string) *storage.Token {
	t.Helper()

	token, err := store.UpsertToken(context.Background(), storage.UpsertTokenParams{
		CredentialID: credentialID,
		AccessToken:  "old-access",
		RefreshToken: refreshToken,
		ExpiresAt:    expiresAt,
	})
	require.NoError(t, err)
	return token
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func newStore() *testutil.MockStorage {
	return testutil.NewMockStorage()
}
