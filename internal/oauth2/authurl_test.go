package oauth2

import (
	"context"
	"encoding/base64"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"credential-manager/internal/common/errors"
	"credential-manager/internal/testutil"
)

func TestGenerateAuthURL(t *testing.T) {
	store := newStore()
	fake := newFakeProvider(t)
	g := NewURLGenerator(store, fake.provider())
	cred := seedCredential(t, store)
	store.ResetCalls()

	authURL, state, err := g.GenerateAuthURL(context.Background(), cred.ID)
	require.NoError(t, err)

	u, err := url.Parse(authURL)
	require.NoError(t, err)
	assert.Equal(t, state, u.Query().Get("state"))
	assert.Equal(t, "client-id", u.Query().Get("client_id"))
	assert.Equal(t, testRedirectURL, u.Query().Get("redirect_uri"))

	assert.Equal(t, 0, fake.count(), "no network call")
	assert.Equal(t, 0, store.Calls("UpsertToken"), "nothing persisted")

	_, second, err := g.GenerateAuthURL(context.Background(), cred.ID)
	require.NoError(t, err)
	assert.NotEqual(t, state, second)
}

func TestGenerateAuthURL_Errors(t *testing.T) {
	store := newStore()
	g := NewURLGenerator(store, newFakeProvider(t).provider())

	_, _, err := g.GenerateAuthURL(context.Background(), 5)
	assert.True(t, errors.IsType(err, errors.ErrTypeNotFound))

	store.SetError("GetCredential", testutil.ErrDatabaseLocked)
	_, _, err = g.GenerateAuthURL(context.Background(), 5)
	assert.True(t, errors.IsType(err, errors.ErrTypePersistence))
}

func TestNewState(t *testing.T) {
	state, err := NewState()
	require.NoError(t, err)

	raw, err := base64.RawURLEncoding.DecodeString(state)
	require.NoError(t, err)
	assert.Len(t, raw, stateBytes)
}
