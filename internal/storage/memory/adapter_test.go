package memory_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"credential-manager/internal/storage"
	"credential-manager/internal/storage/memory"
	"credential-manager/internal/testutil"
)

func TestAdapter(t *testing.T) {
	testutil.RunStorageSuite(t, func(t *testing.T) storage.Storage {
		return memory.NewAdapter()
	})
}

func TestAdapter_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := memory.NewAdapter()

	cred, err := store.AddCredential(ctx, "youtube", "client", "secret")
	require.NoError(t, err)
	cred.ClientSecret = "mutated"

	scope := "s"
	token, err := store.UpsertToken(ctx, storage.UpsertTokenParams{CredentialID: cred.ID, AccessToken: "A", Scope: &scope})
	require.NoError(t, err)
	token.AccessToken = "mutated"
	scope = "mutated"

	gotCred, err := store.GetCredential(ctx, cred.ID)
	require.NoError(t, err)
	assert.Equal(t, "secret", gotCred.ClientSecret)

	gotToken, err := store.GetTokenByCredentialID(ctx, cred.ID)
	require.NoError(t, err)
	assert.Equal(t, "A", gotToken.AccessToken)
	assert.Equal(t, "s", *gotToken.Scope)
	assert.Equal(t, 1, store.TokenCount())
}

func TestFactory_Registered(t *testing.T) {
	assert.Contains(t, storage.GetAvailableTypes(), "memory")

	store, err := storage.Create("memory", storage.GenericConfig{"type": "memory"})
	require.NoError(t, err)
	assert.IsType(t, &memory.Adapter{}, store)
}
