package testutil

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"credential-manager/internal/storage"
)

// RunStorageSuite exercises the behaviour every storage adapter must share.
// newStorage must return an empty store; it is called once per subtest.
func RunStorageSuite(t *testing.T, newStorage func(t *testing.T) storage.Storage) {
	t.Helper()
	ctx := context.Background()

	t.Run("credentials are listed in insertion order", func(t *testing.T) {
		store := newStorage(t)

		creds, err := store.ListCredentials(ctx)
		require.NoError(t, err)
		assert.Empty(t, creds)

		first, err := store.AddCredential(ctx, "youtube", "client-1", "secret-1")
		require.NoError(t, err)
		second, err := store.AddCredential(ctx, "twitch", "client-2", "secret-2")
		require.NoError(t, err)
		assert.NotEqual(t, first.ID, second.ID)

		creds, err = store.ListCredentials(ctx)
		require.NoError(t, err)
		require.Len(t, creds, 2)
		assert.Equal(t, "youtube", creds[0].ServiceName)
		assert.Equal(t, "client-1", creds[0].ClientID)
		assert.Equal(t, "secret-1", creds[0].ClientSecret)
		assert.Equal(t, "twitch", creds[1].ServiceName)
	})

	t.Run("missing credential is nil without error", func(t *testing.T) {
		store := newStorage(t)

		cred, err := store.GetCredential(ctx, 4242)
		require.NoError(t, err)
		assert.Nil(t, cred)
	})

	t.Run("credential round trip", func(t *testing.T) {
		store := newStorage(t)

		added, err := store.AddCredential(ctx, "youtube", "client", "secret")
		require.NoError(t, err)

		got, err := store.GetCredential(ctx, added.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, *added, *got)
	})

	t.Run("missing token is nil without error", func(t *testing.T) {
		store := newStorage(t)

		token, err := store.GetTokenByCredentialID(ctx, 1)
		require.NoError(t, err)
		assert.Nil(t, token)
	})

	t.Run("second upsert overwrites the same row", func(t *testing.T) {
		store := newStorage(t)
		cred, err := store.AddCredential(ctx, "youtube", "client", "secret")
		require.NoError(t, err)

		scope := "youtube.readonly"
		first, err := store.UpsertToken(ctx, storage.UpsertTokenParams{
			CredentialID: cred.ID,
			AccessToken:  "A1",
			RefreshToken: "R1",
			ExpiresAt:    "2030-01-01 00:00:00",
			Scope:        &scope,
		})
		require.NoError(t, err)
		assert.Equal(t, cred.ID, first.CredentialID)
		require.NotNil(t, first.Scope)
		assert.Equal(t, scope, *first.Scope)

		second, err := store.UpsertToken(ctx, storage.UpsertTokenParams{
			CredentialID: cred.ID,
			AccessToken:  "A2",
			RefreshToken: "R1",
			ExpiresAt:    "2030-01-01 01:00:00",
		})
		require.NoError(t, err)
		assert.Equal(t, first.ID, second.ID)

		got, err := store.GetTokenByCredentialID(ctx, cred.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, first.ID, got.ID)
		assert.Equal(t, "A2", got.AccessToken)
		assert.Equal(t, "R1", got.RefreshToken)
		assert.Equal(t, "2030-01-01 01:00:00", got.ExpiresAt)
		assert.Nil(t, got.Scope)
	})

	t.Run("tokens are kept per credential", func(t *testing.T) {
		store := newStorage(t)
		a, err := store.AddCredential(ctx, "a", "ca", "sa")
		require.NoError(t, err)
		b, err := store.AddCredential(ctx, "b", "cb", "sb")
		require.NoError(t, err)

		ta, err := store.UpsertToken(ctx, storage.UpsertTokenParams{CredentialID: a.ID, AccessToken: "for-a", ExpiresAt: "2030-01-01 00:00:00"})
		require.NoError(t, err)
		tb, err := store.UpsertToken(ctx, storage.UpsertTokenParams{CredentialID: b.ID, AccessToken: "for-b", ExpiresAt: "2030-01-01 00:00:00"})
		require.NoError(t, err)
		assert.NotEqual(t, ta.ID, tb.ID)

		got, err := store.GetTokenByCredentialID(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, "for-a", got.AccessToken)
		assert.Equal(t, storage.NoRefreshToken, got.RefreshToken)
		assert.False(t, got.HasRefreshToken())
	})

	t.Run("concurrent upserts converge to one row", func(t *testing.T) {
		store := newStorage(t)
		cred, err := store.AddCredential(ctx, "youtube", "client", "secret")
		require.NoError(t, err)

		first, err := store.UpsertToken(ctx, storage.UpsertTokenParams{CredentialID: cred.ID, AccessToken: "seed", ExpiresAt: "2030-01-01 00:00:00"})
		require.NoError(t, err)

		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, err := store.UpsertToken(ctx, storage.UpsertTokenParams{
					CredentialID: cred.ID,
					AccessToken:  fmt.Sprintf("A%d", i),
					RefreshToken: "R",
					ExpiresAt:    "2030-01-01 00:00:00",
				})
				assert.NoError(t, err)
			}(i)
		}
		wg.Wait()

		got, err := store.GetTokenByCredentialID(ctx, cred.ID)
		require.NoError(t, err)
		assert.Equal(t, first.ID, got.ID)
		assert.Regexp(t, `^A\d$`, got.AccessToken)
	})

	t.Run("health", func(t *testing.T) {
		store := newStorage(t)
		assert.NoError(t, store.Health(ctx))
	})
}
