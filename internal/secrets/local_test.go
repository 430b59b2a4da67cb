package secrets

import (
	"context"
	"testing"

	"filippo.io/age"
	"github.com/eskildsen/stevedore/internal/constants"
	"github.com/eskildsen/stevedore/internal/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLocalStore(t *testing.T) *LocalStore {
	t.Helper()
	identity, err := age.GenerateX25519Identity()
	require.NoError(t, err)
	t.Setenv(constants.EnvVarAgeIdentity, identity.String())

	database, err := db.New(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	store, err := NewLocalStore(database)
	require.NoError(t, err)
	return store
}

func TestLocalStoreRoundTrip(t *testing.T) {
	store := newLocalStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "APP_KEY", "base64:supersecret"))

	value, err := store.Get(ctx, "APP_KEY")
	require.NoError(t, err)
	assert.Equal(t, "base64:supersecret", value)

	infos, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, "APP_KEY", infos[0].Name)
	assert.Equal(t, "local", infos[0].Provider)

	require.NoError(t, store.Delete(ctx, "APP_KEY"))
	_, err = store.Get(ctx, "APP_KEY")
	assert.ErrorIs(t, err, db.ErrNotFound)
}

func TestLocalStoreValuesAreEncryptedAtRest(t *testing.T) {
	identity, err := age.GenerateX25519Identity()
	require.NoError(t, err)
	t.Setenv(constants.EnvVarAgeIdentity, identity.String())

	database, err := db.New(t.TempDir())
	require.NoError(t, err)
	defer database.Close()

	store, err := NewLocalStore(database)
	require.NoError(t, err)
	require.NoError(t, store.Set(context.Background(), "TOKEN", "plaintext-value"))

	raw, err := database.GetSecret("TOKEN")
	require.NoError(t, err)
	assert.NotContains(t, raw.Value, "plaintext-value")
}

func TestNewLocalStoreWithoutIdentity(t *testing.T) {
	t.Setenv(constants.EnvVarAgeIdentity, "")

	database, err := db.New(t.TempDir())
	require.NoError(t, err)
	defer database.Close()

	_, err = NewLocalStore(database)
	assert.ErrorContains(t, err, constants.EnvVarAgeIdentity)
}
