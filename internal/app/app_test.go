package app

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wyat/capital/internal/config"
	"github.com/wyat/capital/internal/importer"
	"github.com/wyat/capital/internal/seed"
)

func TestOpen_Memory(t *testing.T) {
	a, ctx, err := Open(context.Background(), Options{Memory: true})
	require.NoError(t, err)
	defer a.Close(ctx)

	assert.Nil(t, a.Mongo)
	accounts, err := a.Registry.List(ctx)
	require.NoError(t, err)
	assert.Len(t, accounts, len(seed.Accounts()))

	envs, err := a.Envelopes.List(ctx)
	require.NoError(t, err)
	assert.Len(t, envs, len(seed.FamilyBucket()))

	rows := []importer.FlatRow{{
		TxID: "t1", Date: "2024-06-03", AccountID: "za.main", Direction: "Credit",
		Kind: "Fiat", CcyOrAsset: "HKD", AmountOrQty: "78", CategoryID: "env_groceries",
	}}
	s, err := a.Importer().Import(ctx, rows, importer.Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, s.Inserted)

	rows[0].AccountID = "nowhere"
	rows[0].TxID = "t2"
	s, err = a.Importer().Import(ctx, rows, importer.Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, s.Failed)
}

func TestOpen_RequiresMongoURI(t *testing.T) {
	t.Setenv(config.EnvMongoURI, "")
	require.NoError(t, os.Unsetenv(config.EnvMongoURI))

	_, _, err := Open(context.Background(), Options{})
	var missing *config.MissingConfigError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, config.EnvMongoURI, missing.Name)
}
