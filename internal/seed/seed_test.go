package seed_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wyat/capital/internal/envelope"
	"github.com/wyat/capital/internal/infra/memory"
	"github.com/wyat/capital/internal/ledger"
	"github.com/wyat/capital/internal/seed"
)

func TestSeedAccounts_Idempotent(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	reg := ledger.NewRegistry(store)

	first, err := seed.SeedAccounts(ctx, reg, seed.Accounts())
	require.NoError(t, err)
	assert.Equal(t, len(seed.Accounts()), first.Inserted)

	second, err := seed.SeedAccounts(ctx, reg, seed.Accounts())
	require.NoError(t, err)
	assert.Equal(t, seed.Result{Existing: len(seed.Accounts())}, second)

	a, err := reg.Lookup(ctx, seed.ZABankAccountID)
	require.NoError(t, err)
	assert.Equal(t, "checking", a.Metadata.Kind())
}

func TestFamilyBucket(t *testing.T) {
	ids := make(map[string]bool)
	for _, e := range seed.FamilyBucket() {
		t.Run(e.ID, func(t *testing.T) {
			assert.NoError(t, e.Validate())
			assert.True(t, e.Balance.IsZero())
			assert.Equal(t, envelope.Active, e.Status)
		})
		assert.False(t, ids[e.ID], "duplicate envelope id %s", e.ID)
		ids[e.ID] = true
	}
	for _, env := range seed.ChaseCategories {
		assert.True(t, ids[env], "category target %s is not seeded", env)
	}
	assert.True(t, ids[seed.UncategorizedEnvelopeID])
}

func TestSeedEnvelopes_Idempotent(t *testing.T) {
	ctx := context.Background()
	svc := envelope.NewService(memory.NewStore())

	first, err := seed.SeedEnvelopes(ctx, svc, seed.FamilyBucket())
	require.NoError(t, err)
	assert.Zero(t, first.Existing)

	second, err := seed.SeedEnvelopes(ctx, svc, seed.FamilyBucket())
	require.NoError(t, err)
	assert.Equal(t, first.Inserted, second.Existing)

	envs, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, envs, first.Inserted)
}
