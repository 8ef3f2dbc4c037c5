package backfill_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wyat/capital/internal/backfill"
	"github.com/wyat/capital/internal/infra/memory"
	"github.com/wyat/capital/internal/ledger"
	"github.com/wyat/capital/internal/money"
)

func fiatLeg(acct string, dir ledger.Direction, amount string, c money.Currency) ledger.Leg {
	return ledger.Leg{AccountID: acct, Direction: dir, Amount: ledger.Fiat{Money: money.MustParse(amount, c)}}
}

func hkdSpend(id, amount string) *ledger.Transaction {
	pnl := fiatLeg(ledger.PnLAccountID, ledger.Debit, amount, money.HKD)
	pnl.CategoryID = "env_dining"
	return &ledger.Transaction{
		ID:     id,
		TS:     time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		Source: "za_bank_csv",
		TxType: ledger.TxSpending,
		Legs:   []ledger.Leg{fiatLeg("za.main", ledger.Credit, amount, money.HKD), pnl},
	}
}

func TestPatchDenomination(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	require.NoError(t, store.InsertTransaction(ctx, hkdSpend("t1", "78.00")))

	peg := decimal.RequireFromString("0.1282051282")
	opts := backfill.PatchOptions{Source: "za_bank_csv", Rate: peg, AddFXOnCustody: true}

	s, err := backfill.PatchDenomination(ctx, store, opts)
	require.NoError(t, err)
	assert.Equal(t, backfill.Summary{Scanned: 1, Updated: 1}, s)

	tx, err := store.GetTransaction(ctx, "t1")
	require.NoError(t, err)

	custody, pnl := tx.Legs[0], tx.Legs[1]
	m, _ := pnl.FiatMoney()
	assert.True(t, m.Equal(money.MustParse("10.00", money.USD)), "pnl = %s", m)
	assert.Contains(t, pnl.Notes, "patched_hkd_to_usd@0.1282051282")

	cm, _ := custody.FiatMoney()
	assert.True(t, cm.Equal(money.MustParse("78.00", money.HKD)))
	require.NotNil(t, custody.FX)
	assert.Equal(t, money.USD, custody.FX.To)
	assert.True(t, custody.FX.Rate.Equal(peg))

	assert.NoError(t, tx.Validate())

	again, err := backfill.PatchDenomination(ctx, store, opts)
	require.NoError(t, err)
	assert.Equal(t, 0, again.Updated)
	assert.Equal(t, 0, again.Scanned)
}

func TestPatchDenomination_DryRunAndFilter(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	require.NoError(t, store.InsertTransaction(ctx, hkdSpend("t1", "15.60")))
	other := hkdSpend("t2", "20")
	other.Source = "chase_csv"
	require.NoError(t, store.InsertTransaction(ctx, other))

	s, err := backfill.PatchDenomination(ctx, store, backfill.PatchOptions{Source: "za_bank_csv", AddFXOnCustody: true, DryRun: true})
	require.NoError(t, err)
	assert.Equal(t, 1, s.Scanned)
	assert.Equal(t, 1, s.Updated)

	tx, err := store.GetTransaction(ctx, "t1")
	require.NoError(t, err)
	m, _ := tx.Legs[1].FiatMoney()
	assert.Equal(t, money.HKD, m.Currency)
}

func TestPatchDenomination_SkipsUnbalancedRewrite(t *testing.T) {
	tests := []struct {
		name   string
		dryRun bool
	}{
		{name: "write", dryRun: false},
		{name: "dry run", dryRun: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			store := memory.NewStore()
			require.NoError(t, store.InsertTransaction(ctx, hkdSpend("t1", "78.00")))

			s, err := backfill.PatchDenomination(ctx, store, backfill.PatchOptions{
				Source: "za_bank_csv",
				Rate:   decimal.RequireFromString("0.1282051282"),
				DryRun: tt.dryRun,
			})
			require.NoError(t, err)
			assert.Equal(t, backfill.Summary{Scanned: 1, Errors: 1}, s)

			tx, err := store.GetTransaction(ctx, "t1")
			require.NoError(t, err)
			m, _ := tx.Legs[1].FiatMoney()
			assert.Equal(t, money.HKD, m.Currency)
			assert.NotContains(t, tx.Legs[1].Notes, backfill.PatchNotePrefix)
			assert.NoError(t, tx.Validate())
		})
	}
}

func TestClassifyTypes(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()

	fee := hkdSpend("fee", "10")
	fee.TxType = ""
	wrong := hkdSpend("wrong", "100")
	wrong.TxType = ledger.TxIncome
	right := hkdSpend("right", "100")
	for _, tx := range []*ledger.Transaction{fee, wrong, right} {
		require.NoError(t, store.InsertTransaction(ctx, tx))
	}

	dry, err := backfill.ClassifyTypes(ctx, store, backfill.ClassifyOptions{DryRun: true})
	require.NoError(t, err)
	assert.Equal(t, backfill.Summary{Scanned: 3, Updated: 2, Unchanged: 1}, dry)

	s, err := backfill.ClassifyTypes(ctx, store, backfill.ClassifyOptions{})
	require.NoError(t, err)
	assert.Equal(t, backfill.Summary{Scanned: 3, Updated: 2, Unchanged: 1}, s)

	got, err := store.GetTransaction(ctx, "fee")
	require.NoError(t, err)
	assert.Equal(t, ledger.TxFeeOnly, got.TxType)

	got, err = store.GetTransaction(ctx, "wrong")
	require.NoError(t, err)
	assert.Equal(t, ledger.TxSpending, got.TxType)

	s, err = backfill.ClassifyTypes(ctx, store, backfill.ClassifyOptions{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, backfill.Summary{Scanned: 2, Unchanged: 2}, s)
}

func TestCleanupCategoryOnCustody(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()

	legacy := hkdSpend("legacy", "50")
	legacy.Legs[0].CategoryID = "env_dining"
	legacy.Legs[1].CategoryID = ""
	require.NoError(t, store.InsertTransaction(ctx, legacy))
	require.NoError(t, store.InsertTransaction(ctx, hkdSpend("good", "50")))

	s, err := backfill.CleanupCategoryOnCustody(ctx, store, backfill.CleanupOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, s.Scanned)
	_, err = store.GetTransaction(ctx, "legacy")
	require.NoError(t, err)

	s, err = backfill.CleanupCategoryOnCustody(ctx, store, backfill.CleanupOptions{Apply: true})
	require.NoError(t, err)
	assert.Equal(t, 1, s.Updated)

	_, err = store.GetTransaction(ctx, "legacy")
	assert.ErrorIs(t, err, ledger.ErrNotFound)
	_, err = store.GetTransaction(ctx, "good")
	assert.NoError(t, err)
}
