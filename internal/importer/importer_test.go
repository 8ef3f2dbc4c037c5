package importer_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wyat/capital/internal/envelope"
	"github.com/wyat/capital/internal/importer"
	"github.com/wyat/capital/internal/infra/memory"
	"github.com/wyat/capital/internal/ledger"
	"github.com/wyat/capital/internal/money"
)

func row(txid, acct, dir, ccy, amount, category string) importer.FlatRow {
	return importer.FlatRow{
		TxID:        importer.Field(txid),
		Date:        "2024-05-03",
		AccountID:   importer.Field(acct),
		Direction:   importer.Field(dir),
		Kind:        "fiat",
		CcyOrAsset:  importer.Field(ccy),
		AmountOrQty: importer.Field(amount),
		CategoryID:  importer.Field(category),
	}
}

func TestImport_BackfillsPnL(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	im := importer.New(store)

	rows := []importer.FlatRow{row("t1", "acct.chase", "Credit", "USD", "1,234.50", "env_groceries")}
	rows[0].Payee = "Whole Foods"

	s, err := im.Import(ctx, rows, importer.Options{Reclassify: true})
	require.NoError(t, err)
	assert.Equal(t, 1, s.Inserted)
	assert.Empty(t, s.Errors)

	tx, err := store.GetTransaction(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, tx.Legs, 2)

	custody, pnl := tx.Legs[0], tx.Legs[1]
	assert.Equal(t, "acct.chase", custody.AccountID)
	assert.Empty(t, custody.CategoryID)
	assert.True(t, pnl.IsPnL())
	assert.Equal(t, ledger.Debit, pnl.Direction)
	assert.Equal(t, "env_groceries", pnl.CategoryID)
	assert.Equal(t, "1234.5", pnl.Amount.Magnitude().String())

	assert.Equal(t, ledger.TxSpending, tx.TxType)
	assert.Equal(t, importer.DefaultSource, tx.Source)
	assert.Equal(t, importer.DefaultStatus, tx.Status)
	assert.Equal(t, "Whole Foods", tx.Payee)
	assert.Equal(t, "2024-05-03T00:00:00Z", tx.TS.Format("2006-01-02T15:04:05Z07:00"))
}

func TestImport_Idempotent(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	im := importer.New(store)
	rows := []importer.FlatRow{
		row("t1", "acct.a", "Credit", "USD", "10", "env_a"),
		row("t2", "acct.a", "Debit", "USD", "20", "env_b"),
	}

	first, err := im.Import(ctx, rows, importer.Options{})
	require.NoError(t, err)
	assert.Equal(t, 2, first.Inserted)

	second, err := im.Import(ctx, rows, importer.Options{})
	require.NoError(t, err)
	assert.Equal(t, 0, second.Inserted)
	assert.Equal(t, 2, second.Duplicates)
}

func TestImport_RowErrorsDoNotStopBatch(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	im := importer.New(store)

	bad := row("t2", "acct.a", "Sideways", "USD", "5", "env")
	badDate := row("t3", "acct.a", "Credit", "USD", "5", "env")
	badDate.Date = "2024-13-40"
	noCategory := row("t4", "acct.a", "Credit", "USD", "5", "")

	rows := []importer.FlatRow{row("t1", "acct.a", "Credit", "USD", "5", "env"), bad, badDate, noCategory}
	s, err := im.Import(ctx, rows, importer.Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, s.Inserted)
	require.Len(t, s.Errors, 3)

	var enumErr *ledger.InvalidEnumError
	assert.ErrorAs(t, &s.Errors[0], &enumErr)
	assert.Equal(t, 1, s.Errors[0].Row)

	var dtErr *ledger.InvalidDateTimeError
	assert.ErrorAs(t, &s.Errors[1], &dtErr)

	assert.True(t, errors.Is(&s.Errors[2], ledger.ErrUnbalancedTransaction))
	assert.Equal(t, "t4", s.Errors[2].TxID)
}

func TestBuild_MultiLegTransfer(t *testing.T) {
	rows := []importer.FlatRow{
		row("fx1", "acct.hkd", "Credit", "HKD", "7800", ""),
		row("fx1", "acct.usd", "Debit", "USD", "1000", ""),
	}
	rows[1].Price = "0.12820513"
	rows[1].PriceCcy = "USD"

	p := importer.Build(rows, importer.Options{Reclassify: true})
	require.Empty(t, p.Errors)
	require.Len(t, p.Transactions, 1)

	tx := p.Transactions[0]
	require.Len(t, tx.Legs, 2)
	assert.Equal(t, "acct.hkd", tx.Legs[0].AccountID)
	assert.Equal(t, ledger.TxTransferFX, tx.TxType)
	require.NotNil(t, tx.Legs[1].FX)
	assert.Equal(t, money.USD, tx.Legs[1].FX.To)
}

func TestBuild_CryptoTradeBalancesWithPrice(t *testing.T) {
	buy := row("c1", "cex.main", "Debit", "", "0.01", "")
	buy.Kind = "Crypto"
	buy.CcyOrAsset = "btc"
	buy.Price = "100000"
	buy.PriceCcy = "USD"

	rows := []importer.FlatRow{row("c1", "cex.main", "Credit", "USD", "1000", ""), buy}
	p := importer.Build(rows, importer.Options{Reclassify: true})
	require.Empty(t, p.Errors)
	assert.Equal(t, ledger.TxTrade, p.Transactions[0].TxType)
	assert.Len(t, p.Transactions[0].Legs, 2)
}

func TestBuild_TwoGroupsUnbalanced(t *testing.T) {
	rows := []importer.FlatRow{
		row("x", "acct.hkd", "Credit", "HKD", "100", "env"),
		row("x", "acct.usd", "Debit", "USD", "5", "env"),
	}
	p := importer.Build(rows, importer.Options{})
	require.Len(t, p.Errors, 1)
	assert.ErrorIs(t, &p.Errors[0], ledger.ErrUnbalancedTransaction)
}

func TestBuild_Defaults(t *testing.T) {
	rows := []importer.FlatRow{
		row("in", "acct.a", "Debit", "USD", "100", "env_salary"),
		row("out", "acct.a", "Credit", "USD", "100", "env_rent"),
		row("typed", "acct.a", "Credit", "USD", "3", "env_fees"),
	}
	rows[2].TxType = "FEE_ONLY"
	rows[1].Source = "chase_csv"

	p := importer.Build(rows, importer.Options{Source: "manual"})
	require.Empty(t, p.Errors)
	assert.Equal(t, ledger.TxSpending, p.Transactions[0].TxType)
	assert.Equal(t, ledger.TxIncome, p.Transactions[1].TxType)
	assert.Equal(t, ledger.TxFeeOnly, p.Transactions[2].TxType)
	assert.Equal(t, "manual", p.Transactions[0].Source)
	assert.Equal(t, "chase_csv", p.Transactions[1].Source)
}

func TestBuild_MissingTxID(t *testing.T) {
	rows := []importer.FlatRow{row("", "acct.a", "Credit", "USD", "5", "env")}

	p := importer.Build(rows, importer.Options{})
	assert.Len(t, p.Errors, 1)

	p = importer.Build(rows, importer.Options{GenerateIDs: true})
	require.Len(t, p.Transactions, 1)
	assert.Len(t, p.Transactions[0].ID, 36)
}

func TestBuild_BadPostedTSIsDropped(t *testing.T) {
	r := row("t", "acct.a", "Credit", "USD", "5", "env")
	r.PostedTS = "yesterday"
	p := importer.Build([]importer.FlatRow{r}, importer.Options{})
	require.Len(t, p.Transactions, 1)
	assert.Nil(t, p.Transactions[0].PostedTS)
	assert.Len(t, p.Warnings, 1)
}

func TestFlatRowLenientJSON(t *testing.T) {
	raw := `{"txid": 42, "date": "2024-01-02", "account_id": "acct.a", "direction": "credit",
		"kind": "FIAT", "ccy_or_asset": "usd", "amount_or_qty": 12.5, "category_id": null, "tx_type": null}`
	var r importer.FlatRow
	require.NoError(t, json.Unmarshal([]byte(raw), &r))
	assert.Equal(t, "42", r.TxID.String())
	assert.True(t, r.CategoryID.Empty())

	d, err := r.AmountOrQty.Decimal()
	require.NoError(t, err)
	assert.True(t, d.Equal(decimal.RequireFromString("12.5")))
}

func TestFlatRow_RoundTrip(t *testing.T) {
	in := importer.FlatRow{
		TxID:        "t1",
		Date:        "2024-05-03",
		PostedTS:    "2024-05-04T09:30:00Z",
		Source:      "za_bank_csv",
		Payee:       "Maxim's \"Palace\"",
		Memo:        "dim sum, table 4",
		AccountID:   "za.main",
		Direction:   "Credit",
		Kind:        "Fiat",
		CcyOrAsset:  "HKD",
		AmountOrQty: "1,234.50",
		Price:       "0.1282",
		PriceCcy:    "USD",
		CategoryID:  "env_dining",
		Status:      "posted",
		TxType:      "spending",
		Ext1Kind:    "statement_ref",
		Ext1Val:     "ZA-2024-05",
	}

	data, err := json.Marshal(in)
	require.NoError(t, err)

	var out importer.FlatRow
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, in, out)

	var sparse importer.FlatRow
	data, err = json.Marshal(importer.FlatRow{TxID: "t2", Date: "2024-05-03", AccountID: "za.main", Direction: "Debit", Kind: "Fiat", CcyOrAsset: "HKD", AmountOrQty: "5"})
	require.NoError(t, err)
	assert.NotContains(t, string(data), "posted_ts")
	require.NoError(t, json.Unmarshal(data, &sparse))
	assert.Equal(t, importer.Field("5"), sparse.AmountOrQty)
}

func TestImport_UnknownAccountRejected(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	reg := ledger.NewRegistry(store)
	require.NoError(t, reg.Create(ctx, &ledger.Account{ID: "acct.a", DisplayName: "A", DisplayCurrency: money.USD, Metadata: ledger.Checking{}}))

	im := importer.New(store, importer.WithRegistry(reg))
	s, err := im.Import(ctx, []importer.FlatRow{
		row("ok", "acct.a", "Credit", "USD", "5", "env"),
		row("nope", "acct.zzz", "Credit", "USD", "5", "env"),
	}, importer.Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, s.Inserted)
	require.Len(t, s.Errors, 1)
	assert.ErrorIs(t, &s.Errors[0], ledger.ErrNotFound)
}

func TestImport_DryRunWritesNothing(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	s, err := importer.New(store).Import(ctx, []importer.FlatRow{row("t", "acct.a", "Credit", "USD", "5", "env")}, importer.Options{DryRun: true})
	require.NoError(t, err)
	assert.Equal(t, 1, s.Transactions)
	assert.Equal(t, 0, s.Inserted)

	_, err = store.GetTransaction(ctx, "t")
	assert.ErrorIs(t, err, ledger.ErrNotFound)
}

func TestImport_AppliesEnvelopes(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	svc := envelope.NewService(store)
	require.NoError(t, svc.Create(ctx, &envelope.Envelope{
		ID:       "env_groceries",
		Status:   envelope.Active,
		Balance:  money.MustParse("200", money.USD),
		Rollover: envelope.CarryOver{},
	}))

	im := importer.New(store, importer.WithEnvelopes(svc))
	s, err := im.Import(ctx, []importer.FlatRow{row("g1", "acct.a", "Credit", "USD", "45.10", "env_groceries")},
		importer.Options{Reclassify: true, ApplyEnvelopes: true})
	require.NoError(t, err)
	assert.Equal(t, 1, s.EnvelopeUpdates)

	env, err := svc.Get(ctx, "env_groceries")
	require.NoError(t, err)
	assert.Equal(t, "154.9", env.Balance.Amount.String())
}
