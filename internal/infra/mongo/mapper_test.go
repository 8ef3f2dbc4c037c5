package mongo

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/wyat/capital/internal/envelope"
	"github.com/wyat/capital/internal/ledger"
	"github.com/wyat/capital/internal/money"
)

func tradeTx() *ledger.Transaction {
	fee := 0
	fx := money.FXSnapshot{To: money.USD, Rate: decimal.RequireFromString("0.1282051282")}
	return &ledger.Transaction{
		ID:     "tx-1",
		TS:     time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC),
		Source: "coinbase_csv",
		TxType: ledger.TxTrade,
		ExternalRefs: []ledger.ExternalRef{
			{Kind: "statement", Value: "Chase6886_20250908"},
		},
		Legs: []ledger.Leg{
			{AccountID: "coinbase", Direction: ledger.Credit, Amount: ledger.Fiat{Money: money.MustParse("1000.00", money.USD)}},
			{AccountID: "coinbase", Direction: ledger.Debit, Amount: ledger.Crypto{Asset: "ETH", Quantity: decimal.RequireFromString("0.312345678901234567")}},
			{AccountID: "za.main", Direction: ledger.Credit, Amount: ledger.Fiat{Money: money.MustParse("7.80", money.HKD)}, FX: &fx, FeeOfLegIdx: &fee},
			{AccountID: ledger.PnLAccountID, Direction: ledger.Debit, Amount: ledger.Fiat{Money: money.MustParse("1.00", money.USD)}, CategoryID: "env_fees", Notes: "fee"},
		},
	}
}

func TestTransactionDoc_RoundTrip(t *testing.T) {
	tx := tradeTx()
	doc, err := toTransactionDoc(tx)
	require.NoError(t, err)

	raw, err := bson.Marshal(doc)
	require.NoError(t, err)
	var decoded transactionDoc
	require.NoError(t, bson.Unmarshal(raw, &decoded))

	got, err := fromTransactionDoc(&decoded)
	require.NoError(t, err)
	assert.Equal(t, tx.ID, got.ID)
	assert.Equal(t, tx.TxType, got.TxType)
	assert.Equal(t, tx.ExternalRefs, got.ExternalRefs)
	require.Len(t, got.Legs, 4)

	q := got.Legs[1].Amount.(ledger.Crypto).Quantity
	assert.True(t, q.Equal(decimal.RequireFromString("0.312345678901234567")), "quantity lost precision: %s", q)
	require.NotNil(t, got.Legs[2].FX)
	assert.True(t, got.Legs[2].FX.Rate.Equal(tx.Legs[2].FX.Rate))
	require.NotNil(t, got.Legs[2].FeeOfLegIdx)
	assert.Equal(t, 0, *got.Legs[2].FeeOfLegIdx)
	assert.Equal(t, "env_fees", got.Legs[3].CategoryID)
}

func TestLegDoc_TaggedAmount(t *testing.T) {
	docs, err := toLegDocs(tradeTx().Legs[:2])
	require.NoError(t, err)

	raw, err := bson.Marshal(bson.M{"legs": docs})
	require.NoError(t, err)
	var m bson.M
	require.NoError(t, bson.Unmarshal(raw, &m))

	legs := m["legs"].(bson.A)
	fiat := legs[0].(bson.M)["amount"].(bson.M)
	assert.Equal(t, "Fiat", fiat["kind"])
	assert.Equal(t, "USD", fiat["currency"])
	assert.IsType(t, primitive.Decimal128{}, fiat["amount"])
	assert.NotContains(t, fiat, "asset")

	crypto := legs[1].(bson.M)["amount"].(bson.M)
	assert.Equal(t, "Crypto", crypto["kind"])
	assert.Equal(t, "ETH", crypto["asset"])
	assert.NotContains(t, crypto, "currency")
}

func TestFromLegDocs_UnknownKind(t *testing.T) {
	_, err := fromLegDocs([]legDoc{{AccountID: "a", Direction: "Debit", Amount: amountDoc{Kind: "Stock"}}})
	var enumErr *ledger.InvalidEnumError
	assert.ErrorAs(t, err, &enumErr)
}

func TestEnvelopeDoc_RoundTrip(t *testing.T) {
	floor := decimal.NewFromInt(-200)
	limit := money.MustParse("900", money.USD)
	capM := money.MustParse("150", money.USD)
	tests := []struct {
		name     string
		rollover envelope.Rollover
	}{
		{"reset", envelope.ResetToZero{}},
		{"carry capped", envelope.CarryOver{Cap: &capM}},
		{"carry uncapped", envelope.CarryOver{}},
		{"sinking", envelope.SinkingFund{Cap: &capM}},
		{"decay", envelope.Decay{KeepRatio: decimal.RequireFromString("0.5"), Cap: &capM}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := &envelope.Envelope{
				ID:            "env_groceries",
				Name:          "Groceries",
				Kind:          envelope.Variable,
				Status:        envelope.Active,
				Funding:       &envelope.Funding{Amount: money.MustParse("800", money.USD), Frequency: envelope.Monthly},
				Rollover:      tt.rollover,
				Balance:       money.MustParse("-35.50", money.USD),
				PeriodLimit:   &limit,
				LastPeriod:    "2024-05",
				AllowNegative: true,
				MinBalance:    &floor,
				DeficitPolicy: envelope.AutoNet,
			}
			doc, err := toEnvelopeDoc(e)
			require.NoError(t, err)
			raw, err := bson.Marshal(doc)
			require.NoError(t, err)
			var decoded envelopeDoc
			require.NoError(t, bson.Unmarshal(raw, &decoded))

			got, err := fromEnvelopeDoc(&decoded)
			require.NoError(t, err)
			assert.Equal(t, tt.rollover.Name(), got.Rollover.Name())
			assert.True(t, got.Balance.Equal(e.Balance))
			assert.True(t, got.MinBalance.Equal(floor))
			assert.Equal(t, e.LastPeriod, got.LastPeriod)
			if c := envelope.RolloverCap(tt.rollover); c != nil {
				require.NotNil(t, envelope.RolloverCap(got.Rollover))
				assert.True(t, envelope.RolloverCap(got.Rollover).Equal(*c))
			} else {
				assert.Nil(t, envelope.RolloverCap(got.Rollover))
			}
			assert.NoError(t, got.Validate())
		})
	}
}

func TestAccountDoc_RoundTrip(t *testing.T) {
	accounts := []*ledger.Account{
		{ID: "za.main", DisplayCurrency: money.HKD, Metadata: ledger.Checking{}},
		{ID: "wallet.eth", DisplayCurrency: money.USD, Metadata: ledger.CryptoWallet{Network: ledger.EVM{ChainName: "base", ChainID: 8453}}},
		{ID: "wallet.btc", DisplayCurrency: money.BTC, Metadata: ledger.CryptoWallet{Network: ledger.Bitcoin{}}},
	}
	for _, a := range accounts {
		t.Run(a.ID, func(t *testing.T) {
			doc := toAccountDoc(a)
			got, err := fromAccountDoc(&doc)
			require.NoError(t, err)
			assert.Equal(t, a, got)
		})
	}
}

func TestTxFilterQuery(t *testing.T) {
	assert.Equal(t, bson.M{}, txFilterQuery(ledger.TxFilter{}))
	assert.Equal(t, bson.M{"source": "za_bank_csv"}, txFilterQuery(ledger.TxFilter{Source: "za_bank_csv", Limit: 5}))

	q := txFilterQuery(ledger.TxFilter{Source: "za_bank_csv", PnLCurrency: money.HKD, ExcludeNote: "patched_hkd_to_usd"})
	and, ok := q["$and"].([]bson.M)
	require.True(t, ok)
	require.Len(t, and, 2)
	match := and[1]["legs"].(bson.M)["$elemMatch"].(bson.M)
	assert.Equal(t, ledger.PnLAccountID, match["account_id"])
	assert.Equal(t, "HKD", match["amount.currency"])
	assert.Equal(t, bson.M{"$not": bson.M{"$regex": "patched_hkd_to_usd"}}, match["notes"])
}

func TestMigrations(t *testing.T) {
	seen := make(map[int]bool)
	for i, m := range Migrations {
		assert.False(t, seen[m.Version], "duplicate version %d", m.Version)
		seen[m.Version] = true
		if i > 0 {
			assert.Greater(t, m.Version, Migrations[i-1].Version)
		}
		assert.NotEmpty(t, m.Indexes)
		assert.Equal(t, m.Checksum(), m.Checksum())
	}
	assert.Equal(t, "0001_ledger_indexes", Migrations[0].Label())
	assert.NotEqual(t, Migrations[0].Checksum(), Migrations[1].Checksum())
}
