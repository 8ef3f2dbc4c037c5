// Package seed holds the canonical account registry and the "family bucket"
// envelope set, and idempotent inserters for both.
package seed

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/wyat/capital/internal/envelope"
	"github.com/wyat/capital/internal/ledger"
	"github.com/wyat/capital/internal/logger"
	"github.com/wyat/capital/internal/money"
)

// Account ids used by the CSV seeders.
const (
	ChaseAccountID  = "chase.sapphire"
	ZABankAccountID = "za.main"
)

// Accounts returns the canonical account registry.
func Accounts() []*ledger.Account {
	return []*ledger.Account{
		{ID: "chase.checking", DisplayName: "Chase Total Checking", DisplayCurrency: money.USD, Metadata: ledger.Checking{}},
		{ID: ChaseAccountID, DisplayName: "Chase Sapphire", DisplayCurrency: money.USD, Metadata: ledger.CreditCard{}},
		{ID: ZABankAccountID, DisplayName: "ZA Bank", DisplayCurrency: money.HKD, Metadata: ledger.Checking{}},
		{ID: "za.savings", DisplayName: "ZA Bank Savings", DisplayCurrency: money.HKD, Metadata: ledger.Savings{}},
		{ID: "coinbase", DisplayName: "Coinbase", DisplayCurrency: money.USD, Metadata: ledger.CEX{}},
		{ID: "family.trust", DisplayName: "Family Trust", DisplayCurrency: money.USD, Metadata: ledger.Trust{}},
		{ID: "wallet.eth", DisplayName: "Ethereum wallet", DisplayCurrency: money.USD,
			Metadata: ledger.CryptoWallet{Network: ledger.EVM{ChainName: "ethereum", ChainID: 1}}},
		{ID: "wallet.sol", DisplayName: "Solana wallet", DisplayCurrency: money.USD,
			Metadata: ledger.CryptoWallet{Network: ledger.Solana{}}},
		{ID: "wallet.btc", DisplayName: "Bitcoin cold storage", DisplayCurrency: money.BTC,
			Metadata: ledger.CryptoWallet{Network: ledger.Bitcoin{}}},
	}
}

// ChaseCategories maps Chase export categories onto family bucket envelopes.
var ChaseCategories = map[string]string{
	"Groceries":          "env_groceries",
	"Food & Drink":       "env_dining",
	"Travel":             "env_travel",
	"Gas":                "env_transport",
	"Bills & Utilities":  "env_utilities",
	"Fees & Adjustments": "env_fees",
	"Gifts & Donations":  "env_gifts",
	"Shopping":           "env_misc",
}

// UncategorizedEnvelopeID receives rows without a category mapping.
const UncategorizedEnvelopeID = "env_uncategorized"

func usd(s string) money.Money { return money.MustParse(s, money.USD) }

func usdPtr(s string) *money.Money {
	m := usd(s)
	return &m
}

func monthly(s string) *envelope.Funding {
	return &envelope.Funding{Amount: usd(s), Frequency: envelope.Monthly}
}

// FamilyBucket returns the canonical envelope set, all in USD with zero
// balances and no processed period.
func FamilyBucket() []*envelope.Envelope {
	floor := decimal.NewFromInt(-200)
	envs := []*envelope.Envelope{
		{ID: "env_rent", Name: "Rent", Kind: envelope.Fixed, Funding: monthly("2500"), Rollover: envelope.ResetToZero{}},
		{ID: "env_utilities", Name: "Utilities", Kind: envelope.Fixed, Funding: monthly("300"), Rollover: envelope.CarryOver{Cap: usdPtr("600")}},
		{ID: "env_groceries", Name: "Groceries", Kind: envelope.Variable, Funding: monthly("800"),
			Rollover: envelope.CarryOver{Cap: usdPtr("400")}, AllowNegative: true, MinBalance: &floor, DeficitPolicy: envelope.AutoNet},
		{ID: "env_dining", Name: "Dining out", Kind: envelope.Variable, Funding: monthly("300"), Rollover: envelope.Decay{KeepRatio: decimal.RequireFromString("0.5")}},
		{ID: "env_transport", Name: "Transport", Kind: envelope.Variable, Funding: monthly("200"), Rollover: envelope.CarryOver{}},
		{ID: "env_travel", Name: "Travel", Kind: envelope.Variable, Funding: monthly("400"), Rollover: envelope.SinkingFund{Cap: usdPtr("6000")}},
		{ID: "env_gifts", Name: "Gifts", Kind: envelope.Variable, Funding: monthly("100"), Rollover: envelope.SinkingFund{Cap: usdPtr("1500")}},
		{ID: "env_emergency", Name: "Emergency fund", Kind: envelope.Fixed, Funding: monthly("500"), Rollover: envelope.SinkingFund{}},
		{ID: "env_fees", Name: "Bank fees", Kind: envelope.Variable, Funding: monthly("25"), Rollover: envelope.ResetToZero{},
			AllowNegative: true, DeficitPolicy: envelope.RequireTransfer},
		{ID: "env_misc", Name: "Miscellaneous", Kind: envelope.Variable, Funding: monthly("200"), Rollover: envelope.Decay{KeepRatio: decimal.RequireFromString("0.25"), Cap: usdPtr("200")}},
		{ID: "env_salary", Name: "Salary", Kind: envelope.Variable, Rollover: envelope.ResetToZero{}},
		{ID: "env_interest", Name: "Interest", Kind: envelope.Variable, Rollover: envelope.CarryOver{}},
		{ID: UncategorizedEnvelopeID, Name: "Uncategorized", Kind: envelope.Variable, Rollover: envelope.CarryOver{}, AllowNegative: true},
	}
	for _, e := range envs {
		e.Status = envelope.Active
		e.Balance = money.Zero(money.USD)
		if e.DeficitPolicy == "" {
			e.DeficitPolicy = envelope.AutoNet
		}
	}
	return envs
}

// Result counts what an idempotent seed did.
type Result struct {
	Inserted int
	Existing int
}

// SeedAccounts creates every canonical account, skipping ids that exist.
func SeedAccounts(ctx context.Context, reg *ledger.Registry, accounts []*ledger.Account) (Result, error) {
	log := logger.ForComponent(logger.FromContext(ctx), "seed")
	var r Result
	for _, a := range accounts {
		err := reg.Create(ctx, a)
		switch {
		case errors.Is(err, ledger.ErrDuplicate):
			r.Existing++
			log.Debug().Str("account_id", a.ID).Msg("Account already registered")
		case err != nil:
			return r, fmt.Errorf("SeedAccounts: %w", err)
		default:
			r.Inserted++
			log.Info().Str("account_id", a.ID).Str("kind", a.Metadata.Kind()).Msg("Registered account")
		}
	}
	return r, nil
}

// SeedEnvelopes creates every envelope, skipping ids that exist.
func SeedEnvelopes(ctx context.Context, svc *envelope.Service, envs []*envelope.Envelope) (Result, error) {
	log := logger.ForComponent(logger.FromContext(ctx), "seed")
	var r Result
	for _, e := range envs {
		err := svc.Create(ctx, e)
		switch {
		case errors.Is(err, ledger.ErrDuplicate):
			r.Existing++
			log.Debug().Str("envelope_id", e.ID).Msg("Envelope already exists")
		case err != nil:
			return r, fmt.Errorf("SeedEnvelopes: %w", err)
		default:
			r.Inserted++
			log.Info().Str("envelope_id", e.ID).Str("rollover", e.Rollover.Name()).Msg("Created envelope")
		}
	}
	return r, nil
}
