// Package backfill holds idempotent maintenance passes over stored
// transactions.
package backfill

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/wyat/capital/internal/ledger"
	"github.com/wyat/capital/internal/logger"
	"github.com/wyat/capital/internal/money"
)

// Summary reports a pass.
type Summary struct {
	Scanned   int
	Updated   int
	Unchanged int
	Errors    int
}

func (s Summary) String() string {
	return fmt.Sprintf("scanned=%d updated=%d unchanged=%d errors=%d", s.Scanned, s.Updated, s.Unchanged, s.Errors)
}

// ClassifyOptions control the classify-type pass.
type ClassifyOptions struct {
	Source     string
	Limit      int
	DryRun     bool
	Classifier *ledger.Classifier
}

// ClassifyTypes recomputes tx_type for every matching transaction and
// writes it when it differs.
func ClassifyTypes(ctx context.Context, repo ledger.TransactionRepository, opts ClassifyOptions) (Summary, error) {
	log := logger.ForComponent(logger.FromContext(ctx), "backfill")
	c := ledger.DefaultClassifier
	if opts.Classifier != nil {
		c = *opts.Classifier
	}

	var s Summary
	err := repo.ScanTransactions(ctx, ledger.TxFilter{Source: opts.Source, Limit: opts.Limit}, func(tx *ledger.Transaction) error {
		s.Scanned++
		next := c.Classify(tx.Legs)
		if next == tx.TxType {
			s.Unchanged++
			return nil
		}
		if opts.DryRun {
			log.Info().Str("tx_id", tx.ID).Str("from", string(tx.TxType)).Str("to", string(next)).Msg("[DRY RUN] would update tx_type")
			s.Updated++
			return nil
		}
		if err := repo.UpdateTxType(ctx, tx.ID, next); err != nil {
			s.Errors++
			log.Error().Err(err).Str("tx_id", tx.ID).Msg("failed to update tx_type")
			return nil
		}
		s.Updated++
		log.Info().Str("tx_id", tx.ID).Str("from", string(tx.TxType)).Str("to", string(next)).Msg("updated tx_type")
		return nil
	})
	if err != nil {
		return s, fmt.Errorf("ClassifyTypes: %w", err)
	}
	log.Info().Str("summary", s.String()).Msg("classify pass finished")
	return s, nil
}

// PatchNotePrefix is the provenance token written by the HKD to USD patch.
const PatchNotePrefix = "patched_hkd_to_usd"

// PatchOptions control the denomination patch.
type PatchOptions struct {
	Source string
	// From and To are the pre-patch and post-patch P&L currencies.
	From money.Currency
	To   money.Currency
	// Rate converts From to To. Zero means money.DefaultHKDToUSD.
	Rate decimal.Decimal
	// AddFXOnCustody attaches an FX snapshot to custody legs in From that
	// have none, so the rewritten transaction still balances.
	AddFXOnCustody bool
	Limit          int
	DryRun         bool
}

// PatchToken is the provenance token for rate.
func PatchToken(rate decimal.Decimal) string {
	return PatchNotePrefix + "@" + rate.String()
}

// PatchDenomination rewrites the P&L leg of matching transactions from
// opts.From into opts.To. Already-patched legs carry the provenance token
// and are excluded by the filter, so a second run updates nothing.
func PatchDenomination(ctx context.Context, repo ledger.TransactionRepository, opts PatchOptions) (Summary, error) {
	log := logger.ForComponent(logger.FromContext(ctx), "backfill")
	if opts.From == "" {
		opts.From = money.HKD
	}
	if opts.To == "" {
		opts.To = money.USD
	}
	if opts.Rate.IsZero() {
		opts.Rate = money.DefaultHKDToUSD
	}
	fx, err := money.NewFXSnapshot(opts.To, opts.Rate)
	if err != nil {
		return Summary{}, fmt.Errorf("PatchDenomination: %w", err)
	}
	token := PatchToken(opts.Rate)

	filter := ledger.TxFilter{
		Source:      opts.Source,
		PnLCurrency: opts.From,
		ExcludeNote: PatchNotePrefix,
		Limit:       opts.Limit,
	}

	var s Summary
	err = repo.ScanTransactions(ctx, filter, func(tx *ledger.Transaction) error {
		s.Scanned++
		legs, changed := patchLegs(tx.Legs, opts, fx, token)
		if !changed {
			s.Unchanged++
			return nil
		}
		// Custody legs still in From need an FX snapshot for the rewrite
		// to balance; without one the record is left untouched.
		if err := ledger.CheckBalance(legs); err != nil {
			s.Errors++
			log.Error().Err(err).Str("tx_id", tx.ID).Msg("patched legs do not balance, skipping")
			return nil
		}
		if opts.DryRun {
			log.Info().Str("tx_id", tx.ID).Msg("[DRY RUN] would patch P&L denomination")
			s.Updated++
			return nil
		}
		if err := repo.ReplaceLegs(ctx, tx.ID, legs); err != nil {
			s.Errors++
			log.Error().Err(err).Str("tx_id", tx.ID).Msg("failed to patch legs")
			return nil
		}
		s.Updated++
		log.Info().Str("tx_id", tx.ID).Str("token", token).Msg("patched P&L denomination")
		return nil
	})
	if err != nil {
		return s, fmt.Errorf("PatchDenomination: %w", err)
	}
	log.Info().Str("summary", s.String()).Msg("denomination patch finished")
	return s, nil
}

func patchLegs(in []ledger.Leg, opts PatchOptions, fx money.FXSnapshot, token string) ([]ledger.Leg, bool) {
	legs := (&ledger.Transaction{Legs: in}).Clone().Legs
	changed := false
	for i := range legs {
		l := &legs[i]
		m, ok := l.FiatMoney()
		if !ok || m.Currency != opts.From {
			continue
		}
		if l.IsPnL() {
			if strings.Contains(l.Notes, PatchNotePrefix) {
				continue
			}
			l.Amount = ledger.Fiat{Money: money.Convert(m, fx)}
			l.AppendNote(token)
			changed = true
			continue
		}
		if opts.AddFXOnCustody && l.FX == nil {
			snap := fx
			l.FX = &snap
		}
	}
	return legs, changed
}

// CleanupOptions control the category placement cleanup.
type CleanupOptions struct {
	Limit int
	// Apply deletes; without it the pass only reports.
	Apply bool
}

// CleanupCategoryOnCustody deletes legacy transactions that put category_id
// on a custody leg instead of the P&L leg.
func CleanupCategoryOnCustody(ctx context.Context, repo ledger.TransactionRepository, opts CleanupOptions) (Summary, error) {
	log := logger.ForComponent(logger.FromContext(ctx), "backfill")

	var s Summary
	err := repo.ScanTransactions(ctx, ledger.TxFilter{CategoryOnCustody: true, Limit: opts.Limit}, func(tx *ledger.Transaction) error {
		s.Scanned++
		if !opts.Apply {
			log.Info().Str("tx_id", tx.ID).Msg("[DRY RUN] would delete transaction with category on custody leg")
			s.Updated++
			return nil
		}
		if err := repo.DeleteTransaction(ctx, tx.ID); err != nil {
			s.Errors++
			log.Error().Err(err).Str("tx_id", tx.ID).Msg("failed to delete transaction")
			return nil
		}
		s.Updated++
		log.Info().Str("tx_id", tx.ID).Msg("deleted transaction with category on custody leg")
		return nil
	})
	if err != nil {
		return s, fmt.Errorf("CleanupCategoryOnCustody: %w", err)
	}
	log.Info().Str("summary", s.String()).Msg("cleanup finished")
	return s, nil
}
