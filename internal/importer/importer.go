package importer

import (
	"context"
	"errors"
	"fmt"

	"github.com/wyat/capital/internal/ledger"
	"github.com/wyat/capital/internal/logger"
)

// EnvelopeApplier replays a stored transaction against its envelope.
type EnvelopeApplier interface {
	Apply(ctx context.Context, tx *ledger.Transaction) (bool, error)
}

// Importer persists normalized batches.
type Importer struct {
	txs       ledger.TransactionRepository
	accounts  *ledger.Registry
	envelopes EnvelopeApplier
}

// Option configures an Importer.
type Option func(*Importer)

// WithRegistry rejects rows whose account_id is not a registered account.
func WithRegistry(r *ledger.Registry) Option {
	return func(im *Importer) { im.accounts = r }
}

// WithEnvelopes enables envelope replay for Options.ApplyEnvelopes.
func WithEnvelopes(e EnvelopeApplier) Option {
	return func(im *Importer) { im.envelopes = e }
}

// New creates an Importer writing to txs.
func New(txs ledger.TransactionRepository, opts ...Option) *Importer {
	im := &Importer{txs: txs}
	for _, o := range opts {
		o(im)
	}
	return im
}

// Summary reports the outcome of a batch.
type Summary struct {
	Rows            int
	Transactions    int
	Inserted        int
	Duplicates      int
	Failed          int
	EnvelopeUpdates int
	InsertedIDs     []string
	Errors          []RowError
	Warnings        []string
}

// Import normalizes rows and inserts each transaction. The batch is not
// atomic: a failing transaction is reported and the rest continue.
// Re-importing the same txids is a no-op reported as duplicates.
func (im *Importer) Import(ctx context.Context, rows []FlatRow, opts Options) (*Summary, error) {
	log := logger.ForComponent(logger.FromContext(ctx), "importer")

	p := Build(rows, opts)
	s := &Summary{
		Rows:         len(rows),
		Transactions: len(p.Transactions),
		Errors:       p.Errors,
		Warnings:     p.Warnings,
	}
	for _, w := range p.Warnings {
		log.Warn().Msg(w)
	}

	rowOf := make(map[string]int)
	for i, r := range rows {
		if _, ok := rowOf[r.TxID.String()]; !ok {
			rowOf[r.TxID.String()] = i
		}
	}

	for _, tx := range p.Transactions {
		if err := ctx.Err(); err != nil {
			return s, fmt.Errorf("Import: %w", err)
		}
		if err := im.checkAccounts(ctx, tx); err != nil {
			s.Errors = append(s.Errors, RowError{Row: rowOf[tx.ID], TxID: tx.ID, Err: err})
			continue
		}

		if opts.DryRun {
			log.Info().
				Str("tx_id", tx.ID).
				Str("tx_type", string(tx.TxType)).
				Int("legs", len(tx.Legs)).
				Msg("[DRY RUN] would insert transaction")
			continue
		}

		if err := im.txs.InsertTransaction(ctx, tx); err != nil {
			if errors.Is(err, ledger.ErrDuplicate) {
				s.Duplicates++
				log.Debug().Str("tx_id", tx.ID).Msg("transaction already imported")
				continue
			}
			s.Errors = append(s.Errors, RowError{Row: rowOf[tx.ID], TxID: tx.ID, Err: err})
			log.Error().Err(err).Str("tx_id", tx.ID).Msg("failed to insert transaction")
			continue
		}
		s.Inserted++
		s.InsertedIDs = append(s.InsertedIDs, tx.ID)

		if opts.ApplyEnvelopes && im.envelopes != nil {
			applied, err := im.envelopes.Apply(ctx, tx)
			if err != nil {
				s.Warnings = append(s.Warnings, err.Error())
				log.Warn().Err(err).Str("tx_id", tx.ID).Msg("envelope replay failed")
			} else if applied {
				s.EnvelopeUpdates++
			}
		}
	}

	s.Failed = len(s.Errors)
	log.Info().
		Int("rows", s.Rows).
		Int("inserted", s.Inserted).
		Int("duplicates", s.Duplicates).
		Int("failed", s.Failed).
		Msg("import finished")
	return s, nil
}

func (im *Importer) checkAccounts(ctx context.Context, tx *ledger.Transaction) error {
	if im.accounts == nil {
		return nil
	}
	for _, l := range tx.Legs {
		if l.IsPnL() {
			continue
		}
		ok, err := im.accounts.Known(ctx, l.AccountID)
		if err != nil {
			return fmt.Errorf("looking up account %s: %w", l.AccountID, err)
		}
		if !ok {
			return fmt.Errorf("unknown account %q: %w", l.AccountID, ledger.ErrNotFound)
		}
	}
	return nil
}
