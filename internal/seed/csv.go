package seed

import (
	"context"
	"fmt"
	"io"

	"github.com/wyat/capital/internal/importer"
	"github.com/wyat/capital/internal/logger"
)

// CSVImport configures a bank export seed.
type CSVImport struct {
	Source importer.CSVSource
	// AccountID defaults to the canonical account for the source.
	AccountID      string
	DryRun         bool
	ApplyEnvelopes bool
}

func defaultCSVAccount(src importer.CSVSource) string {
	switch src.Name {
	case importer.ChaseCSV.Name:
		return ChaseAccountID
	case importer.ZABankCSV.Name:
		return ZABankAccountID
	}
	return ""
}

// ImportCSV reads a bank export and imports it with P&L backfill and
// classification. Re-running the same file reports duplicates.
func ImportCSV(ctx context.Context, im *importer.Importer, r io.Reader, in CSVImport) (*importer.Summary, error) {
	log := logger.ForComponent(logger.FromContext(ctx), "seed")

	opts := importer.CSVOptions{
		AccountID:       in.AccountID,
		DefaultCategory: UncategorizedEnvelopeID,
	}
	if opts.AccountID == "" {
		opts.AccountID = defaultCSVAccount(in.Source)
	}
	if in.Source.CategoryColumn != "" {
		opts.Categories = ChaseCategories
	}

	rows, err := importer.ReadCSV(r, in.Source, opts)
	if err != nil {
		return nil, fmt.Errorf("ImportCSV: %w", err)
	}
	log.Info().Str("source", in.Source.Name).Str("account_id", opts.AccountID).Int("rows", len(rows)).Msg("Read CSV export")

	s, err := im.Import(ctx, rows, importer.Options{
		Source:         in.Source.Name,
		Reclassify:     true,
		ApplyEnvelopes: in.ApplyEnvelopes,
		DryRun:         in.DryRun,
	})
	if err != nil {
		return s, fmt.Errorf("ImportCSV: %w", err)
	}
	for _, e := range s.Errors {
		log.Warn().Err(e.Err).Int("row", e.Row).Str("tx_id", e.TxID).Msg("Row failed")
	}
	return s, nil
}
