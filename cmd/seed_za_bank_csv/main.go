// Command seed_za_bank_csv imports a ZA Bank statement export into the
// ledger. The P&L leg is backfilled and tx_type classified for every row.
package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/wyat/capital/internal/app"
	"github.com/wyat/capital/internal/importer"
	"github.com/wyat/capital/internal/seed"
)

func main() {
	file := flag.String("file", "", "Path to the CSV export (required)")
	account := flag.String("account", "", "Custody account id (default the canonical account)")
	dryRun := flag.Bool("dry-run", false, "Validate without writing")
	applyEnvelopes := flag.Bool("apply-envelopes", false, "Replay imported transactions against envelopes")
	flag.Parse()

	if *file == "" {
		app.Fatal(nil, "Error: --file is required")
	}
	f, err := os.Open(*file)
	if err != nil {
		app.Fatal(err, "Failed to open CSV file")
	}
	defer f.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	a, ctx, err := app.Open(ctx, app.Options{})
	if err != nil {
		app.Fatal(err, "Failed to open store")
	}
	defer a.Close(context.Background())

	s, err := seed.ImportCSV(ctx, a.Importer(), f, seed.CSVImport{
		Source:         importer.ZABankCSV,
		AccountID:      *account,
		DryRun:         *dryRun,
		ApplyEnvelopes: *applyEnvelopes,
	})
	if err != nil {
		a.Log.Fatal().Err(err).Msg("Import failed")
	}
	a.Log.Info().
		Str("file", *file).
		Int("inserted", s.Inserted).
		Int("duplicates", s.Duplicates).
		Int("failed", s.Failed).
		Int("envelope_updates", s.EnvelopeUpdates).
		Msg("CSV import finished")
}
