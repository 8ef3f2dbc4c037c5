// Command backfill_tx_type reclassifies tx_type across the ledger.
package main

import (
	"context"
	"flag"
	"time"

	"github.com/wyat/capital/internal/app"
	"github.com/wyat/capital/internal/backfill"
)

func main() {
	dryRun := flag.Bool("dry-run", false, "Log changes without writing")
	limit := flag.Int("limit", 0, "Stop after scanning N transactions (0 = all)")
	source := flag.String("filter-source", "", "Only scan transactions from this source")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	a, ctx, err := app.Open(ctx, app.Options{})
	if err != nil {
		app.Fatal(err, "Failed to open store")
	}
	defer a.Close(context.Background())

	s, err := backfill.ClassifyTypes(ctx, a.Txs, backfill.ClassifyOptions{
		Source: *source,
		Limit:  *limit,
		DryRun: *dryRun,
	})
	if err != nil {
		a.Log.Fatal().Err(err).Msg("Backfill failed")
	}
	a.Log.Info().
		Int("scanned", s.Scanned).
		Int("updated", s.Updated).
		Int("unchanged", s.Unchanged).
		Int("errors", s.Errors).
		Bool("dry_run", *dryRun).
		Msg("Backfill finished")
}
