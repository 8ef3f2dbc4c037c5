// Command cleanup_incorrect_txns deletes legacy transactions that carry
// category_id on the custody leg. Nothing is deleted without --apply.
package main

import (
	"context"
	"flag"

	"github.com/wyat/capital/internal/app"
	"github.com/wyat/capital/internal/backfill"
)

func main() {
	apply := flag.Bool("apply", false, "Delete matching transactions (default only reports)")
	limit := flag.Int("limit", 0, "Stop after N matches (0 = all)")
	flag.Parse()

	a, ctx, err := app.Open(context.Background(), app.Options{})
	if err != nil {
		app.Fatal(err, "Failed to open store")
	}
	defer a.Close(context.Background())

	s, err := backfill.CleanupCategoryOnCustody(ctx, a.Txs, backfill.CleanupOptions{Limit: *limit, Apply: *apply})
	if err != nil {
		a.Log.Fatal().Err(err).Msg("Cleanup failed")
	}
	a.Log.Info().
		Int("scanned", s.Scanned).
		Int("deleted", s.Updated).
		Int("errors", s.Errors).
		Bool("apply", *apply).
		Msg("Cleanup finished")
}
