// Command patch_hkd_pnl_to_usd rewrites HKD P&L legs to USD at a peg.
package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wyat/capital/internal/app"
	"github.com/wyat/capital/internal/backfill"
	"github.com/wyat/capital/internal/config"
	mongostore "github.com/wyat/capital/internal/infra/mongo"
	"github.com/wyat/capital/internal/money"
)

func main() {
	uri := flag.String("uri", os.Getenv(config.EnvMongoURI), "MongoDB URI (or set MONGODB_URI)")
	db := flag.String("db", "", "Database name (default MONGODB_DB or "+config.DefaultMongoDB+")")
	coll := flag.String("coll", mongostore.CollLedger, "Ledger collection")
	source := flag.String("source", "za_bank_csv", "Only patch transactions from this source")
	peg := flag.String("peg", money.DefaultHKDToUSD.StringFixed(10), "HKD to USD rate")
	limit := flag.Int("limit", 0, "Stop after N matches (0 = all)")
	dryRun := flag.Bool("dry-run", false, "Log changes without writing")
	addFX := flag.Bool("add-fx-on-custody", false, "Attach the peg as an FX snapshot on the custody leg")
	flag.Parse()

	rate, err := decimal.NewFromString(*peg)
	if err != nil || !rate.IsPositive() {
		app.Fatal(err, "Invalid --peg")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	a, ctx, err := app.Open(ctx, app.Options{URI: *uri, DB: *db})
	if err != nil {
		app.Fatal(err, "Failed to open store")
	}
	defer a.Close(context.Background())

	a.Log.Info().
		Str("coll", *coll).
		Str("source", *source).
		Str("peg", rate.String()).
		Bool("dry_run", *dryRun).
		Msg("Patching HKD P&L legs")

	s, err := backfill.PatchDenomination(ctx, a.Mongo.TransactionsIn(*coll), backfill.PatchOptions{
		Source:         *source,
		From:           money.HKD,
		To:             money.USD,
		Rate:           rate,
		AddFXOnCustody: *addFX,
		Limit:          *limit,
		DryRun:         *dryRun,
	})
	if err != nil {
		a.Log.Fatal().Err(err).Msg("Patch failed")
	}
	a.Log.Info().
		Int("scanned", s.Scanned).
		Int("updated", s.Updated).
		Int("unchanged", s.Unchanged).
		Int("errors", s.Errors).
		Msg("Patch finished")
	if s.Errors > 0 && !*addFX {
		a.Log.Warn().Msg("Some transactions were skipped because they would not balance; rerun with --add-fx-on-custody")
	}
}
