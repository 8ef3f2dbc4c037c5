// Command export_ledger_bigquery streams ledger legs into BigQuery for
// reporting.
package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/wyat/capital/internal/app"
	"github.com/wyat/capital/internal/config"
	"github.com/wyat/capital/internal/infra/bigquery"
	"github.com/wyat/capital/internal/ledger"
)

func main() {
	project := flag.String("project", os.Getenv(config.EnvGCPProject), "GCP project ID (or set GCP_PROJECT)")
	dataset := flag.String("dataset", "", "BigQuery dataset (default BQ_DATASET or "+config.DefaultBQDataset+")")
	since := flag.String("since", "", "Only export transactions on or after YYYY-MM-DD")
	source := flag.String("source", "", "Only export transactions from this source")
	ensure := flag.Bool("ensure-table", true, "Create the legs table when missing")
	flag.Parse()

	if *project == "" {
		app.Fatal(nil, "Error: --project is required")
	}
	var from time.Time
	if *since != "" {
		t, err := time.Parse("2006-01-02", *since)
		if err != nil {
			app.Fatal(err, "Error: invalid --since, expected YYYY-MM-DD")
		}
		from = t
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	a, ctx, err := app.Open(ctx, app.Options{})
	if err != nil {
		app.Fatal(err, "Failed to open store")
	}
	defer a.Close(context.Background())
	if *dataset == "" {
		*dataset = a.Config.BQDataset
	}

	var txs []*ledger.Transaction
	err = a.Txs.ScanTransactions(ctx, ledger.TxFilter{Source: *source}, func(tx *ledger.Transaction) error {
		if !tx.TS.Before(from) {
			txs = append(txs, tx)
		}
		return nil
	})
	if err != nil {
		a.Log.Fatal().Err(err).Msg("Failed to read ledger")
	}

	exp, err := bigquery.NewExporter(ctx, *project, *dataset)
	if err != nil {
		a.Log.Fatal().Err(err).Msg("Failed to create BigQuery exporter")
	}
	defer exp.Close()

	if *ensure {
		if err := exp.EnsureTable(ctx); err != nil {
			a.Log.Fatal().Err(err).Msg("Failed to ensure table")
		}
	}

	n, err := exp.ExportTransactions(ctx, txs)
	if err != nil {
		a.Log.Fatal().Err(err).Int("rows_written", n).Msg("Export failed")
	}
	a.Log.Info().
		Str("project", *project).
		Str("dataset", *dataset).
		Int("transactions", len(txs)).
		Int("rows", n).
		Msg("Export finished")
}
