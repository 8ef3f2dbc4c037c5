// Command start_period advances every envelope to a new month. Run it
// once per month from a single scheduler.
package main

import (
	"context"
	"flag"
	"time"

	"github.com/wyat/capital/internal/app"
	"github.com/wyat/capital/internal/envelope"
)

func main() {
	now := time.Now().UTC()
	year := flag.Int("year", now.Year(), "Period year")
	month := flag.Int("month", int(now.Month()), "Period month (1-12)")
	dryRun := flag.Bool("dry-run", false, "Show the resulting balances without saving")
	flag.Parse()

	if *month < 1 || *month > 12 {
		app.Fatal(nil, "Error: --month must be between 1 and 12")
	}
	period := envelope.PeriodKey(*year, *month)

	a, ctx, err := app.Open(context.Background(), app.Options{})
	if err != nil {
		app.Fatal(err, "Failed to open store")
	}
	defer a.Close(context.Background())

	if *dryRun {
		envs, err := a.Envelopes.List(ctx)
		if err != nil {
			a.Log.Fatal().Err(err).Msg("Failed to list envelopes")
		}
		for _, e := range envs {
			next := e.Clone()
			changed, err := next.StartNewPeriod(*year, *month)
			if err != nil {
				a.Log.Error().Err(err).Str("envelope_id", e.ID).Msg("[DRY RUN] Rollover would fail")
				continue
			}
			a.Log.Info().
				Str("envelope_id", e.ID).
				Str("period", period).
				Bool("changed", changed).
				Str("from", e.Balance.String()).
				Str("to", next.Balance.String()).
				Msg("[DRY RUN] Would start period")
		}
		return
	}

	results, err := a.Envelopes.StartPeriodAll(ctx, *year, *month)
	if err != nil {
		a.Log.Fatal().Err(err).Msg("Failed to start period")
	}
	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	a.Log.Info().Str("period", period).Int("envelopes", len(results)).Int("failed", failed).Msg("Period started")
	if failed > 0 {
		a.Log.Fatal().Int("failed", failed).Msg("Some envelopes failed to roll over")
	}
}
