// Command sync_envelopes_notion mirrors envelope balances into Notion.
package main

import (
	"context"
	"flag"
	"time"

	"github.com/wyat/capital/internal/app"
	"github.com/wyat/capital/internal/config"
	"github.com/wyat/capital/internal/notionsync"
)

func main() {
	dryRun := flag.Bool("dry-run", false, "Preview changes without writing to Notion")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	a, ctx, err := app.Open(ctx, app.Options{})
	if err != nil {
		app.Fatal(err, "Failed to open store")
	}
	defer a.Close(context.Background())

	if err := a.Config.Require(config.EnvNotionToken, config.EnvNotionEnvelopesDB); err != nil {
		a.Log.Fatal().Err(err).Msg("Notion is not configured")
	}

	res, err := notionsync.SyncEnvelopes(ctx, a.Envelopes, notionsync.NewClient(a.Config.NotionToken), a.Config.NotionEnvelopesDB, *dryRun)
	if err != nil {
		a.Log.Fatal().Err(err).Msg("Notion sync failed")
	}
	if res.Failed > 0 {
		a.Log.Fatal().Int("failed", res.Failed).Msg("Some pages failed to sync")
	}
}
