// Command seed_accounts inserts the canonical account registry.
package main

import (
	"context"

	"github.com/wyat/capital/internal/app"
	"github.com/wyat/capital/internal/seed"
)

func main() {
	a, ctx, err := app.Open(context.Background(), app.Options{})
	if err != nil {
		app.Fatal(err, "Failed to open store")
	}
	defer a.Close(context.Background())

	res, err := seed.SeedAccounts(ctx, a.Registry, seed.Accounts())
	if err != nil {
		a.Log.Fatal().Err(err).Msg("Seeding accounts failed")
	}
	a.Log.Info().Int("inserted", res.Inserted).Int("existing", res.Existing).Msg("Accounts seeded")
}
