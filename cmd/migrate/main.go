// Command migrate applies the versioned MongoDB index migrations and
// records them in schema_migrations.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/wyat/capital/internal/app"
	mongostore "github.com/wyat/capital/internal/infra/mongo"
)

func main() {
	uri := flag.String("uri", "", "MongoDB URI (default MONGODB_URI)")
	db := flag.String("db", "", "Database name (default MONGODB_DB)")
	appliedBy := flag.String("applied-by", "migrate-cli", "Name of the tool applying migrations")
	to := flag.Int("to", 0, "Apply migrations up to this version (0 = all)")
	list := flag.Bool("list", false, "Print the known migrations and exit")
	flag.Parse()

	migrations, err := selectMigrations(mongostore.Migrations, *to)
	if err != nil {
		app.Fatal(err, "Invalid --to")
	}
	if *list {
		printMigrations(os.Stdout, migrations)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	a, ctx, err := app.Open(ctx, app.Options{URI: *uri, DB: *db})
	if err != nil {
		app.Fatal(err, "Failed to open store")
	}
	defer a.Close(context.Background())

	a.Log.Info().Int("migrations", len(migrations)).Msg("Found migrations")

	res, err := mongostore.Migrate(ctx, a.Mongo.Database(), migrations, *appliedBy)
	if err != nil {
		a.Log.Fatal().Err(err).Msg("Migration failed")
	}
	if len(res.Applied) == 0 {
		a.Log.Info().Msg("No new migrations to apply. Database is up to date.")
		return
	}
	a.Log.Info().Msgf("Successfully applied %d migration(s)", len(res.Applied))
}

// selectMigrations keeps migrations with version <= to. Zero keeps all.
func selectMigrations(all []mongostore.Migration, to int) ([]mongostore.Migration, error) {
	if to < 0 {
		return nil, fmt.Errorf("version must not be negative: %d", to)
	}
	if to == 0 {
		return all, nil
	}
	var out []mongostore.Migration
	found := false
	for _, m := range all {
		if m.Version <= to {
			out = append(out, m)
		}
		if m.Version == to {
			found = true
		}
	}
	if !found {
		return nil, fmt.Errorf("unknown migration version %d", to)
	}
	return out, nil
}

func printMigrations(w io.Writer, migrations []mongostore.Migration) {
	for _, m := range migrations {
		fmt.Fprintf(w, "%s  %s  (%d indexes)\n", m.Label(), m.Checksum()[:12], len(m.Indexes))
	}
}
