// Command extract_document runs the extraction pipeline for a stored
// document and imports the result. Re-running it starts a new run.
package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/wyat/capital/internal/app"
	"github.com/wyat/capital/internal/extraction"
	"github.com/wyat/capital/internal/importer"
)

func main() {
	documentID := flag.String("document-id", "", "Document to extract (required)")
	account := flag.String("account", "", "Account id for extracted rows without one")
	preview := flag.Bool("preview", false, "Prepare the batch without importing it")
	flag.Parse()

	if *documentID == "" {
		app.Fatal(nil, "Error: --document-id is required")
	}

	// Bound the run so a stuck model call cannot hang the tool.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	a, ctx, err := app.Open(ctx, app.Options{})
	if err != nil {
		app.Fatal(err, "Failed to open store")
	}
	defer a.Close(context.Background())

	extractor, err := extraction.NewGeminiExtractor(ctx, a.Config.GeminiModel)
	if err != nil {
		a.Log.Fatal().Err(err).Msg("Failed to create extractor")
	}

	a.Log.Info().Str("document_id", *documentID).Str("model", extractor.Model()).Msg("Starting extraction")

	state, err := extraction.ExtractDocument(ctx, &extraction.Deps{
		Docs:      a.Docs,
		Blobs:     a.Blobs,
		Prompts:   a.Prompts,
		Extractor: extractor,
		Importer:  a.Importer(),
		Adapter: extraction.AdapterOptions{
			DefaultAccountID: *account,
			Import:           importer.Options{Reclassify: true, ApplyEnvelopes: true},
		},
		PreviewOnly: *preview,
	}, *documentID)
	if err != nil {
		a.Log.Fatal().Err(err).Str("run_id", state.RunID).Msg("Extraction failed")
	}

	if s := state.Summary; s != nil {
		fmt.Printf("Run %s imported %d transactions (%d duplicates, %d failed).\n",
			state.RunID, s.Inserted, s.Duplicates, s.Failed)
		return
	}
	if p := state.Prepared; p != nil {
		fmt.Printf("Run %s prepared %d transactions (%d row errors); nothing imported.\n",
			state.RunID, len(p.Preview.Transactions), len(p.Preview.Errors))
	}
}
