// Command upload_document stores a statement or receipt as a document and
// prints its id for a later extract_document run.
package main

import (
	"context"
	"flag"
	"fmt"
	"mime"
	"os"
	"path/filepath"

	"github.com/wyat/capital/internal/app"
	"github.com/wyat/capital/internal/extraction"
)

func main() {
	var (
		filePath  string
		kind      string
		namespace string
		title     string
	)

	flag.StringVar(&filePath, "file", "", "Path to the local file (required)")
	flag.StringVar(&kind, "kind", extraction.DefaultKind, "Document kind, selects the extraction prompt")
	flag.StringVar(&namespace, "namespace", "", "Blob namespace (optional)")
	flag.StringVar(&title, "title", "", "Document title (optional; defaults to the file name)")
	flag.Parse()

	if filePath == "" {
		app.Fatal(nil, "Usage: upload_document -file /path/to/statement.pdf [-kind KIND]")
	}
	if title == "" {
		title = filepath.Base(filePath)
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		app.Fatal(err, "Failed to read file")
	}

	a, ctx, err := app.Open(context.Background(), app.Options{})
	if err != nil {
		app.Fatal(err, "Failed to open store")
	}
	defer a.Close(context.Background())

	a.Log.Info().
		Str("file", filePath).
		Str("kind", kind).
		Int("bytes", len(data)).
		Msg("Uploading document")

	doc, err := extraction.CreateDocument(ctx, a.Docs, a.Blobs, extraction.NewDocument{
		Namespace: namespace,
		Kind:      kind,
		Title:     title,
		MIMEType:  mime.TypeByExtension(filepath.Ext(filePath)),
		Data:      data,
	})
	if err != nil {
		a.Log.Fatal().Err(err).Msg("Upload failed")
	}

	fmt.Printf("Uploaded %s as document %s (blob %s)\n", filePath, doc.ID, doc.BlobID)
}
