package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/subcommands"

	"github.com/wyat/capital/internal/app"
	"github.com/wyat/capital/internal/envelope"
	"github.com/wyat/capital/internal/extraction"
	"github.com/wyat/capital/internal/importer"
	"github.com/wyat/capital/internal/ledger"
	"github.com/wyat/capital/internal/logger"
	"github.com/wyat/capital/internal/seed"
)

type globals struct {
	memory bool
}

func (g *globals) open(ctx context.Context) (*app.App, context.Context, error) {
	return app.Open(ctx, app.Options{Memory: g.memory})
}

// failure logs err against the context logger and returns ExitFailure.
func failure(ctx context.Context, err error, msg string) subcommands.ExitStatus {
	log := logger.FromContext(ctx)
	log.Error().Err(err).Msg(msg)
	return subcommands.ExitFailure
}

// importCmd imports a JSON batch of flat rows or a bank CSV export.
type importCmd struct {
	g              *globals
	csvSource      string
	account        string
	source         string
	dryRun         bool
	applyEnvelopes bool
}

func (*importCmd) Name() string     { return "import" }
func (*importCmd) Synopsis() string { return "Import flat rows (JSON) or a bank CSV export" }
func (*importCmd) Usage() string {
	return `import [--csv-source chase_csv|za_bank_csv] [--dry-run] <file>
  Imports a JSON array of flat rows, or {"rows": [...]}, or a CSV export when
  --csv-source is set. Re-importing the same file reports duplicates.
`
}

func (c *importCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.csvSource, "csv-source", "", "Treat the file as a CSV export from this source")
	f.StringVar(&c.account, "account", "", "Custody account for CSV rows (default the canonical account)")
	f.StringVar(&c.source, "source", "", "Source for JSON rows without one")
	f.BoolVar(&c.dryRun, "dry-run", false, "Validate without writing")
	f.BoolVar(&c.applyEnvelopes, "apply-envelopes", true, "Replay inserted transactions against envelopes")
}

func (c *importCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprint(os.Stderr, c.Usage())
		return subcommands.ExitUsageError
	}
	file, err := os.Open(f.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "import: %v\n", err)
		return subcommands.ExitFailure
	}
	defer file.Close()

	a, ctx, err := c.g.open(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "import: %v\n", err)
		return subcommands.ExitFailure
	}
	defer a.Close(context.Background())

	var s *importer.Summary
	if c.csvSource != "" {
		src, err := importer.CSVSourceByName(c.csvSource)
		if err != nil {
			return failure(ctx, err, "Unknown CSV source")
		}
		s, err = seed.ImportCSV(ctx, a.Importer(), file, seed.CSVImport{
			Source:         src,
			AccountID:      c.account,
			DryRun:         c.dryRun,
			ApplyEnvelopes: c.applyEnvelopes,
		})
		if err != nil {
			return failure(ctx, err, "CSV import failed")
		}
	} else {
		rows, err := readRows(file)
		if err != nil {
			return failure(ctx, err, "Failed to read rows")
		}
		s, err = a.Importer().Import(ctx, rows, importer.Options{
			Source:         c.source,
			Reclassify:     true,
			ApplyEnvelopes: c.applyEnvelopes,
			DryRun:         c.dryRun,
		})
		if err != nil {
			return failure(ctx, err, "Import failed")
		}
	}

	printSummary(os.Stdout, s)
	if s.Failed > 0 {
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

// readRows accepts a bare JSON array of rows or an object with a rows
// field.
func readRows(r io.Reader) ([]importer.FlatRow, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("readRows: %w", err)
	}
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		var rows []importer.FlatRow
		if err := json.Unmarshal(data, &rows); err != nil {
			return nil, fmt.Errorf("readRows: %w", err)
		}
		return rows, nil
	}
	var body struct {
		Rows []importer.FlatRow `json:"rows"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return nil, fmt.Errorf("readRows: %w", err)
	}
	if body.Rows == nil {
		return nil, errors.New("readRows: no rows field")
	}
	return body.Rows, nil
}

func printSummary(w io.Writer, s *importer.Summary) {
	fmt.Fprintf(w, "rows=%d transactions=%d inserted=%d duplicates=%d failed=%d envelope_updates=%d\n",
		s.Rows, s.Transactions, s.Inserted, s.Duplicates, s.Failed, s.EnvelopeUpdates)
	for _, e := range s.Errors {
		fmt.Fprintf(w, "  error: %v\n", &e)
	}
	for _, warn := range s.Warnings {
		fmt.Fprintf(w, "  warning: %s\n", warn)
	}
}

// showCmd prints a transaction and its legs.
type showCmd struct{ g *globals }

func (*showCmd) Name() string             { return "show" }
func (*showCmd) Synopsis() string         { return "Show transactions by id" }
func (*showCmd) Usage() string            { return "show <txid>...\n" }
func (*showCmd) SetFlags(f *flag.FlagSet) {}

func (c *showCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() == 0 {
		fmt.Fprint(os.Stderr, c.Usage())
		return subcommands.ExitUsageError
	}
	a, ctx, err := c.g.open(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "show: %v\n", err)
		return subcommands.ExitFailure
	}
	defer a.Close(context.Background())

	status := subcommands.ExitSuccess
	for _, id := range f.Args() {
		tx, err := a.Txs.GetTransaction(ctx, id)
		if err != nil {
			status = failure(ctx, err, "Failed to load transaction "+id)
			continue
		}
		printTransaction(os.Stdout, tx)
	}
	return status
}

func printTransaction(w io.Writer, tx *ledger.Transaction) {
	fmt.Fprintf(w, "\n=== %s ===\n", tx.ID)
	fmt.Fprintf(w, "Date:    %s\n", tx.TS.Format(time.RFC3339))
	fmt.Fprintf(w, "Source:  %s\n", tx.Source)
	if tx.Payee != "" {
		fmt.Fprintf(w, "Payee:   %s\n", tx.Payee)
	}
	fmt.Fprintf(w, "Type:    %s\n", orDash(string(tx.TxType)))

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tACCOUNT\tDIR\tAMOUNT\tUNIT\tCATEGORY")
	for i, l := range tx.Legs {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n",
			i, l.AccountID, l.Direction, l.Amount.Magnitude().String(), l.Amount.Unit(), orDash(l.CategoryID))
	}
	tw.Flush()
}

// classifyCmd recomputes tx_type for the given transactions.
type classifyCmd struct {
	g      *globals
	dryRun bool
}

func (*classifyCmd) Name() string     { return "classify" }
func (*classifyCmd) Synopsis() string { return "Reclassify tx_type of stored transactions" }
func (*classifyCmd) Usage() string    { return "classify [--dry-run] <txid>...\n" }

func (c *classifyCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.dryRun, "dry-run", false, "Print the classification without writing")
}

func (c *classifyCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() == 0 {
		fmt.Fprint(os.Stderr, c.Usage())
		return subcommands.ExitUsageError
	}
	a, ctx, err := c.g.open(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "classify: %v\n", err)
		return subcommands.ExitFailure
	}
	defer a.Close(context.Background())

	status := subcommands.ExitSuccess
	for _, id := range f.Args() {
		changed, t, err := reclassify(ctx, a.Txs, id, c.dryRun)
		if err != nil {
			status = failure(ctx, err, "Failed to classify "+id)
			continue
		}
		fmt.Printf("%s\t%s\tchanged=%t\n", id, t, changed)
	}
	return status
}

// reclassify stamps the classifier's tx_type on one transaction and
// reports whether it differed from the stored value.
func reclassify(ctx context.Context, repo ledger.TransactionRepository, id string, dryRun bool) (bool, ledger.TxType, error) {
	tx, err := repo.GetTransaction(ctx, id)
	if err != nil {
		return false, "", fmt.Errorf("reclassify: %w", err)
	}
	t := ledger.Classify(tx)
	if t == tx.TxType {
		return false, t, nil
	}
	if dryRun {
		log := logger.FromContext(ctx)
		log.Info().
			Str("txid", id).
			Str("from", string(tx.TxType)).
			Str("to", string(t)).
			Msg("[DRY RUN] Would update tx_type")
		return true, t, nil
	}
	if err := repo.UpdateTxType(ctx, id, t); err != nil {
		return false, t, fmt.Errorf("reclassify: %w", err)
	}
	return true, t, nil
}

// envelopesCmd lists envelope balances.
type envelopesCmd struct{ g *globals }

func (*envelopesCmd) Name() string             { return "envelopes" }
func (*envelopesCmd) Synopsis() string         { return "List envelope balances" }
func (*envelopesCmd) Usage() string            { return "envelopes\n" }
func (*envelopesCmd) SetFlags(f *flag.FlagSet) {}

func (c *envelopesCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a, ctx, err := c.g.open(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "envelopes: %v\n", err)
		return subcommands.ExitFailure
	}
	defer a.Close(context.Background())

	envs, err := a.Envelopes.List(ctx)
	if err != nil {
		return failure(ctx, err, "Failed to list envelopes")
	}
	printEnvelopes(os.Stdout, envs)
	return subcommands.ExitSuccess
}

func printEnvelopes(w io.Writer, envs []*envelope.Envelope) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tKIND\tSTATUS\tBALANCE\tROLLOVER\tPERIOD")
	for _, e := range envs {
		rollover := "-"
		if e.Rollover != nil {
			rollover = e.Rollover.Name()
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			e.ID, e.Name, e.Kind, e.Status, e.Balance.Display(), rollover, orDash(e.LastPeriod))
	}
	tw.Flush()
}

// extractCmd stores a document and runs extraction synchronously.
type extractCmd struct {
	g         *globals
	kind      string
	namespace string
	account   string
	preview   bool
}

func (*extractCmd) Name() string     { return "extract" }
func (*extractCmd) Synopsis() string { return "Store a document and extract its transactions" }
func (*extractCmd) Usage() string {
	return `extract [--kind statement] [--preview] <file>
  Stores the file as a document, runs the extraction model and imports the
  result. With --preview nothing is imported.
`
}

func (c *extractCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.kind, "kind", extraction.DefaultKind, "Document kind, selects the prompt")
	f.StringVar(&c.namespace, "namespace", "", "Blob namespace")
	f.StringVar(&c.account, "account", "", "Account id for extracted rows without one")
	f.BoolVar(&c.preview, "preview", false, "Stop after preparing the batch")
}

func (c *extractCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprint(os.Stderr, c.Usage())
		return subcommands.ExitUsageError
	}
	name := f.Arg(0)
	data, err := os.ReadFile(name)
	if err != nil {
		fmt.Fprintf(os.Stderr, "extract: %v\n", err)
		return subcommands.ExitFailure
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	a, ctx, err := c.g.open(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "extract: %v\n", err)
		return subcommands.ExitFailure
	}
	defer a.Close(context.Background())

	extractor, err := extraction.NewGeminiExtractor(ctx, a.Config.GeminiModel)
	if err != nil {
		return failure(ctx, err, "Failed to create extractor")
	}

	doc, err := extraction.CreateDocument(ctx, a.Docs, a.Blobs, extraction.NewDocument{
		Namespace: c.namespace,
		Kind:      c.kind,
		Title:     filepath.Base(name),
		MIMEType:  mime.TypeByExtension(filepath.Ext(name)),
		Data:      data,
	})
	if err != nil {
		return failure(ctx, err, "Failed to store document")
	}
	a.Log.Info().Str("document_id", doc.ID).Str("blob_id", doc.BlobID).Msg("Stored document")

	deps := &extraction.Deps{
		Docs:      a.Docs,
		Blobs:     a.Blobs,
		Prompts:   a.Prompts,
		Extractor: extractor,
		Importer:  a.Importer(),
		Adapter: extraction.AdapterOptions{
			DefaultAccountID: c.account,
			Import:           importer.Options{Reclassify: true, ApplyEnvelopes: true},
		},
		PreviewOnly: c.preview,
	}
	state, err := extraction.ExtractDocument(ctx, deps, doc.ID)
	if err != nil {
		return failure(ctx, err, "Extraction failed")
	}

	if state.Summary != nil {
		printSummary(os.Stdout, state.Summary)
	} else if state.Prepared != nil {
		printPreview(os.Stdout, state.Prepared.Preview)
	}
	return subcommands.ExitSuccess
}

func printPreview(w io.Writer, p importer.Preview) {
	fmt.Fprintf(w, "transactions=%d errors=%d warnings=%d\n", len(p.Transactions), len(p.Errors), len(p.Warnings))
	for unit, total := range p.Total() {
		fmt.Fprintf(w, "  total %s %s\n", total.String(), unit)
	}
	for _, tx := range p.Transactions {
		printTransaction(w, tx)
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
