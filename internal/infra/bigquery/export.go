package bigquery

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"

	"github.com/wyat/capital/internal/ledger"
	"github.com/wyat/capital/internal/logger"
)

const (
	// LegsTable is the destination table inside the dataset.
	LegsTable = "ledger_legs"
	// BatchSize bounds rows per streaming insert call.
	BatchSize = 500
)

// Inserter is the subset of *bigquery.Inserter used by Exporter.
type Inserter interface {
	Put(ctx context.Context, src interface{}) error
}

// Exporter streams ledger legs into BigQuery.
type Exporter struct {
	client   *bigquery.Client
	project  string
	dataset  string
	inserter Inserter
	now      func() time.Time
}

// NewExporter creates a BigQuery client for project and targets dataset.
func NewExporter(ctx context.Context, project, dataset string) (*Exporter, error) {
	client, err := bigquery.NewClient(ctx, project)
	if err != nil {
		return nil, fmt.Errorf("NewExporter: creating client: %w", err)
	}
	return &Exporter{
		client:   client,
		project:  project,
		dataset:  dataset,
		inserter: client.DatasetInProject(project, dataset).Table(LegsTable).Inserter(),
		now:      time.Now,
	}, nil
}

// NewExporterWithInserter builds an Exporter without a client. Only
// ExportTransactions is usable.
func NewExporterWithInserter(ins Inserter, now func() time.Time) *Exporter {
	if now == nil {
		now = time.Now
	}
	return &Exporter{inserter: ins, now: now}
}

// Close closes the BigQuery client connection.
func (e *Exporter) Close() error {
	if e.client != nil {
		return e.client.Close()
	}
	return nil
}

// EnsureTable creates the legs table, partitioned by transaction_date, when
// it does not exist.
func (e *Exporter) EnsureTable(ctx context.Context) error {
	schema, err := bigquery.InferSchema(LegRow{})
	if err != nil {
		return fmt.Errorf("EnsureTable: inferring schema: %w", err)
	}
	table := e.client.DatasetInProject(e.project, e.dataset).Table(LegsTable)
	err = table.Create(ctx, &bigquery.TableMetadata{
		Schema:           schema,
		TimePartitioning: &bigquery.TimePartitioning{Field: "transaction_date"},
		Clustering:       &bigquery.Clustering{Fields: []string{"account_id", "category_id"}},
	})
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusConflict {
		return nil
	}
	if err != nil {
		return fmt.Errorf("EnsureTable: creating table: %w", err)
	}
	log := logger.FromContext(ctx)
	log.Info().Str("table", LegsTable).Msg("Created BigQuery table")
	return nil
}

// ExportTransactions streams every leg of txs, BatchSize rows at a time.
// Rows carry insert ids so a retried export is deduplicated best-effort.
func (e *Exporter) ExportTransactions(ctx context.Context, txs []*ledger.Transaction) (int, error) {
	log := logger.ForComponent(logger.FromContext(ctx), "bigquery")
	exportedAt := e.now().UTC()

	batch := make([]*bigquery.StructSaver, 0, BatchSize)
	written := 0
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := e.inserter.Put(ctx, batch); err != nil {
			return fmt.Errorf("ExportTransactions: inserting rows: %w", err)
		}
		written += len(batch)
		log.Debug().Int("rows", len(batch)).Msg("Inserted batch")
		batch = batch[:0]
		return nil
	}

	for _, tx := range txs {
		for _, row := range LegRows(tx, exportedAt) {
			batch = append(batch, &bigquery.StructSaver{Struct: row, InsertID: row.InsertID()})
			if len(batch) == BatchSize {
				if err := flush(); err != nil {
					return written, err
				}
			}
		}
	}
	if err := flush(); err != nil {
		return written, err
	}
	log.Info().Int("transactions", len(txs)).Int("rows", written).Msg("Exported ledger legs")
	return written, nil
}

// QueryCategorySpend sums P&L legs per category and month between start and
// end inclusive.
func (e *Exporter) QueryCategorySpend(ctx context.Context, start, end civil.Date) ([]CategorySpendRow, error) {
	q := e.client.Query(fmt.Sprintf(`
		SELECT
		  category_id,
		  FORMAT_DATE('%%Y-%%m', transaction_date) AS period,
		  unit AS currency,
		  SUM(amount) AS total,
		  COUNT(*) AS legs
		FROM `+"`%s.%s.%s`"+`
		WHERE is_pnl
		  AND category_id IS NOT NULL
		  AND transaction_date BETWEEN @start_date AND @end_date
		GROUP BY category_id, period, currency
		ORDER BY period, category_id
	`, e.project, e.dataset, LegsTable))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "start_date", Value: start},
		{Name: "end_date", Value: end},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("QueryCategorySpend: query read: %w", err)
	}

	var rows []CategorySpendRow
	for {
		var r CategorySpendRow
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("QueryCategorySpend: iter next: %w", err)
		}
		rows = append(rows, r)
	}
	return rows, nil
}
