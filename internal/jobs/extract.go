package jobs

import (
	"context"
	"fmt"

	"github.com/wyat/capital/internal/extraction"
)

// NewExtractHandler runs the document extraction pipeline for
// ExtractDocumentJob values and records the run id and import counts on
// the job.
func NewExtractHandler(deps *extraction.Deps) JobHandler {
	return func(ctx context.Context, job Job) error {
		j, ok := job.(*ExtractDocumentJob)
		if !ok {
			return fmt.Errorf("extract handler: unexpected job type %s", job.GetType())
		}
		d := *deps
		d.PreviewOnly = d.PreviewOnly || j.PreviewOnly

		state, err := extraction.ExtractDocument(ctx, &d, j.DocumentID)
		if state != nil {
			j.RunID = state.RunID
			if state.Summary != nil {
				j.Inserted = state.Summary.Inserted
				j.Duplicates = state.Summary.Duplicates
				j.Failed = state.Summary.Failed
			}
		}
		if err != nil {
			return fmt.Errorf("extract document %s: %w", j.DocumentID, err)
		}
		return nil
	}
}
