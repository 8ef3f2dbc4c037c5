package notionsync

import (
	"context"
	"fmt"

	"github.com/jomei/notionapi"

	"github.com/wyat/capital/internal/envelope"
	"github.com/wyat/capital/internal/logger"
)

// EnvelopeLister lists the envelopes to mirror.
type EnvelopeLister interface {
	List(ctx context.Context) ([]*envelope.Envelope, error)
}

// Result counts what a sync did, or would do on a dry run.
type Result struct {
	Created  int
	Updated  int
	Archived int
	Failed   int
}

// SyncEnvelopes upserts one page per envelope keyed by Envelope ID and
// archives pages whose envelope no longer exists. Per-page failures are
// logged and counted; the sync continues.
func SyncEnvelopes(ctx context.Context, envs EnvelopeLister, notion NotionService, databaseID string, dryRun bool) (Result, error) {
	log := logger.ForComponent(logger.FromContext(ctx), "notionsync")
	var res Result

	list, err := envs.List(ctx)
	if err != nil {
		return res, fmt.Errorf("SyncEnvelopes: listing envelopes: %w", err)
	}

	pages, err := queryAllPages(ctx, notion, databaseID)
	if err != nil {
		return res, fmt.Errorf("SyncEnvelopes: %w", err)
	}

	pageByEnvelope := make(map[string]string, len(pages))
	var stale []notionapi.Page
	known := make(map[string]bool, len(list))
	for _, e := range list {
		known[e.ID] = true
	}
	for _, p := range pages {
		id := envelopeIDOf(p)
		if id == "" || !known[id] {
			stale = append(stale, p)
			continue
		}
		pageByEnvelope[id] = string(p.ID)
	}

	log.Info().
		Int("envelopes", len(list)).
		Int("pages", len(pages)).
		Bool("dry_run", dryRun).
		Msg("Starting envelope sync to Notion")

	for _, e := range list {
		pageID, exists := pageByEnvelope[e.ID]
		if dryRun {
			if exists {
				log.Info().Str("envelope_id", e.ID).Str("page_id", pageID).Msg("[DRY RUN] Would update Notion page")
				res.Updated++
			} else {
				log.Info().Str("envelope_id", e.ID).Msg("[DRY RUN] Would create Notion page")
				res.Created++
			}
			continue
		}

		props := EnvelopeProperties(e)
		if exists {
			if _, err := notion.UpdatePage(ctx, pageID, props); err != nil {
				log.Warn().Err(err).Str("envelope_id", e.ID).Str("page_id", pageID).Msg("Failed to update Notion page")
				res.Failed++
				continue
			}
			res.Updated++
			continue
		}
		page, err := notion.CreatePage(ctx, databaseID, props)
		if err != nil {
			log.Warn().Err(err).Str("envelope_id", e.ID).Msg("Failed to create Notion page")
			res.Failed++
			continue
		}
		log.Debug().Str("envelope_id", e.ID).Str("page_id", string(page.ID)).Msg("Created Notion page")
		res.Created++
	}

	for _, p := range stale {
		if dryRun {
			log.Info().Str("page_id", string(p.ID)).Msg("[DRY RUN] Would archive stale Notion page")
			res.Archived++
			continue
		}
		if err := notion.ArchivePage(ctx, string(p.ID)); err != nil {
			log.Warn().Err(err).Str("page_id", string(p.ID)).Msg("Failed to archive stale Notion page")
			res.Failed++
			continue
		}
		res.Archived++
	}

	log.Info().
		Int("created", res.Created).
		Int("updated", res.Updated).
		Int("archived", res.Archived).
		Int("failed", res.Failed).
		Msg("Envelope sync finished")
	return res, nil
}

func queryAllPages(ctx context.Context, notion NotionService, databaseID string) ([]notionapi.Page, error) {
	var pages []notionapi.Page
	var cursor notionapi.Cursor
	for {
		req := &notionapi.DatabaseQueryRequest{PageSize: 100}
		if cursor != "" {
			req.StartCursor = cursor
		}
		resp, err := notion.QueryDatabase(ctx, databaseID, req)
		if err != nil {
			return nil, fmt.Errorf("queryAllPages: %w", err)
		}
		pages = append(pages, resp.Results...)
		if !resp.HasMore {
			return pages, nil
		}
		cursor = resp.NextCursor
	}
}
