package extraction

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/wyat/capital/internal/importer"
	"github.com/wyat/capital/internal/logger"
)

// Step is a single stage of the extraction pipeline.
type Step interface {
	Execute(ctx context.Context, state *State) error
}

// State is shared across the steps of one pipeline execution.
type State struct {
	DocumentID string
	RunID      string
	Document   *Document
	Prompt     string
	Bytes      []byte
	Result     *Result
	Prepared   *PreparedBatchImport
	Summary    *importer.Summary
}

// Deps are the collaborators the steps use.
type Deps struct {
	Docs      DocumentRepository
	Blobs     BlobStore
	Prompts   PromptRepository
	Extractor Extractor
	Importer  *importer.Importer
	Adapter   AdapterOptions
	// PreviewOnly stops after preparing the batch.
	PreviewOnly bool
}

// LoadDocumentStep loads the document record.
type LoadDocumentStep struct{ Deps *Deps }

func (s *LoadDocumentStep) Execute(ctx context.Context, state *State) error {
	doc, err := s.Deps.Docs.GetDocument(ctx, state.DocumentID)
	if err != nil {
		return fmt.Errorf("loading document %s: %w", state.DocumentID, err)
	}
	state.Document = doc
	return nil
}

// LoadPromptStep resolves the prompt for the document kind, falling back
// to DefaultPrompt.
type LoadPromptStep struct{ Deps *Deps }

func (s *LoadPromptStep) Execute(ctx context.Context, state *State) error {
	state.Prompt = DefaultPrompt
	if s.Deps.Prompts == nil {
		return nil
	}
	kind := state.Document.Kind
	if kind == "" {
		kind = DefaultKind
	}
	p, err := s.Deps.Prompts.GetPrompt(ctx, kind)
	if err != nil {
		log := logger.FromContext(ctx)
		log.Warn().Err(err).Str("kind", kind).Msg("no stored prompt, using default")
		return nil
	}
	if p != "" {
		state.Prompt = p
	}
	return nil
}

// StartRunStep records a running extraction run and points the document at it.
type StartRunStep struct{ Deps *Deps }

func (s *StartRunStep) Execute(ctx context.Context, state *State) error {
	run := &Run{
		ID:        uuid.NewString(),
		DocID:     state.Document.ID,
		Kind:      state.Document.Kind,
		Model:     s.Deps.Extractor.Model(),
		Prompt:    state.Prompt,
		Metadata:  map[string]any{"mime_type": state.Document.MIMEType},
		Status:    RunRunning,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.Deps.Docs.InsertRun(ctx, run); err != nil {
		return fmt.Errorf("starting extraction run: %w", err)
	}
	if err := s.Deps.Docs.SetLatestRun(ctx, run.DocID, run.ID); err != nil {
		return fmt.Errorf("linking extraction run: %w", err)
	}
	state.RunID = run.ID
	return nil
}

// FetchBlobStep reads the document bytes.
type FetchBlobStep struct{ Deps *Deps }

func (s *FetchBlobStep) Execute(ctx context.Context, state *State) error {
	data, err := s.Deps.Blobs.Get(ctx, state.Document.BlobID)
	if err != nil {
		return fmt.Errorf("fetching blob %s: %w", state.Document.BlobID, err)
	}
	state.Bytes = data
	return nil
}

// ExtractStep calls the AI extractor.
type ExtractStep struct{ Deps *Deps }

func (s *ExtractStep) Execute(ctx context.Context, state *State) error {
	res, err := s.Deps.Extractor.Extract(ctx, Request{
		Prompt:   state.Prompt,
		Data:     state.Bytes,
		MIMEType: state.Document.MIMEType,
	})
	if err != nil {
		return fmt.Errorf("extracting: %w", err)
	}
	state.Result = res
	return nil
}

// PrepareBatchStep maps extracted rows into an import batch.
type PrepareBatchStep struct{ Deps *Deps }

func (s *PrepareBatchStep) Execute(ctx context.Context, state *State) error {
	prepared, err := Prepare(state.Result, s.Deps.Adapter)
	if err != nil {
		return err
	}
	state.Prepared = prepared
	return nil
}

// ImportStep persists the prepared batch.
type ImportStep struct{ Deps *Deps }

func (s *ImportStep) Execute(ctx context.Context, state *State) error {
	if s.Deps.PreviewOnly {
		return nil
	}
	req := state.Prepared.Request
	summary, err := s.Deps.Importer.Import(ctx, req.Rows, req.Options)
	if err != nil {
		return fmt.Errorf("importing: %w", err)
	}
	state.Prepared.remapRows(summary.Errors)
	state.Summary = summary
	return nil
}

// MarkSuccessStep marks the run succeeded and stores the result.
type MarkSuccessStep struct{ Deps *Deps }

func (s *MarkSuccessStep) Execute(ctx context.Context, state *State) error {
	return s.Deps.Docs.FinishRun(ctx, state.RunID, RunSucceeded, state.Result, "")
}

// Pipeline executes steps in order. When a step fails after a run was
// started, the run is marked failed.
type Pipeline struct {
	deps  *Deps
	steps []Step
}

// NewPipeline creates a pipeline with the given steps.
func NewPipeline(deps *Deps, steps ...Step) *Pipeline {
	return &Pipeline{deps: deps, steps: steps}
}

// NewDocumentPipeline returns the standard extraction pipeline.
func NewDocumentPipeline(deps *Deps) *Pipeline {
	return NewPipeline(deps,
		&LoadDocumentStep{Deps: deps},
		&LoadPromptStep{Deps: deps},
		&StartRunStep{Deps: deps},
		&FetchBlobStep{Deps: deps},
		&ExtractStep{Deps: deps},
		&PrepareBatchStep{Deps: deps},
		&ImportStep{Deps: deps},
		&MarkSuccessStep{Deps: deps},
	)
}

// Execute runs all steps sequentially.
func (p *Pipeline) Execute(ctx context.Context, state *State) error {
	log := logger.ForComponent(logger.FromContext(ctx), "extraction")
	for i, step := range p.steps {
		if err := step.Execute(ctx, state); err != nil {
			if state.RunID != "" {
				if ferr := p.deps.Docs.FinishRun(ctx, state.RunID, RunFailed, state.Result, err.Error()); ferr != nil {
					log.Error().Err(ferr).Str("run_id", state.RunID).Msg("failed to mark run failed")
				}
			}
			return fmt.Errorf("pipeline step %d failed: %w", i+1, err)
		}
	}
	log.Info().
		Str("document_id", state.DocumentID).
		Str("run_id", state.RunID).
		Msg("extraction finished")
	return nil
}

// ExtractDocument runs the standard pipeline for one document.
func ExtractDocument(ctx context.Context, deps *Deps, documentID string) (*State, error) {
	state := &State{DocumentID: documentID}
	if err := NewDocumentPipeline(deps).Execute(ctx, state); err != nil {
		return state, fmt.Errorf("ExtractDocument: %w", err)
	}
	return state, nil
}
