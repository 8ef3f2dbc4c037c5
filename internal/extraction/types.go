// Package extraction runs AI extraction over uploaded statements and turns
// the extracted rows into importer batches.
package extraction

import (
	"context"
	"time"
)

// DefaultModelName is the Gemini model used for extraction.
const DefaultModelName = "gemini-2.5-flash"

// DefaultKind is the document and prompt kind for bank statements.
const DefaultKind = "bank_statement"

// Document is an uploaded source document.
type Document struct {
	ID                    string
	BlobID                string
	Namespace             string
	Kind                  string
	Title                 string
	MIMEType              string
	LatestExtractionRunID string
	CreatedAt             time.Time
}

// RunStatus is the state of an extraction run.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
)

// Run is one AI extraction attempt over a document.
type Run struct {
	ID         string
	DocID      string
	Kind       string
	Model      string
	Prompt     string
	Metadata   map[string]any
	Status     RunStatus
	Error      string
	Result     *Result
	CreatedAt  time.Time
	FinishedAt *time.Time
}

// Result is the structured output of an extraction: loose row objects plus
// the model's self-reported quality and confidence.
type Result struct {
	Rows       []map[string]any `json:"rows"`
	Quality    string           `json:"quality,omitempty"`
	Confidence float64          `json:"confidence,omitempty"`
}

// Request is the input to an Extractor.
type Request struct {
	Prompt   string
	Data     []byte
	MIMEType string
}

// Extractor is the AI collaborator that reads a document.
type Extractor interface {
	Model() string
	Extract(ctx context.Context, req Request) (*Result, error)
}

// DocumentRepository persists documents and extraction runs.
type DocumentRepository interface {
	InsertDocument(ctx context.Context, d *Document) error
	GetDocument(ctx context.Context, id string) (*Document, error)
	SetLatestRun(ctx context.Context, docID, runID string) error
	InsertRun(ctx context.Context, r *Run) error
	GetRun(ctx context.Context, id string) (*Run, error)
	FinishRun(ctx context.Context, runID string, status RunStatus, result *Result, errMsg string) error
}

// BlobStore fetches and stores document bytes by blob id.
type BlobStore interface {
	Get(ctx context.Context, blobID string) ([]byte, error)
	Put(ctx context.Context, blobID string, data []byte, contentType string) error
}

// PromptRepository returns the extraction prompt for a document kind.
type PromptRepository interface {
	GetPrompt(ctx context.Context, kind string) (string, error)
}
