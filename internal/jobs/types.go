// Package jobs defines asynchronous work items and the queue contracts the
// API uses to run document extraction off the request path.
package jobs

import (
	"context"
	"time"
)

// JobType names a kind of job.
type JobType string

// JobTypeExtractDocument runs AI extraction and import for one document.
const JobTypeExtractDocument JobType = "extract_document"

// JobStatus is the lifecycle state of a job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	// JobStatusRetrying means the last attempt failed and another is scheduled.
	JobStatusRetrying JobStatus = "retrying"
)

// DefaultMaxRetries applies when a published job leaves MaxRetries at zero.
const DefaultMaxRetries = 3

// ExtractDocumentJob extracts rows from an uploaded document and imports
// them into the ledger.
type ExtractDocumentJob struct {
	JobID      string `json:"job_id"`
	DocumentID string `json:"document_id"`
	// PreviewOnly stops after preparing the batch; nothing is written.
	PreviewOnly bool `json:"preview_only,omitempty"`

	// RunID is the doc_extraction_runs id of the latest attempt.
	RunID string `json:"run_id,omitempty"`

	Status      JobStatus  `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       string     `json:"error,omitempty"`

	RetryCount int `json:"retry_count"`
	MaxRetries int `json:"max_retries"`

	// Outcome of the import, set on completion.
	Inserted   int `json:"inserted"`
	Duplicates int `json:"duplicates"`
	Failed     int `json:"failed"`
}

// Job is implemented by every job type.
type Job interface {
	GetID() string
	GetType() JobType
	GetStatus() JobStatus
}

func (j *ExtractDocumentJob) GetID() string        { return j.JobID }
func (j *ExtractDocumentJob) GetType() JobType     { return JobTypeExtractDocument }
func (j *ExtractDocumentJob) GetStatus() JobStatus { return j.Status }

// Publisher enqueues jobs.
type Publisher interface {
	PublishExtractDocument(ctx context.Context, job *ExtractDocumentJob) error
	Close() error
}

// Consumer runs queued jobs through a handler.
type Consumer interface {
	// Start launches the workers and returns immediately.
	Start(ctx context.Context, handler JobHandler) error
	// Stop waits for in-flight jobs to finish or ctx to end.
	Stop(ctx context.Context) error
}

// JobHandler processes one job. A returned error schedules a retry until
// MaxRetries is reached. Handlers may record outcome fields on the job.
type JobHandler func(ctx context.Context, job Job) error

// JobStore keeps job state for status queries. GetJob wraps
// ledger.ErrNotFound for unknown ids.
type JobStore interface {
	SaveJob(ctx context.Context, job *ExtractDocumentJob) error
	GetJob(ctx context.Context, jobID string) (*ExtractDocumentJob, error)
	ListJobs(ctx context.Context, filter JobFilter) ([]*ExtractDocumentJob, error)
	UpdateJobStatus(ctx context.Context, jobID string, status JobStatus, errorMsg string) error
}

// JobFilter narrows ListJobs. Zero fields match everything.
type JobFilter struct {
	DocumentID string
	Status     JobStatus
	Limit      int
	Offset     int
}
