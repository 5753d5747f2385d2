package jobs

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrQueueClosed is returned when publishing to or starting a stopped queue.
	ErrQueueClosed = errors.New("queue is closed")
	// ErrJobNotFound is returned by a JobStore for an unknown job ID.
	ErrJobNotFound = errors.New("job not found")
)

// JobKind selects what a recompute job does before reconciling.
type JobKind string

const (
	// JobKindRecompute reconciles the stored ledger of an owner.
	JobKindRecompute JobKind = "recompute"
	// JobKindImport imports a snapshot from Cloud Storage, then reconciles.
	JobKindImport JobKind = "import"
)

// JobStatus represents the current status of a job.
type JobStatus string

const (
	// JobStatusPending indicates the job is waiting to be processed.
	JobStatusPending JobStatus = "pending"
	// JobStatusRunning indicates the job is currently being processed.
	JobStatusRunning JobStatus = "running"
	// JobStatusCompleted indicates the job completed successfully.
	JobStatusCompleted JobStatus = "completed"
	// JobStatusFailed indicates the job failed.
	JobStatusFailed JobStatus = "failed"
	// JobStatusRetrying indicates the job failed and is being retried.
	JobStatusRetrying JobStatus = "retrying"
)

// RecomputeJob asks for one owner's ledger to be recomputed.
type RecomputeJob struct {
	// JobID is the unique identifier for this job.
	JobID string `json:"job_id"`

	// Owner whose ledger is recomputed. Jobs of the same owner never run
	// concurrently.
	Owner string `json:"owner"`

	Kind JobKind `json:"kind"`

	// SourceURI is the gs:// snapshot of an import job.
	SourceURI string `json:"source_uri,omitempty"`

	// Replace deletes the owner's stored transactions before importing.
	Replace bool `json:"replace,omitempty"`

	// Status is the current status of the job.
	Status JobStatus `json:"status"`

	// CreatedAt is when the job was created.
	CreatedAt time.Time `json:"created_at"`

	// StartedAt is when the job started processing.
	StartedAt *time.Time `json:"started_at,omitempty"`

	// CompletedAt is when the job completed (success or failure).
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Error contains error details if the job failed.
	Error string `json:"error,omitempty"`

	// RetryCount is the number of times this job has been retried.
	RetryCount int `json:"retry_count"`

	// MaxRetries is the maximum number of retries allowed.
	MaxRetries int `json:"max_retries"`

	// Results, filled by the handler.
	Imported  int    `json:"imported,omitempty"`
	Updated   int    `json:"updated,omitempty"`
	Warnings  int    `json:"warnings,omitempty"`
	ReportURI string `json:"report_uri,omitempty"`
}

// Publisher defines the interface for publishing jobs to a queue.
// This abstraction allows for different queue implementations (in-memory, Cloud Tasks, Pub/Sub).
type Publisher interface {
	// Publish enqueues a recompute job.
	Publish(ctx context.Context, job *RecomputeJob) error

	// Close closes the publisher and releases resources.
	Close() error
}

// Consumer defines the interface for consuming jobs from a queue.
type Consumer interface {
	// Start begins consuming jobs from the queue.
	// The handler function is called for each job received.
	Start(ctx context.Context, handler JobHandler) error

	// Stop stops consuming jobs and waits for in-flight jobs to complete.
	Stop(ctx context.Context) error
}

// JobHandler is a function that processes a job.
// It should return an error if the job failed and should be retried.
type JobHandler func(ctx context.Context, job *RecomputeJob) error

// JobStore defines the interface for storing and retrieving job status.
type JobStore interface {
	// SaveJob saves or updates a job's state.
	SaveJob(ctx context.Context, job *RecomputeJob) error

	// GetJob retrieves a job by ID. It returns ErrJobNotFound for unknown IDs.
	GetJob(ctx context.Context, jobID string) (*RecomputeJob, error)

	// ListJobs retrieves jobs with optional filtering, oldest first.
	ListJobs(ctx context.Context, filter JobFilter) ([]*RecomputeJob, error)

	// UpdateJobStatus updates the status of a job.
	UpdateJobStatus(ctx context.Context, jobID string, status JobStatus, errorMsg string) error
}

// JobFilter defines filtering criteria for listing jobs.
type JobFilter struct {
	// Owner filters jobs by owner.
	Owner string

	// Status filters jobs by status.
	Status JobStatus

	// Limit limits the number of results.
	Limit int

	// Offset for pagination.
	Offset int
}
