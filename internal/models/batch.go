package models

import (
	"time"

	"github.com/google/uuid"
)

// JobStatus is the lifecycle state of a batch job
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// FileInput is one file submitted to a batch job
type FileInput struct {
	Filename    string         `json:"filename"`
	ContentType string         `json:"content_type,omitempty"`
	Data        []byte         `json:"-"`
	Context     RoutingContext `json:"context,omitempty"`
}

// FileResult records the terminal outcome of one input file. Results are
// append-only and ordered by submission, not completion. Done marks the
// slot as filled; filenames are caller-supplied and may be empty.
type FileResult struct {
	Done       bool   `json:"-"`
	Filename   string `json:"filename"`
	Success    bool   `json:"success"`
	ArtifactID string `json:"artifact_id,omitempty"`
	Error      string `json:"error,omitempty"`
}

// BatchJob tracks the processing of a submitted file set. Mutated only by
// the queue worker that owns it; terminal once completed or failed.
type BatchJob struct {
	ID          uuid.UUID    `json:"id"`
	TenantID    uuid.UUID    `json:"tenant_id"`
	Files       []FileInput  `json:"-"`
	Status      JobStatus    `json:"status"`
	Progress    int          `json:"progress"`
	Results     []FileResult `json:"results"`
	CreatedAt   time.Time    `json:"created_at"`
	CompletedAt *time.Time   `json:"completed_at,omitempty"`
}

// Terminal reports whether the job can no longer change state.
func (j *BatchJob) Terminal() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}

// JobStatusResponse is the polled read model for a batch job.
type JobStatusResponse struct {
	ID        uuid.UUID    `json:"id"`
	Status    JobStatus    `json:"status"`
	Progress  int          `json:"progress"`
	Results   []FileResult `json:"results"`
	CreatedAt time.Time    `json:"created_at"`
}
